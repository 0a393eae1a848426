// Command watch follows a running board from the terminal, refreshing the post
// list the same way the homepage does.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cppla/bettercampus/poller"
)

func main() {
	server := flag.String("server", "http://localhost:3000", "base URL of the board")
	interval := flag.Duration("interval", poller.DefaultInterval, "refresh period")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := poller.New(*server,
		poller.WithInterval(*interval),
		poller.WithLogger(logger.Sugar()),
		poller.WithRenderer(func(rows []poller.Summary) {
			// clear screen, cursor home
			fmt.Print("\033[H\033[2J")
			fmt.Print(poller.RenderText(rows))
		}),
	)
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("poller stopped", zap.Error(err))
	}
}
