package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cppla/bettercampus/config"
	"github.com/cppla/bettercampus/models"
	"github.com/cppla/bettercampus/routes"
	"github.com/cppla/bettercampus/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	for _, dir := range []string{cfg.UploadDir, cfg.PublicDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			utils.Sugar.Fatalf("cannot create %s: %v", dir, err)
		}
	}

	// Schema is synced from the models on every start
	db := config.InitDatabase(&models.Post{}, &models.Comment{})
	cache := utils.NewCache(cfg)

	r := routes.SetupRouter(cfg, db, cache)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.UploadSweepMinutes > 0 {
		utils.StartUploadCleaner(ctx, db, cfg.UploadDir, time.Duration(cfg.UploadSweepMinutes)*time.Minute, time.Hour)
	}

	utils.Sugar.Infof("Server running at http://localhost:%s", cfg.AppPort)
	if err := utils.GraceServer(ctx, ":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
