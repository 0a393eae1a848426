// Package poller keeps a rendering of the post list fresh by re-fetching the JSON
// listing on a fixed period. It is the Go counterpart of public/js/main.js.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/bettercampus/models"
)

// DefaultInterval is the refresh period of the live list.
const DefaultInterval = 10 * time.Second

// ListingPath is the JSON route polled on the server.
const ListingPath = "/api/posts"

// Renderer receives each successful fetch.
type Renderer func(rows []Summary)

// Poller fetches the listing immediately and then once per interval.
type Poller struct {
	url      string
	client   *http.Client
	interval time.Duration
	render   Renderer
	logger   *zap.SugaredLogger

	mu   sync.RWMutex
	last []Summary
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithHTTPClient overrides the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Poller) { p.client = c }
}

// WithRenderer sets the function called after every successful fetch.
func WithRenderer(r Renderer) Option {
	return func(p *Poller) { p.render = r }
}

// WithLogger sets the logger used for fetch failures.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Poller) { p.logger = l }
}

// New creates a Poller for the server at baseURL.
func New(baseURL string, opts ...Option) *Poller {
	p := &Poller{
		url:      strings.TrimRight(baseURL, "/") + ListingPath,
		client:   &http.Client{Timeout: 5 * time.Second},
		interval: DefaultInterval,
		render:   func([]Summary) {},
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. Fetch failures are logged and the previous
// rendering stays in place until the next successful tick.
func (p *Poller) Run(ctx context.Context) error {
	p.Tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one fetch-and-render cycle.
func (p *Poller) Tick(ctx context.Context) {
	posts, err := p.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Errorw("Error fetching posts", "url", p.url, "error", err)
		}
		return
	}
	rows := Summaries(posts)
	p.mu.Lock()
	p.last = rows
	p.mu.Unlock()
	p.render(rows)
}

// Last returns the most recent successful rendering input.
func (p *Poller) Last() []Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Fetch downloads and decodes the listing once.
func (p *Poller) Fetch(ctx context.Context) ([]models.Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var posts []models.Post
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return posts, nil
}
