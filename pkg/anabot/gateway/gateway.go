// Package gateway exposes the bot's HTTP surface: the inbound webhook plus
// operational routes (manual send, knowledge reload, session reset, health).
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/linsalefe/anabot/pkg/anabot/bot"
	"github.com/linsalefe/anabot/pkg/anabot/config"
	"github.com/linsalefe/anabot/pkg/anabot/knowledge"
)

// Reloader triggers a synchronous knowledge reload and serves snapshots.
type Reloader interface {
	Snapshot() *knowledge.Snapshot
	Reload() (*knowledge.Snapshot, error)
}

// Gateway is the HTTP server wrapping the pipeline.
type Gateway struct {
	pipeline  *bot.Pipeline
	kb        Reloader
	dryRun    bool
	cfg       config.ServerConfig
	server    *http.Server
	logger    *slog.Logger
	startedAt time.Time
}

// New creates a Gateway.
func New(pipeline *bot.Pipeline, kb Reloader, dryRun bool, cfg config.ServerConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}
	return &Gateway{
		pipeline: pipeline,
		kb:       kb,
		dryRun:   dryRun,
		cfg:      cfg,
		logger:   logger.With("component", "gateway"),
	}
}

// Handler builds the route table with middleware applied.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/webhook", g.handleWebhook)
	mux.HandleFunc("/send", g.handleSend)
	mux.HandleFunc("/reload", g.handleReload)
	mux.HandleFunc("/reset", g.handleReset)
	return g.securityHeadersMiddleware(g.authMiddleware(mux))
}

// Start begins serving in the background.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()
	g.server = &http.Server{
		Addr:              g.cfg.Address,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.logger.Error("gateway server error", "error", err)
		}
	}()
	g.logger.Info("gateway started", "address", g.cfg.Address)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("gateway stopping...")
	return g.server.Shutdown(ctx)
}
