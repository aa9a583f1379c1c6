package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/linsalefe/anabot/pkg/anabot/bot"
	"github.com/linsalefe/anabot/pkg/anabot/crm"
	"github.com/linsalefe/anabot/pkg/anabot/gateway"
	"github.com/linsalefe/anabot/pkg/anabot/knowledge"
	"github.com/linsalefe/anabot/pkg/anabot/llm"
	"github.com/linsalefe/anabot/pkg/anabot/wa"
)

// newServeCmd creates the `anabot serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook daemon",
		Long: `Start anabot as a daemon: HTTP gateway for provider webhooks,
knowledge-base hot reload and background reply processing.

Examples:
  anabot serve
  anabot serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	// ── Knowledge base + watcher ──
	loader := knowledge.NewLoader(
		cfg.Knowledge.Dir,
		cfg.Knowledge.CatalogFile,
		cfg.Knowledge.MaxCorpusBytes,
		cfg.Knowledge.PriorityKeywords,
		logger,
	)
	watcher := knowledge.NewWatcher(loader, cfg.Knowledge.ReloadInterval, logger)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("starting knowledge watcher: %w", err)
	}

	// ── Collaborators ──
	responder := llm.NewClient(cfg.LLM, cfg.Name, cfg.Company, cfg.Timezone, logger)
	dispatcher := wa.NewDispatcher(cfg.WhatsApp, logger)
	crmClient := crm.NewClient(cfg.CRM, logger)

	// ── Pipeline ──
	queue := bot.NewQueue(cfg.Pipeline.Workers, logger)
	guard := bot.NewGuard(bot.NewMemoryDedupStore(), cfg.Pipeline.DedupTTL)
	sessions := bot.NewMemorySessions(cfg.Pipeline.HistoryLimit)
	normalizer := &bot.Normalizer{SuppressSelfEcho: cfg.WhatsApp.SuppressSelfEcho}

	var notifier bot.CRMNotifier
	if crmClient != nil {
		notifier = crmClient
	} else {
		logger.Info("CRM token missing, side channel disabled")
	}

	pipeline := bot.NewPipeline(
		bot.PipelineConfig{
			BotName:          cfg.Name,
			HandoffContact:   cfg.HandoffContact,
			ResponderTimeout: cfg.LLM.Timeout,
		},
		normalizer, guard, sessions, watcher,
		responder, dispatcher, notifier, queue, logger,
	)

	// Periodic dedup sweep keeps the map from growing unbounded.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 5m", func() {
		if n := pipeline.SweepDedup(); n > 0 {
			logger.Debug("dedup entries swept", "removed", n)
		}
	}); err != nil {
		return fmt.Errorf("scheduling dedup sweep: %w", err)
	}
	sweeper.Start()

	// ── Gateway ──
	gw := gateway.New(pipeline, watcher, responder.DryRun(), cfg.Server, logger)
	if err := gw.Start(); err != nil {
		return err
	}

	logger.Info("anabot running",
		"address", cfg.Server.Address,
		"knowledge_dir", cfg.Knowledge.Dir,
		"dry_run", responder.DryRun())

	// ── Wait for shutdown ──
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown error", "error", err)
	}
	<-sweeper.Stop().Done()
	watcher.Stop()
	queue.Drain()
	pipeline.Drain()

	logger.Info("shutdown complete")
	return nil
}
