package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/kayz/promptgate/internal/backend"
	"github.com/kayz/promptgate/internal/config"
	"github.com/kayz/promptgate/internal/hub"
	"github.com/kayz/promptgate/internal/logger"
	"github.com/kayz/promptgate/internal/persist"
	"github.com/kayz/promptgate/internal/preset"
	"github.com/kayz/promptgate/internal/regexscript"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP hub",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config: %v", err)
	}

	store, err := persist.NewStore(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Fatal("open store: %v", err)
	}
	defer store.Close()

	provider, err := backend.New(cfg.Backend)
	if err != nil {
		logger.Fatal("init backend: %v", err)
	}

	cache := preset.NewCache(time.Duration(cfg.Presets.CacheTTLSeconds) * time.Second)
	engine := regexscript.NewEngine(time.Duration(cfg.Limits.RegexTimeoutMS) * time.Millisecond)
	pipeline := hub.NewPipeline(engine, cache, store)
	auditor := hub.NewAuditor(cfg.Audit)
	srv := hub.NewServer(pipeline, provider, auditor, store, cache, cfg.Presets.Default)

	sched := cron.New()
	if _, err := sched.AddFunc("@every 1m", func() {
		if n := cache.Sweep(); n > 0 {
			logger.Debug("swept %d expired preset entries", n)
		}
	}); err != nil {
		logger.Fatal("schedule cache sweep: %v", err)
	}
	if _, err := sched.AddFunc("@daily", func() {
		if err := auditor.Cleanup(); err != nil {
			logger.Warn("audit cleanup failed: %v", err)
		}
	}); err != nil {
		logger.Fatal("schedule audit cleanup: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	port := cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}
	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("hub listening on %s (provider %s, default preset %q)", addr, provider.Name(), cfg.Presets.Default)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server shutdown: %v", err)
	}
}
