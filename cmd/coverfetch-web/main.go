package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"coverfetch/internal/albumcover"
	"coverfetch/internal/config"
	"coverfetch/internal/logger"
	"coverfetch/internal/pipeline"
	"coverfetch/internal/provider"
	"coverfetch/internal/shutdown"
	"coverfetch/internal/web"
)

func main() {
	var (
		addr       string
		configPath string
		verbose    bool
	)

	flag.StringVar(&addr, "addr", "", "HTTP listen address (default from config, :8080)")
	flag.StringVar(&configPath, "config", "", "Config file path")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		cfg.Verbose = true
	}
	if addr != "" {
		cfg.WebAddr = addr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	l := logger.New(cfg.Verbose)
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(filepath.Dir(config.GetDefaultLogPath()), fmt.Sprintf("coverfetch-web-%d.log", time.Now().Unix()))
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err == nil {
		if err := l.SetFileLog(logPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to setup file logging: %v\n", err)
		}
	}
	defer l.Close()

	sh := shutdown.New()
	stopSignals := sh.Listen()
	defer stopSignals()

	providers := provider.FromConfig(cfg, l)
	if len(providers) == 0 {
		l.Error("No usable cover providers configured")
		os.Exit(1)
	}
	reg := albumcover.NewProviders(l)
	providers = provider.Register(reg, providers)

	runner := pipeline.New(cfg, l, reg, nil)
	sh.AddCleanup(func() { provider.CloseAll(providers) })
	sh.AddCleanup(runner.Close)

	jobMgr := web.NewJobManager()
	jobMgr.StartCleanup(sh.Context())
	server := web.NewServer(sh.Context(), jobMgr, runner, cfg.MaxCoverSize, l)

	httpServer := &http.Server{
		Addr:        cfg.WebAddr,
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	sh.Go(func(ctx context.Context) {
		l.Info("Starting web server on %s", cfg.WebAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Server error: %v", err)
			sh.Shutdown()
		}
	})

	<-sh.Context().Done()

	l.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		l.Error("Server shutdown error: %v", err)
	}
	sh.Shutdown()
	sh.Wait()

	l.Info("Server stopped")
}
