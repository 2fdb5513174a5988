package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"coverfetch/internal/albumcover"
	"coverfetch/internal/config"
	"coverfetch/internal/library"
	"coverfetch/internal/logger"
	"coverfetch/internal/pipeline"
	"coverfetch/internal/progress"
	"coverfetch/internal/provider"
	"coverfetch/internal/shutdown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseArgs(args)
	switch {
	case errors.Is(err, errHelp):
		printUsage()
		if len(args) == 0 {
			return 1
		}
		return 0
	case errors.Is(err, errInitConfig):
		if err := initConfigFile(); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
			return 1
		}
		return 0
	case err != nil:
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		return 1
	}
	cfg := opts.cfg

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] Configuration error: %v\n", err)
		return 1
	}

	sh := shutdown.New()
	stop := sh.Listen()
	defer stop()
	defer sh.Shutdown()

	log := logger.New(cfg.Verbose)
	defer log.Close()

	logFile := cfg.LogFile
	if logFile == "" && opts.libraryDir != "" && !cfg.Verbose {
		logFile = config.GetDefaultLogPath()
	}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			log.Warn("Failed to create log directory: %v", err)
		} else if err := log.SetFileLog(logFile); err != nil {
			log.Warn("Failed to setup file logging: %v", err)
		} else {
			log.Debug("Logging to file: %s", logFile)
		}
	}
	if opts.configPath != "" {
		log.Debug("Loaded configuration from: %s", opts.configPath)
	}

	providers := provider.FromConfig(cfg, log)
	if len(providers) == 0 {
		log.Error("No usable cover providers configured")
		return 1
	}
	reg := albumcover.NewProviders(log)
	providers = provider.Register(reg, providers)

	runner := pipeline.New(cfg, log, reg, nil)
	sh.AddCleanup(func() { provider.CloseAll(providers) })
	sh.AddCleanup(runner.Close)

	ctx := sh.Context()
	switch {
	case opts.libraryDir != "":
		err = runLibrary(ctx, runner, cfg, log, opts.libraryDir)
	case opts.searchOnly:
		err = runSearch(ctx, runner, opts)
	default:
		err = runFetch(ctx, runner, cfg, log, opts)
	}

	if errors.Is(err, context.Canceled) {
		log.Warn("Interrupted")
		return 130
	}
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	return 0
}

func runSearch(ctx context.Context, runner *pipeline.Runner, opts options) error {
	results, stats, err := runner.Search(ctx, opts.artist, opts.album)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no results for %q / %q", opts.artist, opts.album)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tDESCRIPTION\tIMAGE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Provider, r.Description, r.ImageURL)
	}
	tw.Flush()
	fmt.Println()
	fmt.Println(pipeline.FormatStatistics(stats))
	return nil
}

func runFetch(ctx context.Context, runner *pipeline.Runner, cfg config.Config, log *logger.Logger, opts options) error {
	cover, stats, err := runner.Fetch(ctx, opts.artist, opts.album, opts.fetchAll)
	if err != nil {
		return err
	}
	log.Debug("%s", pipeline.FormatStatistics(stats))
	if cover == nil {
		return fmt.Errorf("no cover found for %q / %q", opts.artist, opts.album)
	}

	path, err := runner.SaveCover(cover, cfg.OutputDir, nil)
	if err != nil {
		return err
	}
	w, h := cover.Size()
	log.Info("Saved %dx%d cover from %s to %s (score %.2f)", w, h, cover.Provider, path, cover.Score)
	return nil
}

func runLibrary(ctx context.Context, runner *pipeline.Runner, cfg config.Config, log *logger.Logger, dir string) error {
	var bar *progress.Bar
	hooks := pipeline.Hooks{
		OnAlbumsFound: func(total, missing int) {
			if !cfg.Verbose && missing > 0 {
				bar = progress.New(missing)
				log.SetProgressBar(true)
			}
		},
		OnAlbumDone: func(a library.Album, cover *albumcover.Cover, stats albumcover.Statistics) {
			if bar != nil {
				bar.Album(cover != nil, stats.BytesTransferred)
			}
			if cover == nil {
				log.Debug("No cover found for %s - %s", a.Artist, a.Album)
			}
		},
	}

	summary, err := runner.RunLibrary(ctx, dir, hooks)

	if bar != nil {
		bar.Finish()
		log.SetProgressBar(false)
	}
	if err != nil {
		return err
	}

	log.Info("%s", summary)
	return nil
}
