package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"coverfetch/internal/config"
)

var (
	errHelp       = errors.New("help requested")
	errInitConfig = errors.New("init config requested")
)

type options struct {
	cfg        config.Config
	configPath string

	artist     string
	album      string
	searchOnly bool
	fetchAll   bool
	libraryDir string
}

// parseArgs parses command-line arguments and loads configuration.
// Priority: CLI flags > config file > defaults
func parseArgs(args []string) (options, error) {
	if len(args) == 0 {
		return options{}, errHelp
	}

	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			return options{}, errHelp
		case "--init-config":
			return options{}, errInitConfig
		}
	}

	var opts options
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" || args[i] == "-c" {
			if i+1 >= len(args) {
				return options{}, fmt.Errorf("--config requires a path argument")
			}
			opts.configPath = args[i+1]
			break
		}
	}

	cfg, err := config.LoadConfigFile(opts.configPath)
	if err != nil {
		return options{}, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.configPath == "" {
		opts.configPath = config.FindConfigFile()
	}

	next := func(i *int, flag, what string) (string, error) {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s requires %s", flag, what)
		}
		*i++
		return args[*i], nil
	}

	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--verbose", "-v":
			cfg.Verbose = true

		case "--search-only", "-s":
			opts.searchOnly = true

		case "--fetch-all", "-a":
			opts.fetchAll = true

		case "--embed", "-e":
			cfg.EmbedCovers = true

		case "--library", "-l":
			v, err := next(&i, arg, "a directory")
			if err != nil {
				return options{}, err
			}
			opts.libraryDir = config.ExpandHome(v)

		case "--output", "-o":
			v, err := next(&i, arg, "a directory")
			if err != nil {
				return options{}, err
			}
			cfg.OutputDir = config.ExpandHome(v)

		case "--providers", "-p":
			v, err := next(&i, arg, "a comma-separated list")
			if err != nil {
				return options{}, err
			}
			cfg.Providers = nil
			for _, name := range strings.Split(v, ",") {
				if name = strings.TrimSpace(strings.ToLower(name)); name != "" {
					cfg.Providers = append(cfg.Providers, name)
				}
			}

		case "--parallel", "-j":
			v, err := next(&i, arg, "a number argument")
			if err != nil {
				return options{}, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return options{}, fmt.Errorf("invalid parallel jobs value: %s", v)
			}
			cfg.ParallelJobs = n

		case "--max-size":
			v, err := next(&i, arg, "a pixel size")
			if err != nil {
				return options{}, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return options{}, fmt.Errorf("invalid max size: %s", v)
			}
			cfg.MaxCoverSize = n

		case "--config", "-c":
			i++

		default:
			if len(arg) > 1 && arg[0] == '-' {
				return options{}, fmt.Errorf("unknown flag: %s", arg)
			}
			positional = append(positional, arg)
		}
	}

	switch {
	case opts.libraryDir != "":
		if len(positional) > 0 {
			return options{}, fmt.Errorf("--library takes no artist or album")
		}
		if opts.searchOnly {
			return options{}, fmt.Errorf("--search-only cannot be combined with --library")
		}
	case len(positional) == 2:
		opts.artist, opts.album = positional[0], positional[1]
	case len(positional) == 1:
		// A single "Artist - Album" argument.
		if a, b, ok := strings.Cut(positional[0], " - "); ok {
			opts.artist, opts.album = strings.TrimSpace(a), strings.TrimSpace(b)
		} else {
			opts.album = positional[0]
		}
	case len(positional) == 0:
		return options{}, fmt.Errorf("missing artist and album")
	default:
		return options{}, fmt.Errorf("expected <artist> <album>, got %d arguments", len(positional))
	}

	opts.cfg = cfg
	return opts, nil
}

// initConfigFile creates a new config file with default values
func initConfigFile() error {
	path := config.GetDefaultConfigPath()

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config file already exists at: %s\n", path)
		fmt.Println("Delete it first if you want to recreate it.")
		return nil
	}

	if err := config.SaveConfigFile(config.DefaultConfig(), path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Printf("Created default config file at: %s\n", path)
	fmt.Println("\nYou can now edit this file to customize your settings.")
	fmt.Println("Available options:")
	fmt.Printf("  providers: any of %s\n", strings.Join(config.KnownProviders, ", "))
	fmt.Println("  spotify_client_id / spotify_client_secret, lastfm_api_key, discogs_token")
	fmt.Println("  cover_filename: name of the file written next to each album")
	fmt.Println("  max_cover_size: downscale covers larger than this (0 keeps the original)")
	fmt.Println("  embed_covers: true/false (also write the cover into each track)")
	fmt.Println("  parallel_jobs: 1-16 (concurrent tag reads during library scans)")
	fmt.Println("  verbose: true/false (enable detailed logging)")
	return nil
}

// printUsage displays the help message
func printUsage() {
	fmt.Println("coverfetch - Find album cover art")
	fmt.Println()
	fmt.Println("Usage: coverfetch [options] <artist> <album>")
	fmt.Println("       coverfetch [options] --library <dir>")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -s, --search-only          List provider results instead of downloading a cover")
	fmt.Println("  -a, --fetch-all            Only ask providers suited to bulk fetching")
	fmt.Println("  -l, --library <dir>        Fetch covers for every album in dir missing one")
	fmt.Println("  -e, --embed                Also embed covers into the audio files")
	fmt.Println("  -o, --output <dir>         Where to write a single cover (default: .)")
	fmt.Println("  -p, --providers <list>     Comma-separated providers to query")
	fmt.Println("  -j, --parallel <n>         Concurrent tag reads for --library (default: 4)")
	fmt.Println("      --max-size <px>        Downscale covers larger than px")
	fmt.Println("  -v, --verbose              Show detailed output")
	fmt.Println("  -c, --config <path>        Path to config file")
	fmt.Println("  -h, --help                 Show this help message")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  --init-config              Create a default config file")
	fmt.Println()
	fmt.Println("Config file locations (checked in order):")
	fmt.Println("  ./coverfetch.yaml")
	fmt.Printf("  %s\n", config.GetDefaultConfigPath())
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  coverfetch \"Radiohead\" \"OK Computer\"")
	fmt.Println("  coverfetch -s -p deezer,itunes \"Radiohead - OK Computer\"")
	fmt.Println("  coverfetch --library ~/Music --embed --max-size 1000")
}
