package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const appName = "coverfetch"

// KnownProviders lists every cover provider name, in default search order.
var KnownProviders = []string{"deezer", "itunes", "musicbrainz", "spotify", "lastfm", "discogs", "bandcamp"}

// Config contains the program configuration
type Config struct {
	Providers           []string `yaml:"providers"`
	LastfmAPIKey        string   `yaml:"lastfm_api_key"`
	LastfmAPISecret     string   `yaml:"lastfm_api_secret"`
	DiscogsToken        string   `yaml:"discogs_token"`
	SpotifyClientID     string   `yaml:"spotify_client_id"`
	SpotifyClientSecret string   `yaml:"spotify_client_secret"`
	MusicBrainzMinScore int      `yaml:"musicbrainz_min_score"`
	MusicBrainzSize     int      `yaml:"musicbrainz_image_size"`
	OutputDir           string   `yaml:"output_dir"`
	CoverFilename       string   `yaml:"cover_filename"`
	EmbedCovers         bool     `yaml:"embed_covers"`
	MaxCoverSize        int      `yaml:"max_cover_size"`
	ParallelJobs        int      `yaml:"parallel_jobs"`
	Verbose             bool     `yaml:"verbose"`
	LogFile             string   `yaml:"log_file"`
	WebAddr             string   `yaml:"web_addr"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Providers:           []string{"deezer", "itunes", "musicbrainz"},
		MusicBrainzMinScore: 90,
		MusicBrainzSize:     500,
		OutputDir:           ".",
		CoverFilename:       "cover.jpg",
		ParallelJobs:        4,
		WebAddr:             ":8080",
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.OutputDir = ExpandHome(cfg.OutputDir)
	cfg.LogFile = ExpandHome(cfg.LogFile)

	return cfg, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(xdg.Home, path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in the working directory and the
// XDG config directories.
func FindConfigFile() string {
	for _, name := range []string{"./coverfetch.yaml", "./coverfetch.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}

	for _, rel := range []string{"config.yaml", "config.yml"} {
		if path, err := xdg.SearchConfigFile(filepath.Join(appName, rel)); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the current configuration to a YAML file
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// GetDefaultLogPath returns the default log file path
func GetDefaultLogPath() string {
	return filepath.Join(xdg.StateHome, appName, appName+".log")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be enabled")
	}
	for _, p := range c.Providers {
		if !slices.Contains(KnownProviders, p) {
			return fmt.Errorf("unknown provider %q, valid providers: %s", p, strings.Join(KnownProviders, ", "))
		}
	}

	if c.HasProvider("spotify") {
		if c.SpotifyClientID == "" {
			return fmt.Errorf("spotify_client_id is required when spotify is in providers")
		}
		if c.SpotifyClientSecret == "" {
			return fmt.Errorf("spotify_client_secret is required when spotify is in providers")
		}
	}
	if c.HasProvider("lastfm") && c.LastfmAPIKey == "" {
		return fmt.Errorf("lastfm_api_key is required when lastfm is in providers")
	}
	if c.HasProvider("discogs") && c.DiscogsToken == "" {
		return fmt.Errorf("discogs_token is required when discogs is in providers")
	}

	if c.MusicBrainzMinScore < 0 || c.MusicBrainzMinScore > 100 {
		return fmt.Errorf("musicbrainz_min_score must be between 0 and 100, got %d", c.MusicBrainzMinScore)
	}
	if !slices.Contains([]int{250, 500, 1200}, c.MusicBrainzSize) {
		return fmt.Errorf("musicbrainz_image_size must be 250, 500 or 1200, got %d", c.MusicBrainzSize)
	}

	if c.ParallelJobs < 1 {
		return fmt.Errorf("parallel jobs must be at least 1, got %d", c.ParallelJobs)
	}
	if c.ParallelJobs > 16 {
		return fmt.Errorf("parallel jobs cannot exceed 16, got %d", c.ParallelJobs)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	if c.CoverFilename == "" || strings.ContainsRune(c.CoverFilename, os.PathSeparator) {
		return fmt.Errorf("cover_filename must be a plain file name, got %q", c.CoverFilename)
	}
	if c.MaxCoverSize < 0 {
		return fmt.Errorf("max_cover_size cannot be negative, got %d", c.MaxCoverSize)
	}

	return nil
}

// HasProvider reports whether name is enabled.
func (c *Config) HasProvider(name string) bool {
	return slices.Contains(c.Providers, name)
}
