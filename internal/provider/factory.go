package provider

import (
	"fmt"

	"coverfetch/internal/albumcover"
	"coverfetch/internal/config"
	"coverfetch/internal/logger"
	"coverfetch/internal/provider/bandcamp"
	"coverfetch/internal/provider/deezer"
	"coverfetch/internal/provider/discogs"
	"coverfetch/internal/provider/itunes"
	"coverfetch/internal/provider/lastfm"
	"coverfetch/internal/provider/musicbrainz"
	"coverfetch/internal/provider/spotify"
)

// FromConfig builds the providers enabled in cfg, in configured order.
// Providers that cannot be built are logged and skipped.
func FromConfig(cfg config.Config, log *logger.Logger) []*Async {
	if log == nil {
		log = logger.Discard()
	}
	var out []*Async
	for _, name := range cfg.Providers {
		s, fetchAll, err := newSearcher(name, cfg)
		if err != nil {
			log.Warn("skipping provider %s: %v", name, err)
			continue
		}
		out = append(out, NewAsync(s, fetchAll, log.WithField("provider", name)))
	}
	return out
}

// Register adds the providers to reg and returns the ones it added. A
// provider whose name is already registered is closed instead, so a name
// listed twice is searched once.
func Register(reg *albumcover.Providers, providers []*Async) []*Async {
	added := make([]*Async, 0, len(providers))
	for _, p := range providers {
		if _, ok := reg.Get(p.Name()); ok {
			p.log.Warn("provider %s is already registered, ignoring duplicate", p.Name())
			p.Close()
			continue
		}
		reg.AddProvider(p)
		added = append(added, p)
	}
	return added
}

// CloseAll closes every provider, which also removes them from any registry.
func CloseAll(providers []*Async) {
	for _, p := range providers {
		p.Close()
	}
}

func newSearcher(name string, cfg config.Config) (Searcher, bool, error) {
	switch name {
	case "deezer":
		return deezer.New(), true, nil
	case "itunes":
		return itunes.New(), true, nil
	case "musicbrainz":
		return musicbrainz.New(cfg.MusicBrainzMinScore, cfg.MusicBrainzSize), true, nil
	case "spotify":
		if cfg.SpotifyClientID == "" || cfg.SpotifyClientSecret == "" {
			return nil, false, fmt.Errorf("missing spotify credentials")
		}
		return spotify.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret), true, nil
	case "lastfm":
		if cfg.LastfmAPIKey == "" {
			return nil, false, fmt.Errorf("missing lastfm api key")
		}
		return lastfm.New(cfg.LastfmAPIKey, cfg.LastfmAPISecret), false, nil
	case "discogs":
		if cfg.DiscogsToken == "" {
			return nil, false, fmt.Errorf("missing discogs token")
		}
		return discogs.New(cfg.DiscogsToken), false, nil
	case "bandcamp":
		return bandcamp.New(), false, nil
	}
	return nil, false, fmt.Errorf("unknown provider %q", name)
}
