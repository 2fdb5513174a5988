// Package library groups the audio files of a music directory into albums
// and reports which of them still need cover art.
package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"coverfetch/internal/logger"
	"coverfetch/internal/metadata"
	"coverfetch/pkg/utils"
)

// ErrNoAlbums is returned when a directory holds no taggable audio files.
var ErrNoAlbums = errors.New("no albums found")

// Album is a set of tracks in one directory sharing artist and album tags.
type Album struct {
	Dir      string
	Artist   string
	Album    string
	Tracks   []string
	HasCover bool
}

// Options controls a Scan.
type Options struct {
	// Parallel bounds concurrent tag reads. Values below 1 mean 1.
	Parallel int
	// CoverFilename is looked up in each album directory to set HasCover.
	CoverFilename string
	Log           *logger.Logger
}

// Scanner reads tags from a directory tree.
type Scanner struct {
	opts        Options
	readTags    func(path string) (metadata.AlbumTags, error)
	hasEmbedded func(path string) bool
}

// NewScanner creates a Scanner reading tags with taglib.
func NewScanner(opts Options) *Scanner {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	return &Scanner{opts: opts, readTags: metadata.ReadAlbum, hasEmbedded: metadata.HasEmbeddedCover}
}

type albumKey struct {
	dir, artist, album string
}

// Scan walks dir and returns its albums sorted by directory. Files whose
// tags cannot be read are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, dir string) ([]Album, error) {
	files, err := utils.FindAudioFiles(dir)
	if err != nil {
		return nil, err
	}
	s.opts.Log.Debug("found %d audio files in %s", len(files), dir)

	var (
		mu     sync.Mutex
		albums = make(map[albumKey]*Album)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallel)

	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			tags, err := s.readTags(file)
			if err != nil {
				s.opts.Log.Warn("skipping %s: %v", file, err)
				return nil
			}

			key := albumKey{
				dir:    filepath.Dir(file),
				artist: strings.ToLower(tags.Artist),
				album:  strings.ToLower(tags.Album),
			}

			mu.Lock()
			defer mu.Unlock()
			a, ok := albums[key]
			if !ok {
				a = &Album{Dir: key.dir, Artist: tags.Artist, Album: tags.Album}
				albums[key] = a
			}
			a.Tracks = append(a.Tracks, file)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(albums) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoAlbums)
	}

	out := make([]Album, 0, len(albums))
	for _, a := range albums {
		sort.Strings(a.Tracks)
		a.HasCover = s.hasCover(a)
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dir != out[j].Dir {
			return out[i].Dir < out[j].Dir
		}
		if out[i].Artist != out[j].Artist {
			return out[i].Artist < out[j].Artist
		}
		return out[i].Album < out[j].Album
	})
	return out, nil
}

// hasCover reports whether the album directory holds the cover file or its
// first track already embeds artwork.
func (s *Scanner) hasCover(a *Album) bool {
	if s.opts.CoverFilename != "" && utils.FileExists(filepath.Join(a.Dir, s.opts.CoverFilename)) {
		return true
	}
	return len(a.Tracks) > 0 && s.hasEmbedded(a.Tracks[0])
}

// Missing returns the albums without cover art.
func Missing(albums []Album) []Album {
	var out []Album
	for _, a := range albums {
		if !a.HasCover {
			out = append(out, a)
		}
	}
	return out
}
