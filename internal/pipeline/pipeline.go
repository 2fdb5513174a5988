// Package pipeline drives an albumcover.Fetcher for the command line and web
// front ends: single lookups, search-only queries and whole-library runs.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"coverfetch/internal/albumcover"
	"coverfetch/internal/config"
	"coverfetch/internal/library"
	"coverfetch/internal/logger"
	"coverfetch/internal/metadata"
)

// Hooks report library progress.
type Hooks struct {
	OnAlbumsFound func(total, missing int)
	OnAlbumDone   func(album library.Album, cover *albumcover.Cover, stats albumcover.Statistics)
	OnWarning     func(msg string)
}

// Summary totals a library run.
type Summary struct {
	Albums     int
	Skipped    int
	Found      int
	Missing    int
	Failed     int
	Statistics albumcover.Statistics
}

// String formats the summary for humans.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d albums, %d already had covers, %d covers found, %d not found",
		s.Albums, s.Skipped, s.Found, s.Missing)
	if s.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed to save", s.Failed)
	}
	b.WriteString("\n")
	b.WriteString(FormatStatistics(s.Statistics))
	return b.String()
}

// FormatStatistics renders statistics as a short multi-line report.
func FormatStatistics(st albumcover.Statistics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s network requests, %s transferred, average cover %s",
		humanize.Comma(st.NetworkRequests),
		humanize.Bytes(uint64(max(st.BytesTransferred, 0))),
		st.AverageDimensions())

	providers := make([]string, 0, len(st.TotalImagesByProvider))
	for p := range st.TotalImagesByProvider {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	for _, p := range providers {
		fmt.Fprintf(&b, "\n  %-12s %3d results, %3d chosen", p, st.TotalImagesByProvider[p], st.ChosenImagesByProvider[p])
	}
	return b.String()
}

// Runner owns a Fetcher and hands each outcome to the caller waiting on it.
type Runner struct {
	cfg     config.Config
	log     *logger.Logger
	fetcher *albumcover.Fetcher

	mu      sync.Mutex
	waiting map[uint64]chan albumcover.Outcome

	scan       func(ctx context.Context, dir string) ([]library.Album, error)
	embed      func(path string, data []byte) error
	queueFetch func(artist, album string, fetchAll bool) uint64
}

// New creates a Runner searching reg. client is used for image downloads and
// may be nil.
func New(cfg config.Config, log *logger.Logger, reg *albumcover.Providers, client *http.Client) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	r := &Runner{
		cfg:     cfg,
		log:     log,
		waiting: make(map[uint64]chan albumcover.Outcome),
		embed:   metadata.EmbedCover,
	}
	r.scan = func(ctx context.Context, dir string) ([]library.Album, error) {
		return library.NewScanner(library.Options{
			Parallel:      cfg.ParallelJobs,
			CoverFilename: cfg.CoverFilename,
			Log:           log,
		}).Scan(ctx, dir)
	}

	opts := []albumcover.Option{
		albumcover.WithLogger(log),
		albumcover.WithHooks(albumcover.Hooks{
			OnAlbumCoverFetched: func(id uint64, cover *albumcover.Cover, stats albumcover.Statistics) {
				r.deliver(albumcover.Outcome{Request: albumcover.SearchRequest{ID: id}, Cover: cover, Statistics: stats})
			},
			OnSearchFinished: func(id uint64, results []albumcover.SearchResult, stats albumcover.Statistics) {
				r.deliver(albumcover.Outcome{Request: albumcover.SearchRequest{ID: id, SearchOnly: true}, Results: results, Statistics: stats})
			},
		}),
	}
	if client != nil {
		opts = append(opts, albumcover.WithHTTPClient(client))
	}
	r.fetcher = albumcover.NewFetcher(reg, opts...)
	r.queueFetch = r.fetcher.FetchAlbumCover
	return r
}

// Close cancels everything still running.
func (r *Runner) Close() {
	r.fetcher.Close()
}

// submit queues a request and registers its result channel. The registration
// happens under r.mu so a fast outcome cannot arrive before it.
func (r *Runner) submit(queue func() uint64) (uint64, <-chan albumcover.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := queue()
	if id == 0 {
		return 0, nil, fmt.Errorf("cover fetcher is closed")
	}
	ch := make(chan albumcover.Outcome, 1)
	r.waiting[id] = ch
	return id, ch, nil
}

func (r *Runner) deliver(o albumcover.Outcome) {
	r.mu.Lock()
	ch, ok := r.waiting[o.Request.ID]
	delete(r.waiting, o.Request.ID)
	r.mu.Unlock()

	if ok {
		ch <- o
	}
}

func (r *Runner) forget(id uint64) {
	r.fetcher.Cancel(id)
	r.mu.Lock()
	delete(r.waiting, id)
	r.mu.Unlock()
}

func (r *Runner) wait(ctx context.Context, id uint64, ch <-chan albumcover.Outcome) (albumcover.Outcome, error) {
	select {
	case o := <-ch:
		return o, nil
	case <-ctx.Done():
		r.forget(id)
		return albumcover.Outcome{}, ctx.Err()
	}
}

// Search returns the raw provider results for artist and album.
func (r *Runner) Search(ctx context.Context, artist, album string) ([]albumcover.SearchResult, albumcover.Statistics, error) {
	id, ch, err := r.submit(func() uint64 { return r.fetcher.SearchForCovers(artist, album) })
	if err != nil {
		return nil, albumcover.Statistics{}, err
	}
	o, err := r.wait(ctx, id, ch)
	return o.Results, o.Statistics, err
}

// Fetch returns the best cover for artist and album, or nil if none was found.
func (r *Runner) Fetch(ctx context.Context, artist, album string, fetchAll bool) (*albumcover.Cover, albumcover.Statistics, error) {
	id, ch, err := r.submit(func() uint64 { return r.queueFetch(artist, album, fetchAll) })
	if err != nil {
		return nil, albumcover.Statistics{}, err
	}
	o, err := r.wait(ctx, id, ch)
	return o.Cover, o.Statistics, err
}

// SaveCover writes cover into dir under the configured file name and, when
// embedding is enabled, into each track. Embedding failures are logged.
func (r *Runner) SaveCover(cover *albumcover.Cover, dir string, tracks []string) (string, error) {
	data, err := metadata.EncodeCover(cover.Image, cover.Data, r.cfg.MaxCoverSize)
	if err != nil {
		return "", err
	}
	path, err := metadata.WriteCoverFile(dir, r.cfg.CoverFilename, data)
	if err != nil {
		return "", err
	}
	r.log.Debug("wrote %s (%s)", path, humanize.Bytes(uint64(len(data))))

	if r.cfg.EmbedCovers {
		for _, track := range tracks {
			if err := r.embed(track, data); err != nil {
				r.log.Warn("%v", err)
			}
		}
	}
	return path, nil
}

// RunLibrary finds the albums under dir that lack a cover file, fetches a
// cover for each and saves it next to the tracks.
func (r *Runner) RunLibrary(ctx context.Context, dir string, hooks Hooks) (Summary, error) {
	albums, err := r.scan(ctx, dir)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to scan library: %w", err)
	}

	missing := library.Missing(albums)
	sum := Summary{Albums: len(albums), Skipped: len(albums) - len(missing)}
	r.log.Info("Found %d albums, %d without cover art", len(albums), len(missing))
	if hooks.OnAlbumsFound != nil {
		hooks.OnAlbumsFound(len(albums), len(missing))
	}
	if len(missing) == 0 {
		return sum, nil
	}

	type pending struct {
		album library.Album
		ch    <-chan albumcover.Outcome
	}
	byID := make(map[uint64]pending, len(missing))
	ids := make([]uint64, 0, len(missing))
	for _, a := range missing {
		id, ch, err := r.submit(func() uint64 { return r.queueFetch(a.Artist, a.Album, true) })
		if err != nil {
			for _, queued := range ids {
				r.forget(queued)
			}
			return sum, err
		}
		byID[id] = pending{album: a, ch: ch}
		ids = append(ids, id)
	}

	for i, id := range ids {
		p := byID[id]
		o, err := r.wait(ctx, id, p.ch)
		if err != nil {
			for _, rest := range ids[i+1:] {
				r.forget(rest)
			}
			return sum, err
		}
		sum.Statistics.Add(o.Statistics)

		if o.Cover == nil {
			sum.Missing++
			r.log.Debug("no cover for %s - %s", p.album.Artist, p.album.Album)
		} else if _, err := r.SaveCover(o.Cover, p.album.Dir, p.album.Tracks); err != nil {
			sum.Failed++
			msg := fmt.Sprintf("failed to save cover for %s - %s: %v", p.album.Artist, p.album.Album, err)
			r.log.Warn("%s", msg)
			if hooks.OnWarning != nil {
				hooks.OnWarning(msg)
			}
		} else {
			sum.Found++
		}

		if hooks.OnAlbumDone != nil {
			hooks.OnAlbumDone(p.album, o.Cover, o.Statistics)
		}
	}

	return sum, nil
}
