// Package provider adapts the cover-art backends in its sub-packages to the
// albumcover.Provider contract.
//
// Each sub-package implements Searcher, a plain blocking search against one
// service. Async runs those searches on goroutines, honours cancellation and
// turns errors into empty result lists.
package provider

import (
	"context"
	"strings"
	"sync"

	"coverfetch/internal/albumcover"
	"coverfetch/internal/logger"
)

// Searcher is a blocking cover search against a single service.
type Searcher interface {
	Name() string
	Search(ctx context.Context, artist, album string) ([]albumcover.SearchResult, error)
}

// Async implements albumcover.Provider on top of a Searcher.
type Async struct {
	searcher Searcher
	fetchAll bool
	log      *logger.Logger

	ctx  context.Context
	stop context.CancelFunc
	done chan struct{}

	mu       sync.Mutex
	closed   bool
	inflight map[uint64]context.CancelFunc
}

var _ albumcover.Provider = (*Async)(nil)

// NewAsync wraps s. fetchAll marks whether the provider joins bulk fetches.
func NewAsync(s Searcher, fetchAll bool, log *logger.Logger) *Async {
	if log == nil {
		log = logger.Discard()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Async{
		searcher: s,
		fetchAll: fetchAll,
		log:      log,
		ctx:      ctx,
		stop:     stop,
		done:     make(chan struct{}),
		inflight: make(map[uint64]context.CancelFunc),
	}
}

func (a *Async) Name() string   { return a.searcher.Name() }
func (a *Async) FetchAll() bool { return a.fetchAll }

// StartSearch runs the search in the background. Queries with neither artist
// nor album are rejected.
func (a *Async) StartSearch(artist, album string, id uint64, done albumcover.FinishedFunc) bool {
	artist, album = strings.TrimSpace(artist), strings.TrimSpace(album)
	if artist == "" && album == "" {
		return false
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.inflight[id] = cancel
	a.mu.Unlock()

	go func() {
		results := a.search(ctx, artist, album)

		a.mu.Lock()
		_, ok := a.inflight[id]
		delete(a.inflight, id)
		a.mu.Unlock()
		cancel()

		if ok {
			done(id, results)
		}
	}()
	return true
}

// CancelSearch aborts search id. Its completion callback will not be called.
func (a *Async) CancelSearch(id uint64) {
	a.mu.Lock()
	cancel, ok := a.inflight[id]
	delete(a.inflight, id)
	a.mu.Unlock()

	if ok {
		cancel()
	}
}

// Close cancels every running search and closes Done.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	clear(a.inflight)
	a.mu.Unlock()

	a.stop()
	close(a.done)
}

// Done is closed once the provider has been closed.
func (a *Async) Done() <-chan struct{} {
	return a.done
}

func (a *Async) search(ctx context.Context, artist, album string) (results []albumcover.SearchResult) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("%s search panicked: %v", a.Name(), r)
			results = nil
		}
	}()

	results, err := a.searcher.Search(ctx, artist, album)
	if err != nil {
		if ctx.Err() == nil {
			a.log.Warn("%s search for %q / %q failed: %v", a.Name(), artist, album, err)
		}
		return nil
	}
	a.log.Debug("%s found %d covers for %q / %q", a.Name(), len(results), artist, album)
	return results
}
