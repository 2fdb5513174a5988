package albumcover

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"coverfetch/internal/logger"
)

const (
	// MaxConcurrentRequests is the number of searches a Fetcher runs at once.
	MaxConcurrentRequests = 5
	// StartInterval is the period of the admission tick while requests are queued.
	StartInterval = 1000 * time.Millisecond
)

// Hooks receive the outcome of each request. They are called from internal
// goroutines with no Fetcher lock held.
type Hooks struct {
	// OnAlbumCoverFetched reports the chosen cover, or nil if none was found.
	OnAlbumCoverFetched func(id uint64, cover *Cover, stats Statistics)
	// OnSearchFinished reports the results of a search-only request.
	OnSearchFinished func(id uint64, results []SearchResult, stats Statistics)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for image downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// WithHooks sets the outcome callbacks.
func WithHooks(h Hooks) Option {
	return func(f *Fetcher) { f.hooks = h }
}

// Fetcher queues cover requests and admits them into searches, at most
// MaxConcurrentRequests at a time.
type Fetcher struct {
	providers *Providers
	client    *http.Client
	log       *logger.Logger
	hooks     Hooks

	mu     sync.Mutex
	nextID uint64
	queue  []SearchRequest
	active map[uint64]*Search
	ticker *time.Timer
	closed bool
}

// NewFetcher creates a Fetcher searching the given registry.
func NewFetcher(providers *Providers, opts ...Option) *Fetcher {
	f := &Fetcher{
		providers: providers,
		client:    &http.Client{},
		log:       logger.Discard(),
		active:    make(map[uint64]*Search),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SearchForCovers queues a request that only collects provider results.
func (f *Fetcher) SearchForCovers(artist, album string) uint64 {
	return f.enqueue(SearchRequest{Artist: artist, Album: album, SearchOnly: true})
}

// FetchAlbumCover queues a request that downloads and picks the best cover.
// With fetchAll set, providers that opt out of bulk fetching are skipped.
func (f *Fetcher) FetchAlbumCover(artist, album string, fetchAll bool) uint64 {
	return f.enqueue(SearchRequest{Artist: artist, Album: album, FetchAll: fetchAll})
}

func (f *Fetcher) enqueue(req SearchRequest) uint64 {
	req.Artist = strings.TrimSpace(req.Artist)
	req.Album = CleanAlbum(req.Album)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0
	}
	f.nextID++
	req.ID = f.nextID
	f.queue = append(f.queue, req)
	f.log.Debug("queued request %d: %q / %q", req.ID, req.Artist, req.Album)

	f.startRequestsLocked()
	f.armTickerLocked()
	return req.ID
}

// Clear drops every request that has not been admitted yet. Running searches
// are not affected.
func (f *Fetcher) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n := len(f.queue); n > 0 {
		f.log.Debug("dropping %d queued requests", n)
	}
	f.queue = nil
	f.stopTickerLocked()
}

// Cancel drops a queued request or cancels a running search. No outcome is
// reported for it. It returns false if id is unknown or already finished.
func (f *Fetcher) Cancel(id uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, req := range f.queue {
		if req.ID == id {
			f.queue = append(f.queue[:i:i], f.queue[i+1:]...)
			if len(f.queue) == 0 {
				f.stopTickerLocked()
			}
			return true
		}
	}

	s, ok := f.active[id]
	if !ok {
		return false
	}
	delete(f.active, id)
	s.Cancel()
	f.startRequestsLocked()
	f.armTickerLocked()
	return true
}

// Active returns the number of running searches.
func (f *Fetcher) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

// Queued returns the number of requests waiting for admission.
func (f *Fetcher) Queued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Close cancels all queued and running requests. Later requests are ignored.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.queue = nil
	f.stopTickerLocked()
	for id, s := range f.active {
		s.Cancel()
		delete(f.active, id)
	}
}

func (f *Fetcher) startRequestsLocked() {
	for len(f.active) < MaxConcurrentRequests && len(f.queue) > 0 {
		req := f.queue[0]
		f.queue = f.queue[1:]

		s := NewSearch(req, f.providers, f.client, f.log.WithField("request", req.ID), f.searchFinished)
		f.active[req.ID] = s
		s.Start()
	}
}

func (f *Fetcher) armTickerLocked() {
	if f.ticker != nil || len(f.queue) == 0 || f.closed {
		return
	}
	f.ticker = time.AfterFunc(StartInterval, f.tick)
}

func (f *Fetcher) stopTickerLocked() {
	if f.ticker != nil {
		f.ticker.Stop()
		f.ticker = nil
	}
}

func (f *Fetcher) tick() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ticker == nil {
		return
	}
	f.startRequestsLocked()
	if len(f.queue) == 0 {
		f.ticker = nil
		return
	}
	f.ticker.Reset(StartInterval)
}

func (f *Fetcher) searchFinished(o Outcome) {
	id := o.Request.ID

	f.mu.Lock()
	if _, ok := f.active[id]; !ok {
		f.mu.Unlock()
		return
	}
	delete(f.active, id)
	hooks := f.hooks
	f.mu.Unlock()

	if o.Request.SearchOnly {
		if hooks.OnSearchFinished != nil {
			hooks.OnSearchFinished(id, o.Results, o.Statistics)
		}
	} else if hooks.OnAlbumCoverFetched != nil {
		hooks.OnAlbumCoverFetched(id, o.Cover, o.Statistics)
	}

	f.mu.Lock()
	f.startRequestsLocked()
	f.armTickerLocked()
	f.mu.Unlock()
}
