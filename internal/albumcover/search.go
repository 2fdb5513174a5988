package albumcover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"coverfetch/internal/logger"
)

const (
	// SearchTimeout bounds how long a search waits for its providers.
	SearchTimeout = 10 * time.Second
	// ImageTimeout bounds each candidate image download.
	ImageTimeout = 2500 * time.Millisecond

	maxImageBytes = 20 << 20
	userAgent     = "coverfetch/1.0"
)

var errImageTooBig = errors.New("image exceeds size limit")

type searchPhase int

const (
	phaseCreated searchPhase = iota
	phaseAwaitingProviders
	phaseAwaitingImages
	phaseFinished
)

// Search runs one request against every registered provider and reports a
// single Outcome through its finished callback. All search state is owned by
// the goroutine started by Start; provider callbacks and image downloads reach
// it through an inbox.
type Search struct {
	req       SearchRequest
	providers *Providers
	client    *http.Client
	log       *logger.Logger
	finished  func(Outcome)

	inbox    *inbox
	cancelCh chan struct{}

	mu        sync.Mutex
	started   bool
	cancelled bool
	emitted   bool

	// loop state
	phase      searchPhase
	pending    map[uint64]Provider
	results    []SearchResult
	fetches    map[*imageFetch]struct{}
	candidates candidates
	stats      Statistics
}

type imageFetch struct {
	result SearchResult
	cancel context.CancelFunc
}

type providerDone struct {
	id      uint64
	results []SearchResult
}

type imageDone struct {
	fetch *imageFetch
	cover *Cover
	bytes int64
	err   error
}

// NewSearch prepares a search for req. finished receives the outcome unless the
// search is cancelled first.
func NewSearch(req SearchRequest, providers *Providers, client *http.Client, log *logger.Logger, finished func(Outcome)) *Search {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Search{
		req:       req,
		providers: providers,
		client:    client,
		log:       log,
		finished:  finished,
		inbox:     newInbox(),
		cancelCh:  make(chan struct{}),
		pending:   make(map[uint64]Provider),
		fetches:   make(map[*imageFetch]struct{}),
	}
}

// Start launches the search. It returns immediately.
func (s *Search) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.cancelled {
		return
	}
	s.started = true
	go s.run()
}

// Cancel stops the search. Pending provider searches and image downloads are
// cancelled and no outcome is reported afterwards.
func (s *Search) Cancel() {
	s.mu.Lock()
	if s.cancelled || s.emitted {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.mu.Unlock()
	close(s.cancelCh)
}

func (s *Search) run() {
	s.phase = phaseAwaitingProviders
	s.startProviders()

	var deadline <-chan time.Time
	if len(s.pending) > 0 {
		timer := time.NewTimer(SearchTimeout)
		defer timer.Stop()
		deadline = timer.C
	} else {
		s.allProvidersFinished()
	}

	for s.phase != phaseFinished {
		select {
		case <-s.cancelCh:
			s.abort()
			return
		case <-s.inbox.notify:
			for _, ev := range s.inbox.drain() {
				if s.phase == phaseFinished {
					break
				}
				s.handle(ev)
			}
		case <-deadline:
			deadline = nil
			if s.phase == phaseAwaitingProviders {
				s.providersTimedOut()
			}
		}
	}
}

func (s *Search) startProviders() {
	for _, p := range s.providers.List() {
		if s.req.FetchAll && !p.FetchAll() {
			s.log.Debug("skipping %s for bulk fetch", p.Name())
			continue
		}

		id := s.providers.NextID()
		// Registered before StartSearch since done may fire synchronously.
		s.pending[id] = p
		if !p.StartSearch(s.req.Artist, s.req.Album, id, s.providerFinished) {
			delete(s.pending, id)
			continue
		}
		s.stats.NetworkRequests++
	}
}

func (s *Search) providerFinished(id uint64, results []SearchResult) {
	s.inbox.push(providerDone{id: id, results: results})
}

func (s *Search) handle(ev any) {
	switch ev := ev.(type) {
	case providerDone:
		s.handleProviderDone(ev)
	case imageDone:
		s.handleImageDone(ev)
	}
}

func (s *Search) handleProviderDone(ev providerDone) {
	p, ok := s.pending[ev.id]
	if !ok || s.phase != phaseAwaitingProviders {
		return
	}
	delete(s.pending, ev.id)

	name := p.Name()
	for _, r := range ev.results {
		r.Provider = name
		s.results = append(s.results, r)
		increment(&s.stats.TotalImagesByProvider, name)
	}
	s.log.Debug("%s returned %d results", name, len(ev.results))

	if len(s.pending) == 0 {
		s.allProvidersFinished()
	}
}

func (s *Search) providersTimedOut() {
	for id, p := range s.pending {
		s.log.Debug("%s timed out", p.Name())
		p.CancelSearch(id)
		delete(s.pending, id)
	}
	s.allProvidersFinished()
}

func (s *Search) allProvidersFinished() {
	if s.req.SearchOnly {
		results := make([]SearchResult, len(s.results))
		copy(results, s.results)
		s.emit(Outcome{Request: s.req, Results: results, Statistics: s.stats.clone()})
		return
	}

	if len(s.results) == 0 {
		s.sendBestImage()
		return
	}

	sort.SliceStable(s.results, func(i, j int) bool {
		return s.results[i].Provider < s.results[j].Provider
	})
	s.phase = phaseAwaitingImages
	s.fetchMoreImages()
}

// fetchMoreImages starts one round: the next untried result of every provider
// that still has one.
func (s *Search) fetchMoreImages() {
	var rest []SearchResult
	for i, r := range s.results {
		if i > 0 && r.Provider == s.results[i-1].Provider {
			rest = append(rest, r)
			continue
		}
		s.fetchImage(r)
	}
	s.results = rest

	if len(s.fetches) == 0 {
		s.sendBestImage()
	}
}

func (s *Search) fetchImage(r SearchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), ImageTimeout)
	f := &imageFetch{result: r, cancel: cancel}
	s.fetches[f] = struct{}{}
	s.stats.NetworkRequests++

	go func() {
		cover, n, err := s.download(ctx, r)
		s.inbox.push(imageDone{fetch: f, cover: cover, bytes: n, err: err})
	}()
}

func (s *Search) download(ctx context.Context, r SearchResult) (*Cover, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ImageURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	n := int64(len(data))
	if err != nil {
		return nil, n, fmt.Errorf("failed to read image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, n, fmt.Errorf("image request returned %d", resp.StatusCode)
	}
	if n > maxImageBytes {
		return nil, n, errImageTooBig
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, n, err
	}
	return &Cover{
		Provider: r.Provider,
		URL:      r.ImageURL,
		Image:    img,
		Data:     data,
		Score:    ScoreImage(img),
	}, n, nil
}

func (s *Search) handleImageDone(ev imageDone) {
	if _, ok := s.fetches[ev.fetch]; !ok {
		return
	}
	delete(s.fetches, ev.fetch)
	ev.fetch.cancel()

	s.stats.BytesTransferred += ev.bytes
	if ev.err != nil {
		s.log.Debug("dropping %s image %s: %v", ev.fetch.result.Provider, ev.fetch.result.ImageURL, ev.err)
	} else {
		s.candidates.add(ev.cover)
	}

	// Each round is a barrier.
	if len(s.fetches) > 0 {
		return
	}
	if best := s.candidates.best(); best != nil && best.Score >= GoodScore {
		s.sendBestImage()
		return
	}
	s.fetchMoreImages()
}

func (s *Search) sendBestImage() {
	best := s.candidates.best()
	if best != nil {
		w, h := best.Size()
		s.stats.ChosenImages++
		increment(&s.stats.ChosenImagesByProvider, best.Provider)
		s.stats.ChosenWidth += int64(w)
		s.stats.ChosenHeight += int64(h)
		s.log.Debug("chose %s image %s (%dx%d, score %.3f)", best.Provider, best.URL, w, h, best.Score)
	} else {
		s.stats.MissingImages++
	}
	s.emit(Outcome{Request: s.req, Cover: best, Statistics: s.stats.clone()})
}

func (s *Search) emit(o Outcome) {
	s.phase = phaseFinished

	s.mu.Lock()
	if s.cancelled || s.emitted {
		s.mu.Unlock()
		return
	}
	s.emitted = true
	s.mu.Unlock()

	if s.finished != nil {
		s.finished(o)
	}
}

func (s *Search) abort() {
	for id, p := range s.pending {
		p.CancelSearch(id)
		delete(s.pending, id)
	}
	for f := range s.fetches {
		f.cancel()
		delete(s.fetches, f)
	}
	s.phase = phaseFinished
	s.log.Debug("search cancelled")
}

// inbox is an unbounded, non-blocking event queue with a wakeup channel.
type inbox struct {
	mu     sync.Mutex
	items  []any
	notify chan struct{}
}

func newInbox() *inbox {
	return &inbox{notify: make(chan struct{}, 1)}
}

func (b *inbox) push(ev any) {
	b.mu.Lock()
	b.items = append(b.items, ev)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *inbox) drain() []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}
