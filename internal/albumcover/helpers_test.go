package albumcover

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeProvider answers from a fixed result list.
type fakeProvider struct {
	name     string
	fetchAll bool
	reject   bool
	silent   bool // accepts but never calls back
	inline   bool // calls back from inside StartSearch
	delay    time.Duration
	results  []SearchResult

	mu        sync.Mutex
	started   []uint64
	queries   []string
	cancelled []uint64
}

func (p *fakeProvider) Name() string   { return p.name }
func (p *fakeProvider) FetchAll() bool { return p.fetchAll }

func (p *fakeProvider) StartSearch(artist, album string, id uint64, done FinishedFunc) bool {
	if p.reject {
		return false
	}
	p.mu.Lock()
	p.started = append(p.started, id)
	p.queries = append(p.queries, artist+"|"+album)
	p.mu.Unlock()

	results := append([]SearchResult(nil), p.results...)
	switch {
	case p.silent:
	case p.inline:
		done(id, results)
	default:
		go func() {
			if p.delay > 0 {
				time.Sleep(p.delay)
			}
			done(id, results)
		}()
	}
	return true
}

func (p *fakeProvider) CancelSearch(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, id)
}

func (p *fakeProvider) cancelledIDs() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint64(nil), p.cancelled...)
}

func (p *fakeProvider) startedIDs() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint64(nil), p.started...)
}

// imageTransport serves images from memory. Unknown URLs get a 404 and URLs in
// hang block until the request is cancelled.
type imageTransport struct {
	mu       sync.Mutex
	images   map[string][]byte
	hang     map[string]bool
	requests []string
	aborted  []string
}

func newImageTransport() *imageTransport {
	return &imageTransport{images: make(map[string][]byte), hang: make(map[string]bool)}
}

func (t *imageTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	url := r.URL.String()

	t.mu.Lock()
	t.requests = append(t.requests, url)
	data, ok := t.images[url]
	hang := t.hang[url]
	t.mu.Unlock()

	if hang {
		<-r.Context().Done()
		t.mu.Lock()
		t.aborted = append(t.aborted, url)
		t.mu.Unlock()
		return nil, r.Context().Err()
	}
	if !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader("not found")),
			Request:    r,
		}, nil
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        http.Header{"Content-Type": []string{"image/png"}},
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: int64(len(data)),
		Request:       r,
	}, nil
}

func (t *imageTransport) requested() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.requests...)
}

func (t *imageTransport) abortedURLs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.aborted...)
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func newRegistry(providers ...Provider) *Providers {
	r := NewProviders(nil)
	for _, p := range providers {
		r.AddProvider(p)
	}
	return r
}

// outcomes collects search outcomes.
type outcomes struct {
	mu  sync.Mutex
	got []Outcome
}

func (o *outcomes) add(out Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, out)
}

func (o *outcomes) list() []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Outcome(nil), o.got...)
}
