package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coverfetch/internal/albumcover"
	"coverfetch/internal/config"
)

type stubSearcher struct {
	results []albumcover.SearchResult
	err     error
	panics  bool
	block   bool
}

func (s *stubSearcher) Name() string { return "stub" }

func (s *stubSearcher) Search(ctx context.Context, artist, album string) ([]albumcover.SearchResult, error) {
	if s.panics {
		panic("boom")
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.results, s.err
}

type callbacks struct {
	mu  sync.Mutex
	got map[uint64][]albumcover.SearchResult
	ch  chan uint64
}

func newCallbacks() *callbacks {
	return &callbacks{got: make(map[uint64][]albumcover.SearchResult), ch: make(chan uint64, 8)}
}

func (c *callbacks) done(id uint64, results []albumcover.SearchResult) {
	c.mu.Lock()
	c.got[id] = results
	c.mu.Unlock()
	c.ch <- id
}

func (c *callbacks) wait(t *testing.T) uint64 {
	t.Helper()
	select {
	case id := <-c.ch:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for search callback")
		return 0
	}
}

func TestAsync_DeliversResults(t *testing.T) {
	want := []albumcover.SearchResult{{Description: "A - B", ImageURL: "http://img/1"}}
	a := NewAsync(&stubSearcher{results: want}, true, nil)
	defer a.Close()

	cb := newCallbacks()
	require.True(t, a.StartSearch("A", "B", 7, cb.done))
	assert.Equal(t, uint64(7), cb.wait(t))

	cb.mu.Lock()
	defer cb.mu.Unlock()
	assert.Equal(t, want, cb.got[7])
	assert.Equal(t, "stub", a.Name())
	assert.True(t, a.FetchAll())
}

func TestAsync_RejectsEmptyQuery(t *testing.T) {
	a := NewAsync(&stubSearcher{}, false, nil)
	defer a.Close()
	assert.False(t, a.StartSearch(" ", "", 1, newCallbacks().done))
}

func TestAsync_ErrorBecomesEmptyResult(t *testing.T) {
	a := NewAsync(&stubSearcher{err: errors.New("service down")}, false, nil)
	defer a.Close()

	cb := newCallbacks()
	require.True(t, a.StartSearch("A", "B", 1, cb.done))
	cb.wait(t)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	assert.Nil(t, cb.got[1])
}

func TestAsync_RecoversPanic(t *testing.T) {
	a := NewAsync(&stubSearcher{panics: true}, false, nil)
	defer a.Close()

	cb := newCallbacks()
	require.True(t, a.StartSearch("A", "B", 3, cb.done))
	assert.Equal(t, uint64(3), cb.wait(t))
}

func TestAsync_CancelSuppressesCallback(t *testing.T) {
	a := NewAsync(&stubSearcher{block: true}, false, nil)
	defer a.Close()

	cb := newCallbacks()
	require.True(t, a.StartSearch("A", "B", 1, cb.done))
	a.CancelSearch(1)
	a.CancelSearch(42)

	select {
	case id := <-cb.ch:
		t.Fatalf("callback for cancelled search %d", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAsync_CloseRemovesFromRegistry(t *testing.T) {
	a := NewAsync(&stubSearcher{block: true}, false, nil)
	reg := albumcover.NewProviders(nil)
	Register(reg, []*Async{a})
	require.Len(t, reg.List(), 1)

	cb := newCallbacks()
	require.True(t, a.StartSearch("A", "B", 1, cb.done))

	CloseAll([]*Async{a})
	a.Close()

	select {
	case <-a.Done():
	default:
		t.Fatal("Done not closed")
	}
	assert.False(t, a.StartSearch("A", "B", 2, cb.done))
	assert.Eventually(t, func() bool { return len(reg.List()) == 0 }, time.Second, 5*time.Millisecond)

	select {
	case id := <-cb.ch:
		t.Fatalf("callback for search %d after Close", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers = []string{"deezer", "spotify", "lastfm", "bandcamp", "discogs", "nope"}
	cfg.DiscogsToken = "token"

	providers := FromConfig(cfg, nil)
	defer CloseAll(providers)

	var names []string
	for _, p := range providers {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"deezer", "bandcamp", "discogs"}, names)
	assert.True(t, providers[0].FetchAll())
	assert.False(t, providers[1].FetchAll())
	assert.False(t, providers[2].FetchAll())
}

func TestRegisterSkipsDuplicateNames(t *testing.T) {
	reg := albumcover.NewProviders(nil)
	first := NewAsync(&stubSearcher{}, true, nil)
	second := NewAsync(&stubSearcher{}, true, nil)
	defer first.Close()

	added := Register(reg, []*Async{first, second})

	require.Len(t, added, 1)
	assert.Same(t, first, added[0])
	assert.Len(t, reg.List(), 1)
	got, ok := reg.Get("stub")
	require.True(t, ok)
	assert.Same(t, first, got)

	select {
	case <-second.Done():
	default:
		t.Error("duplicate provider was not closed")
	}
	assert.False(t, second.StartSearch("a", "b", 1, func(uint64, []albumcover.SearchResult) {}))
}
