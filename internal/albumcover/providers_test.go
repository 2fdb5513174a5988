package albumcover

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closingProvider struct {
	fakeProvider
	done chan struct{}
}

func (p *closingProvider) Done() <-chan struct{} { return p.done }

func TestProviders_AddListRemove(t *testing.T) {
	r := NewProviders(nil)
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}

	r.AddProvider(a)
	r.AddProvider(b)
	r.AddProvider(a)
	require.Equal(t, []Provider{a, b}, r.List())

	got, ok := r.Get("b")
	require.True(t, ok)
	assert.Same(t, b, got)

	snapshot := r.List()
	r.RemoveProvider(a)
	assert.Equal(t, []Provider{b}, r.List())
	assert.Len(t, snapshot, 2, "snapshot changed after removal")

	_, ok = r.Get("a")
	assert.False(t, ok)
}

func TestProviders_RemoveUnknownIsHarmless(t *testing.T) {
	r := NewProviders(nil)
	r.AddProvider(&fakeProvider{name: "a"})
	r.RemoveProvider(&fakeProvider{name: "a"})
	assert.Len(t, r.List(), 1)
}

func TestProviders_RemovesClosedProvider(t *testing.T) {
	r := NewProviders(nil)
	p := &closingProvider{fakeProvider: fakeProvider{name: "closing"}, done: make(chan struct{})}
	r.AddProvider(p)
	require.Len(t, r.List(), 1)

	close(p.done)
	assert.Eventually(t, func() bool { return len(r.List()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestProviders_NextIDUnique(t *testing.T) {
	r := NewProviders(nil)

	const workers, perWorker = 8, 200
	ids := make(chan uint64, workers*perWorker)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				ids <- r.NextID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestProviders_ConcurrentAccess(t *testing.T) {
	r := NewProviders(nil)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := &fakeProvider{name: string(rune('a' + i))}
			r.AddProvider(p)
			_ = r.List()
			r.RemoveProvider(p)
		}()
	}
	wg.Wait()
	assert.Empty(t, r.List())
}
