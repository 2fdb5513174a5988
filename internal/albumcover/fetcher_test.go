package albumcover

import (
	"net/http"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedOutcome struct {
	id      uint64
	cover   *Cover
	results []SearchResult
	stats   Statistics
}

type recorder struct {
	mu  sync.Mutex
	got []recordedOutcome
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnAlbumCoverFetched: func(id uint64, cover *Cover, stats Statistics) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.got = append(r.got, recordedOutcome{id: id, cover: cover, stats: stats})
		},
		OnSearchFinished: func(id uint64, results []SearchResult, stats Statistics) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.got = append(r.got, recordedOutcome{id: id, results: results, stats: stats})
		},
	}
}

func (r *recorder) list() []recordedOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedOutcome(nil), r.got...)
}

func TestFetcher_AdmitsAtMostFive(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := &fakeProvider{name: "silent", silent: true}
		f := NewFetcher(newRegistry(p))
		defer f.Close()

		for range 8 {
			f.FetchAlbumCover("artist", "album", false)
		}
		synctest.Wait()

		assert.Equal(t, 5, f.Active())
		assert.Equal(t, 3, f.Queued())
		assert.Len(t, p.startedIDs(), 5)
	})
}

func TestFetcher_AdmitsQueuedRequestsAsSearchesFinish(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := &fakeProvider{name: "p", delay: time.Second, results: []SearchResult{{ImageURL: "http://img.test/x"}}}
		rec := &recorder{}
		f := NewFetcher(newRegistry(p), WithHooks(rec.hooks()))
		defer f.Close()

		var ids []uint64
		for range 8 {
			ids = append(ids, f.SearchForCovers("artist", "album"))
		}

		time.Sleep(time.Second)
		synctest.Wait()
		assert.Len(t, rec.list(), 5)
		assert.Equal(t, 3, f.Active())
		assert.Equal(t, 0, f.Queued())

		time.Sleep(time.Second)
		synctest.Wait()
		got := rec.list()
		require.Len(t, got, 8)

		seen := map[uint64]int{}
		for _, o := range got {
			seen[o.id]++
			require.Len(t, o.results, 1)
			assert.Equal(t, "p", o.results[0].Provider)
		}
		for _, id := range ids {
			assert.Equal(t, 1, seen[id], "request %d", id)
		}
		assert.Equal(t, 0, f.Active())
	})
}

func TestFetcher_IDsIncrease(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := NewFetcher(newRegistry())
		defer f.Close()

		prev := uint64(0)
		for i := range 10 {
			var id uint64
			if i%2 == 0 {
				id = f.SearchForCovers("a", "b")
			} else {
				id = f.FetchAlbumCover("a", "b", i%3 == 0)
			}
			assert.Greater(t, id, prev)
			prev = id
		}
		synctest.Wait()
	})
}

func TestFetcher_ClearDropsOnlyQueued(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := &fakeProvider{name: "p", delay: time.Second}
		rec := &recorder{}
		f := NewFetcher(newRegistry(p), WithHooks(rec.hooks()))
		defer f.Close()

		for range 7 {
			f.FetchAlbumCover("artist", "album", false)
		}
		synctest.Wait()
		f.Clear()
		assert.Equal(t, 0, f.Queued())
		assert.Equal(t, 5, f.Active())

		time.Sleep(5 * time.Second)
		synctest.Wait()
		got := rec.list()
		assert.Len(t, got, 5)
		for _, o := range got {
			assert.Nil(t, o.cover)
			assert.Equal(t, 1, o.stats.MissingImages)
		}
	})
}

func TestFetcher_CancelSuppressesOutcome(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := &fakeProvider{name: "p", delay: time.Second}
		rec := &recorder{}
		f := NewFetcher(newRegistry(p), WithHooks(rec.hooks()))
		defer f.Close()

		running := f.SearchForCovers("a", "b")
		for range 5 {
			f.SearchForCovers("a", "b")
		}
		queued := f.SearchForCovers("a", "b")
		synctest.Wait()
		require.Equal(t, 2, f.Queued())

		assert.True(t, f.Cancel(queued))
		assert.True(t, f.Cancel(running))
		assert.False(t, f.Cancel(running))
		assert.False(t, f.Cancel(9999))
		synctest.Wait()
		assert.Len(t, p.cancelledIDs(), 1)
		assert.Equal(t, 5, f.Active())

		time.Sleep(3 * time.Second)
		synctest.Wait()
		got := rec.list()
		assert.Len(t, got, 5)
		for _, o := range got {
			assert.NotEqual(t, running, o.id)
			assert.NotEqual(t, queued, o.id)
		}
	})
}

func TestFetcher_CleansQuery(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := &fakeProvider{name: "p"}
		f := NewFetcher(newRegistry(p))
		defer f.Close()

		f.SearchForCovers("  Pink Floyd ", "The Wall (Disc 2)")
		synctest.Wait()

		p.mu.Lock()
		defer p.mu.Unlock()
		assert.Equal(t, []string{"Pink Floyd|The Wall"}, p.queries)
	})
}

func TestFetcher_FetchesCoverEndToEnd(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rt := newImageTransport()
		rt.images["http://img.test/cover"] = pngBytes(t, 640, 640)
		p := &fakeProvider{name: "deezer", fetchAll: true, results: []SearchResult{{ImageURL: "http://img.test/cover"}}}

		rec := &recorder{}
		f := NewFetcher(newRegistry(p), WithHooks(rec.hooks()), WithHTTPClient(&http.Client{Transport: rt}))
		defer f.Close()

		id := f.FetchAlbumCover("Radiohead", "OK Computer", true)
		synctest.Wait()

		got := rec.list()
		require.Len(t, got, 1)
		assert.Equal(t, id, got[0].id)
		require.NotNil(t, got[0].cover)
		assert.Equal(t, "deezer", got[0].cover.Provider)
		assert.Equal(t, 1, got[0].stats.ChosenImagesByProvider["deezer"])
	})
}

func TestFetcher_CloseIgnoresNewRequests(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := NewFetcher(newRegistry())
		f.Close()
		assert.Equal(t, uint64(0), f.FetchAlbumCover("a", "b", false))
		assert.Equal(t, 0, f.Queued())
	})
}

func tickerArmed(f *Fetcher) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticker != nil
}

func TestFetcher_TickRunsOnlyWhileQueued(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := &fakeProvider{name: "p", delay: 3 * time.Second}
		f := NewFetcher(newRegistry(p))
		defer f.Close()

		f.FetchAlbumCover("a", "b", false)
		synctest.Wait()
		assert.False(t, tickerArmed(f), "nothing queued after immediate admission")

		for range 6 {
			f.FetchAlbumCover("a", "b", false)
		}
		synctest.Wait()
		require.Equal(t, 2, f.Queued())
		assert.True(t, tickerArmed(f))

		// Ticks with no free slot keep the tick armed.
		time.Sleep(2500 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, 2, f.Queued())
		assert.True(t, tickerArmed(f))

		// The first searches finish at 3s and the queue drains.
		time.Sleep(time.Second)
		synctest.Wait()
		assert.Equal(t, 0, f.Queued())
		assert.Equal(t, 2, f.Active())

		time.Sleep(time.Second)
		synctest.Wait()
		assert.False(t, tickerArmed(f))

		time.Sleep(3 * time.Second)
		synctest.Wait()
		assert.Equal(t, 0, f.Active())
		assert.False(t, tickerArmed(f))
	})
}

func TestFetcher_ClearStopsTick(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		p := &fakeProvider{name: "p", silent: true}
		f := NewFetcher(newRegistry(p))
		defer f.Close()

		for range 6 {
			f.FetchAlbumCover("a", "b", false)
		}
		synctest.Wait()
		require.True(t, tickerArmed(f))

		f.Clear()
		assert.False(t, tickerArmed(f))
	})
}
