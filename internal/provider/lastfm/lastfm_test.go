package lastfm

import (
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shkh/lastfm-go/lastfm"
)

func TestPickImage(t *testing.T) {
	tests := []struct {
		name   string
		images []albumImage
		want   string
	}{
		{
			name: "prefers mega",
			images: []albumImage{
				{size: "small", url: "s"},
				{size: "extralarge", url: "xl"},
				{size: "mega", url: "m"},
			},
			want: "m",
		},
		{
			name: "falls back to extralarge",
			images: []albumImage{
				{size: "large", url: "l"},
				{size: "extralarge", url: "xl"},
				{size: "mega", url: ""},
			},
			want: "xl",
		},
		{
			name:   "ignores small sizes",
			images: []albumImage{{size: "small", url: "s"}, {size: "medium", url: "m"}},
			want:   "",
		},
		{
			name:   "trims whitespace",
			images: []albumImage{{size: "large", url: "  https://lastfm.freetls.fastly.net/i/u/174s/x.png\n"}},
			want:   "https://lastfm.freetls.fastly.net/i/u/174s/x.png",
		},
		{
			name: "empty",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickImage(tt.images); got != tt.want {
				t.Errorf("pickImage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		artist, album, want string
	}{
		{"Radiohead", "OK Computer", "Radiohead - OK Computer"},
		{"", "OK Computer", "OK Computer"},
		{"Radiohead", "", "Radiohead"},
	}
	for _, tt := range tests {
		if got := describe(tt.artist, tt.album); got != tt.want {
			t.Errorf("describe(%q, %q) = %q, want %q", tt.artist, tt.album, got, tt.want)
		}
	}
}

func TestSearchSkipsIncompleteQuery(t *testing.T) {
	c := New("key", "secret")
	for _, q := range [][2]string{{"", "OK Computer"}, {"Radiohead", " "}} {
		results, err := c.Search(context.Background(), q[0], q[1])
		if err != nil || results != nil {
			t.Errorf("Search(%q, %q) = %v, %v; want nil, nil", q[0], q[1], results, err)
		}
	}
}

func TestSearchHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New("key", "secret").Search(ctx, "Radiohead", "OK Computer"); err == nil {
		t.Error("expected context error")
	}
}

func fakeInfo(t *testing.T, doc string) lastfm.AlbumGetInfo {
	t.Helper()
	var info lastfm.AlbumGetInfo
	if err := xml.Unmarshal([]byte(doc), &info); err != nil {
		t.Fatal(err)
	}
	return info
}

func TestSearchReturnsLargestImage(t *testing.T) {
	info := fakeInfo(t, `<album><name>OK Computer</name><artist>Radiohead</artist>`+
		`<image size="large">http://img/l.png</image><image size="mega">http://img/m.png</image></album>`)

	c := New("key", "secret")
	var got map[string]interface{}
	c.getInfo = func(args map[string]interface{}) (lastfm.AlbumGetInfo, error) {
		got = args
		return info, nil
	}

	results, err := c.Search(context.Background(), " Radiohead ", "OK Computer")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].ImageURL != "http://img/m.png" {
		t.Errorf("ImageURL = %q, want %q", results[0].ImageURL, "http://img/m.png")
	}
	if results[0].Description != "Radiohead - OK Computer" {
		t.Errorf("Description = %q", results[0].Description)
	}
	if got["artist"] != "Radiohead" || got["album"] != "OK Computer" || got["autocorrect"] != 1 {
		t.Errorf("args = %v", got)
	}
}

func TestSearchWrapsAPIError(t *testing.T) {
	c := New("key", "secret")
	c.getInfo = func(map[string]interface{}) (lastfm.AlbumGetInfo, error) {
		return lastfm.AlbumGetInfo{}, errors.New("album not found")
	}
	_, err := c.Search(context.Background(), "a", "b")
	if err == nil || !strings.Contains(err.Error(), "album not found") {
		t.Errorf("error = %v, want wrapped api error", err)
	}
}

func TestSearchReturnsWhenCancelledMidCall(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	c := New("key", "secret")
	c.getInfo = func(map[string]interface{}) (lastfm.AlbumGetInfo, error) {
		<-release
		return lastfm.AlbumGetInfo{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Search(ctx, "a", "b"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}

func TestSearchBoundsHungCalls(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32

	c := New("key", "secret")
	c.getInfo = func(map[string]interface{}) (lastfm.AlbumGetInfo, error) {
		started.Add(1)
		<-release
		return lastfm.AlbumGetInfo{}, nil
	}

	for range maxCalls + 2 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		c.Search(ctx, "a", "b")
		cancel()
	}
	if n := len(c.calls); n != maxCalls {
		t.Errorf("%d calls in flight, want %d", n, maxCalls)
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for len(c.calls) > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if len(c.calls) != 0 {
		t.Errorf("%d calls still in flight after release", len(c.calls))
	}
	if n := started.Load(); n != maxCalls {
		t.Errorf("%d calls reached the API, want %d", n, maxCalls)
	}
}
