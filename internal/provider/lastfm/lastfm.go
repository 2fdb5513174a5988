package lastfm

import (
	"context"
	"fmt"
	"strings"

	"github.com/shkh/lastfm-go/lastfm"

	"coverfetch/internal/albumcover"
)

// imageSizes in order of preference. Last.fm also returns "small" and
// "medium" which are too small to be worth downloading.
var imageSizes = []string{"mega", "extralarge", "large"}

// maxCalls bounds the album.getInfo calls in flight. lastfm-go uses its own
// http.Client without a context or timeout, so an abandoned call keeps its
// goroutine until the server answers or drops the connection.
const maxCalls = 2

// Client looks up album artwork through album.getInfo.
type Client struct {
	getInfo func(args map[string]interface{}) (lastfm.AlbumGetInfo, error)
	calls   chan struct{}
}

// New creates a Last.fm client with the given API credentials.
func New(apiKey, apiSecret string) *Client {
	api := lastfm.New(apiKey, apiSecret)
	return &Client{getInfo: api.Album.GetInfo, calls: make(chan struct{}, maxCalls)}
}

func (c *Client) Name() string { return "lastfm" }

// Search returns the artwork of the album Last.fm matches for artist and
// album, with autocorrection enabled.
func (c *Client) Search(ctx context.Context, artist, album string) ([]albumcover.SearchResult, error) {
	artist, album = strings.TrimSpace(artist), strings.TrimSpace(album)
	if artist == "" || album == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := c.albumInfo(ctx, lastfm.P{
		"artist":      artist,
		"album":       album,
		"autocorrect": 1,
	})
	if err != nil {
		return nil, err
	}

	images := make([]albumImage, 0, len(info.Images))
	for _, img := range info.Images {
		images = append(images, albumImage{size: img.Size, url: img.Url})
	}

	url := pickImage(images)
	if url == "" {
		return nil, nil
	}
	return []albumcover.SearchResult{{
		Description: describe(info.Artist, info.Name),
		ImageURL:    url,
	}}, nil
}

type infoResult struct {
	info lastfm.AlbumGetInfo
	err  error
}

// albumInfo runs album.getInfo on its own goroutine and gives up when ctx is
// done. The call itself cannot be aborted.
func (c *Client) albumInfo(ctx context.Context, args lastfm.P) (lastfm.AlbumGetInfo, error) {
	select {
	case c.calls <- struct{}{}:
	case <-ctx.Done():
		return lastfm.AlbumGetInfo{}, ctx.Err()
	}

	ch := make(chan infoResult, 1)
	go func() {
		defer func() { <-c.calls }()
		info, err := c.getInfo(args)
		ch <- infoResult{info: info, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return r.info, fmt.Errorf("lastfm album.getInfo: %w", r.err)
		}
		return r.info, nil
	case <-ctx.Done():
		return lastfm.AlbumGetInfo{}, ctx.Err()
	}
}

type albumImage struct {
	size string
	url  string
}

func pickImage(images []albumImage) string {
	for _, size := range imageSizes {
		for _, img := range images {
			if img.size == size && strings.TrimSpace(img.url) != "" {
				return strings.TrimSpace(img.url)
			}
		}
	}
	return ""
}

func describe(artist, album string) string {
	switch {
	case artist == "":
		return album
	case album == "":
		return artist
	}
	return artist + " - " + album
}
