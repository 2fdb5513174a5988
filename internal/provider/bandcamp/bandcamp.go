package bandcamp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"coverfetch/internal/albumcover"
)

const maxResults = 10

// artSizeRe matches the size suffix of a bcbits image, e.g. "a123_7.jpg".
var artSizeRe = regexp.MustCompile(`_\d+\.(jpg|png)$`)

// Client scrapes the Bandcamp search page for album artwork.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a new Bandcamp client.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://bandcamp.com",
	}
}

func (c *Client) Name() string { return "bandcamp" }

// Search runs an album search and returns the art of each hit.
func (c *Client) Search(ctx context.Context, artist, album string) ([]albumcover.SearchResult, error) {
	q := strings.TrimSpace(strings.Join([]string{strings.TrimSpace(artist), strings.TrimSpace(album)}, " "))
	if q == "" {
		return nil, nil
	}

	params := url.Values{"q": {q}, "item_type": {"a"}}
	reqURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bandcamp request: %w", err)
	}
	req.Header.Set("User-Agent", "coverfetch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bandcamp search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bandcamp search returned %d: %s", resp.StatusCode, body)
	}

	return parseSearchPage(resp.Body)
}

func parseSearchPage(r io.Reader) ([]albumcover.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("error loading bandcamp search page: %w", err)
	}

	var results []albumcover.SearchResult
	doc.Find(".searchresult").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if itemType := strings.TrimSpace(s.Find(".itemtype").Text()); itemType != "" && !strings.EqualFold(itemType, "album") {
			return true
		}

		src, ok := s.Find(".art img").First().Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			return true
		}

		title := collapse(s.Find(".heading").First().Text())
		by := strings.TrimPrefix(collapse(s.Find(".subhead").First().Text()), "by ")
		desc := title
		if by != "" {
			desc = by + " - " + title
		}

		results = append(results, albumcover.SearchResult{
			Description: desc,
			ImageURL:    fullSizeArt(strings.TrimSpace(src)),
		})
		return len(results) < maxResults
	})

	return results, nil
}

// fullSizeArt rewrites a thumbnail URL to the original upload, which
// Bandcamp serves under the _10 suffix.
func fullSizeArt(src string) string {
	return artSizeRe.ReplaceAllString(src, "_10.$1")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
