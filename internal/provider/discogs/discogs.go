package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"coverfetch/internal/albumcover"
)

const userAgent = "coverfetch/1.0 +https://github.com/coverfetch/coverfetch"

// Client searches the Discogs database for release artwork. Authenticated
// requests are limited to 60 per minute.
type Client struct {
	httpClient *http.Client
	apiURL     string
	token      string
	limiter    *rate.Limiter
}

// New creates a Discogs client using a personal access token.
func New(token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://api.discogs.com",
		token:      token,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (c *Client) Name() string { return "discogs" }

// Search queries /database/search for releases matching artist and album.
func (c *Client) Search(ctx context.Context, artist, album string) ([]albumcover.SearchResult, error) {
	artist, album = strings.TrimSpace(artist), strings.TrimSpace(album)
	if artist == "" && album == "" {
		return nil, nil
	}
	if c.token == "" {
		return nil, fmt.Errorf("discogs token is not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"type":     {"release"},
		"per_page": {"10"},
	}
	if artist != "" {
		params.Set("artist", artist)
	}
	if album != "" {
		params.Set("release_title", album)
	}

	reqURL := fmt.Sprintf("%s/database/search?%s", c.apiURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discogs request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", fmt.Sprintf("Discogs token=%s", c.token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discogs search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("discogs search returned %d: %s", resp.StatusCode, body)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("unrecognised JSON returned by Discogs: %w", err)
	}

	return parseResults(searchResp), nil
}

func parseResults(resp searchResponse) []albumcover.SearchResult {
	var results []albumcover.SearchResult
	seen := make(map[string]bool)
	for _, r := range resp.Results {
		img := r.CoverImage
		if img == "" || isPlaceholder(img) {
			img = r.Thumb
		}
		if img == "" || isPlaceholder(img) || seen[img] {
			continue
		}
		seen[img] = true

		desc := r.Title
		if r.Year != "" {
			desc = fmt.Sprintf("%s (%s)", desc, r.Year)
		}
		results = append(results, albumcover.SearchResult{
			Description: desc,
			ImageURL:    img,
		})
	}
	return results
}

// isPlaceholder reports whether url points to the spacer image Discogs
// returns for releases without artwork.
func isPlaceholder(url string) bool {
	return strings.HasSuffix(url, "/spacer.gif")
}

type searchResponse struct {
	Results []release `json:"results"`
}

type release struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Year       string `json:"year"`
	Thumb      string `json:"thumb"`
	CoverImage string `json:"cover_image"`
}
