package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coverfetch/internal/albumcover"
)

// Client searches Deezer albums for cover art.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// New creates a new Deezer client.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://api.deezer.com",
	}
}

func (c *Client) Name() string { return "deezer" }

// Search queries the Deezer album search API.
func (c *Client) Search(ctx context.Context, artist, album string) ([]albumcover.SearchResult, error) {
	q := buildQuery(artist, album)
	if q == "" {
		return nil, nil
	}

	reqURL := fmt.Sprintf("%s/search/album?q=%s&limit=10", c.apiURL, url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create deezer request: %w", err)
	}
	req.Header.Set("User-Agent", "coverfetch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deezer search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("deezer search returned %d: %s", resp.StatusCode, body)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode deezer response: %w", err)
	}

	if searchResp.Error != nil {
		return nil, fmt.Errorf("deezer API error: %s", searchResp.Error.Message)
	}

	return parseResults(searchResp.Data), nil
}

func buildQuery(artist, album string) string {
	escape := func(s string) string {
		return strings.ReplaceAll(s, "\"", "")
	}
	var parts []string
	if artist != "" {
		parts = append(parts, "artist:\""+escape(artist)+"\"")
	}
	if album != "" {
		parts = append(parts, "album:\""+escape(album)+"\"")
	}
	return strings.Join(parts, " ")
}

func parseResults(items []albumItem) []albumcover.SearchResult {
	var results []albumcover.SearchResult
	for _, item := range items {
		imageURL := item.CoverXL
		if imageURL == "" {
			imageURL = item.CoverBig
		}
		if imageURL == "" {
			continue
		}
		results = append(results, albumcover.SearchResult{
			Description: item.Artist.Name + " - " + item.Title,
			ImageURL:    imageURL,
		})
	}
	return results
}

// Deezer API response types

type searchResponse struct {
	Data  []albumItem `json:"data"`
	Error *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type albumItem struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	CoverBig string `json:"cover_big"`
	CoverXL  string `json:"cover_xl"`
	Artist   artist `json:"artist"`
}

type artist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
