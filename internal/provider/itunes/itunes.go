package itunes

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

// Client searches the iTunes Search API for album artwork.
type Client struct {
	httpClient *http.Client
	apiURL     string
}

// New creates a new iTunes client.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://itunes.apple.com/search",
	}
}

func (c *Client) Name() string { return "itunes" }

// Search queries the iTunes Search API for albums.
func (c *Client) Search(ctx context.Context, artist, album string) ([]albumcover.SearchResult, error) {
	term := strings.TrimSpace(artist + " " + album)
	if term == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("term", term)
	params.Set("media", "music")
	params.Set("entity", "album")
	params.Set("limit", "10")

	reqURL := fmt.Sprintf("%s?%s", c.apiURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create itunes request: %w", err)
	}
	req.Header.Set("User-Agent", "coverfetch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("itunes search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("itunes search returned %d: %s", resp.StatusCode, body)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode itunes response: %w", err)
	}

	return parseResults(searchResp.Results), nil
}

func parseResults(items []resultItem) []albumcover.SearchResult {
	var results []albumcover.SearchResult
	for _, item := range items {
		if item.ArtworkURL100 == "" {
			continue
		}
		// Upgrade to 600x600 artwork
		artworkURL := strings.Replace(item.ArtworkURL100, "100x100", "600x600", 1)

		desc := item.ArtistName + " - " + item.CollectionName
		if len(item.ReleaseDate) >= 4 {
			desc += " (" + item.ReleaseDate[:4] + ")"
		}

		results = append(results, albumcover.SearchResult{
			Description: desc,
			ImageURL:    artworkURL,
		})
	}
	return results
}

// iTunes Search API response types

type searchResponse struct {
	ResultCount int          `json:"resultCount"`
	Results     []resultItem `json:"results"`
}

type resultItem struct {
	WrapperType    string `json:"wrapperType"`
	ArtistName     string `json:"artistName"`
	CollectionName string `json:"collectionName"`
	ArtworkURL100  string `json:"artworkUrl100"`
	ReleaseDate    string `json:"releaseDate"`
}
