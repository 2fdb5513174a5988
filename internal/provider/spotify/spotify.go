package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"coverfetch/internal/albumcover"
)

// Client is a Spotify Web API client searching albums for cover art.
type Client struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time

	// Overridable for testing
	tokenURL string
	apiURL   string
}

// New creates a new Spotify client.
func New(clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		tokenURL:     "https://accounts.spotify.com/api/token",
		apiURL:       "https://api.spotify.com/v1",
	}
}

func (c *Client) Name() string { return "spotify" }

// Search queries the Spotify search API for albums.
func (c *Client) Search(ctx context.Context, artist, album string) ([]albumcover.SearchResult, error) {
	q := buildSearchQuery(artist, album)
	if q == "" {
		return nil, nil
	}

	token, err := c.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("spotify auth failed: %w", err)
	}

	reqURL := fmt.Sprintf("%s/search?type=album&limit=10&q=%s", c.apiURL, url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.doWithRetry(req)
	if err != nil {
		return nil, fmt.Errorf("spotify search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("spotify search returned %d: %s", resp.StatusCode, body)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode spotify response: %w", err)
	}

	return parseSearchResults(searchResp), nil
}

func buildSearchQuery(artist, album string) string {
	var parts []string
	if album = strings.TrimSpace(album); album != "" {
		parts = append(parts, "album:"+album)
	}
	if artist = strings.TrimSpace(artist); artist != "" {
		parts = append(parts, "artist:"+artist)
	}
	return strings.Join(parts, " ")
}

// getToken returns a valid access token, refreshing if necessary.
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	data := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode, body)
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	// Refresh a minute early
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)

	return c.accessToken, nil
}

// doWithRetry executes the request, retrying once on 429.
func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		retryAfter := 1
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if parsed, err := strconv.Atoi(ra); err == nil {
				retryAfter = parsed
			}
		}

		select {
		case <-time.After(time.Duration(retryAfter) * time.Second):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}

		retry := req.Clone(req.Context())
		return c.httpClient.Do(retry)
	}

	return resp, nil
}

func parseSearchResults(resp searchResponse) []albumcover.SearchResult {
	var results []albumcover.SearchResult
	for _, item := range resp.Albums.Items {
		img, ok := largestImage(item.Images)
		if !ok {
			continue
		}

		var artists []string
		for _, a := range item.Artists {
			artists = append(artists, a.Name)
		}

		desc := strings.Join(artists, ", ") + " - " + item.Name
		if y := parseYear(item.ReleaseDate); y > 0 {
			desc = fmt.Sprintf("%s (%d)", desc, y)
		}

		results = append(results, albumcover.SearchResult{
			Description: desc,
			ImageURL:    img.URL,
		})
	}
	return results
}

// largestImage picks the image with the most pixels. Spotify usually lists
// them largest first but does not promise it.
func largestImage(images []image) (image, bool) {
	var best image
	found := false
	for _, img := range images {
		if img.URL == "" {
			continue
		}
		if !found || img.Width*img.Height > best.Width*best.Height {
			best = img
			found = true
		}
	}
	return best, found
}

func parseYear(releaseDate string) int {
	if len(releaseDate) >= 4 {
		if y, err := strconv.Atoi(releaseDate[:4]); err == nil {
			return y
		}
	}
	return 0
}

// Spotify API response types

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type searchResponse struct {
	Albums struct {
		Items []albumItem `json:"items"`
	} `json:"albums"`
}

type albumItem struct {
	Name        string   `json:"name"`
	Artists     []artist `json:"artists"`
	ReleaseDate string   `json:"release_date"`
	TotalTracks int      `json:"total_tracks"`
	Images      []image  `json:"images"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
