package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pborman/uuid"
	"golang.org/x/time/rate"
	caa "gopkg.in/mineo/gocaa.v1"

	"coverfetch/internal/albumcover"
)

const maxReleases = 5

// Client searches MusicBrainz releases and points at their Cover Art Archive
// front images.
type Client struct {
	httpClient *http.Client
	apiURL     string
	caaURL     string
	limiter    *rate.Limiter
	minScore   int
	imageSize  int
}

// New creates a new MusicBrainz client. Releases scoring below minScore are
// ignored; size is the CAA thumbnail edge (250, 500 or 1200, anything else
// selects the original image).
func New(minScore, size int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://musicbrainz.org/ws/2",
		caaURL:     "https://coverartarchive.org",
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		minScore:   minScore,
		imageSize:  size,
	}
}

func (c *Client) Name() string { return "musicbrainz" }

// Search queries the MusicBrainz release search API.
func (c *Client) Search(ctx context.Context, artist, album string) ([]albumcover.SearchResult, error) {
	q := buildQuery(artist, album)
	if q == "" {
		return nil, nil
	}

	// MusicBrainz allows one request per second.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/release?query=%s&fmt=json&limit=10", c.apiURL, url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create musicbrainz request: %w", err)
	}
	req.Header.Set("User-Agent", "coverfetch/1.0 ( https://github.com/coverfetch/coverfetch )")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("musicbrainz search returned %d: %s", resp.StatusCode, body)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode musicbrainz response: %w", err)
	}

	return c.parseReleases(searchResp.Releases), nil
}

// doWithRetry executes the request, retrying once on 429/503 after Retry-After.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		resp.Body.Close()
		retryAfter := 2
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if parsed, err := strconv.Atoi(ra); err == nil {
				retryAfter = parsed
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(retryAfter) * time.Second):
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.httpClient.Do(req.Clone(ctx))
	}

	return resp, nil
}

func buildQuery(artist, album string) string {
	var parts []string
	if album != "" {
		parts = append(parts, fmt.Sprintf("release:%q", album))
	}
	if artist != "" {
		parts = append(parts, fmt.Sprintf("artist:%q", artist))
	}
	return strings.Join(parts, " AND ")
}

func (c *Client) parseReleases(releases []release) []albumcover.SearchResult {
	var matches []release
	seen := make(map[string]bool)
	for _, rel := range releases {
		if rel.Score < c.minScore || seen[rel.ID] {
			continue
		}
		var mbid uuid.UUID = caa.StringToUUID(rel.ID)
		if mbid == nil {
			continue
		}
		rel.ID = mbid.String()
		seen[rel.ID] = true
		matches = append(matches, rel)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return releaseScore(matches[i]) > releaseScore(matches[j])
	})
	if len(matches) > maxReleases {
		matches = matches[:maxReleases]
	}

	results := make([]albumcover.SearchResult, 0, len(matches))
	for _, rel := range matches {
		desc := joinArtistCredits(rel.ArtistCredit) + " - " + rel.Title
		if len(rel.Date) >= 4 {
			desc += " (" + rel.Date[:4] + ")"
		}
		results = append(results, albumcover.SearchResult{
			Description: desc,
			ImageURL:    c.frontURL(rel.ID),
		})
	}
	return results
}

func (c *Client) frontURL(mbid string) string {
	switch c.imageSize {
	case 250, 500, 1200:
		return fmt.Sprintf("%s/release/%s/front-%d", c.caaURL, mbid, c.imageSize)
	}
	return fmt.Sprintf("%s/release/%s/front", c.caaURL, mbid)
}

func joinArtistCredits(credits []artistCredit) string {
	var parts []string
	for _, ac := range credits {
		parts = append(parts, ac.Artist.Name)
	}
	return strings.Join(parts, ", ")
}

// releaseScore ranks official albums without secondary types first.
func releaseScore(rel release) int {
	score := 0

	if rel.Status == "Official" {
		score += 4
	}

	if rel.ReleaseGroup.PrimaryType == "Album" {
		score += 2
	}

	if len(rel.ReleaseGroup.SecondaryTypes) == 0 {
		score += 1
	}

	return score
}

// MusicBrainz API response types

type searchResponse struct {
	Releases []release `json:"releases"`
}

type artistCredit struct {
	Artist artistInfo `json:"artist"`
}

type artistInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type release struct {
	ID           string         `json:"id"`
	Score        int            `json:"score"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ReleaseGroup releaseGroup   `json:"release-group"`
}

type releaseGroup struct {
	PrimaryType    string   `json:"primary-type"`
	SecondaryTypes []string `json:"secondary-types"`
}
