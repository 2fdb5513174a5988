package albumcover

import "image"

// SearchRequest is one top-level ask for cover art.
type SearchRequest struct {
	ID         uint64
	Artist     string
	Album      string
	SearchOnly bool
	FetchAll   bool
}

// SearchResult is a single image candidate returned by a provider.
// Provider is filled in by the search; providers leave it empty.
type SearchResult struct {
	Provider    string `json:"provider"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// Cover is the image chosen for a request.
type Cover struct {
	Provider string
	URL      string
	Image    image.Image
	Data     []byte
	Score    float64
}

// Size returns the pixel dimensions of the cover image.
func (c *Cover) Size() (width, height int) {
	if c == nil || c.Image == nil {
		return 0, 0
	}
	b := c.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Outcome is the terminal result of a Search. Results is set for search-only
// requests, Cover (possibly nil) for the others.
type Outcome struct {
	Request    SearchRequest
	Results    []SearchResult
	Cover      *Cover
	Statistics Statistics
}
