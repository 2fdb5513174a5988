package albumcover

import "fmt"

// Statistics accumulates counters for one or more searches.
type Statistics struct {
	NetworkRequests        int64          `json:"network_requests"`
	BytesTransferred       int64          `json:"bytes_transferred"`
	ChosenImages           int            `json:"chosen_images"`
	MissingImages          int            `json:"missing_images"`
	ChosenImagesByProvider map[string]int `json:"chosen_images_by_provider,omitempty"`
	TotalImagesByProvider  map[string]int `json:"total_images_by_provider,omitempty"`
	ChosenWidth            int64          `json:"chosen_width"`
	ChosenHeight           int64          `json:"chosen_height"`
}

// Add folds other into s.
func (s *Statistics) Add(other Statistics) {
	s.NetworkRequests += other.NetworkRequests
	s.BytesTransferred += other.BytesTransferred
	s.ChosenImages += other.ChosenImages
	s.MissingImages += other.MissingImages
	s.ChosenWidth += other.ChosenWidth
	s.ChosenHeight += other.ChosenHeight
	s.ChosenImagesByProvider = addCounts(s.ChosenImagesByProvider, other.ChosenImagesByProvider)
	s.TotalImagesByProvider = addCounts(s.TotalImagesByProvider, other.TotalImagesByProvider)
}

// AverageDimensions returns the mean size of the chosen images as "WxH".
func (s Statistics) AverageDimensions() string {
	if s.ChosenImages == 0 {
		return "0x0"
	}
	n := int64(s.ChosenImages)
	return fmt.Sprintf("%dx%d", s.ChosenWidth/n, s.ChosenHeight/n)
}

func (s Statistics) clone() Statistics {
	c := s
	c.ChosenImagesByProvider = addCounts(nil, s.ChosenImagesByProvider)
	c.TotalImagesByProvider = addCounts(nil, s.TotalImagesByProvider)
	return c
}

func addCounts(dst, src map[string]int) map[string]int {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]int, len(src))
	}
	for k, v := range src {
		dst[k] += v
	}
	return dst
}

func increment(m *map[string]int, key string) {
	if *m == nil {
		*m = make(map[string]int)
	}
	(*m)[key]++
}
