package albumcover

import (
	"image"
	"math"
)

const (
	// TargetSize is the edge length that earns a size score of exactly 1.
	TargetSize = 500
	// GoodScore stops the search early once a candidate reaches it.
	GoodScore = 1.85
)

// ScoreImage rates a cover: sqrt(w*h)/TargetSize plus an aspect term that is 1
// for a square and shrinks as the image gets more elongated.
// The size term is unbounded, so a large non-square image can beat a small square.
func ScoreImage(img image.Image) float64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return 0
	}

	sizeScore := math.Sqrt(float64(w)*float64(h)) / TargetSize
	aspectScore := 1 - math.Abs(float64(h-w))/float64(max(w, h))
	return sizeScore + aspectScore
}

// candidates keeps decoded images in insertion order.
type candidates []*Cover

func (c *candidates) add(cover *Cover) {
	*c = append(*c, cover)
}

// best returns the highest scoring cover. Among equal scores the most recently
// added one wins.
func (c candidates) best() *Cover {
	var best *Cover
	for _, cover := range c {
		if best == nil || cover.Score >= best.Score {
			best = cover
		}
	}
	return best
}
