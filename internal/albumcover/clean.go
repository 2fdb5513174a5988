package albumcover

import (
	"regexp"
	"strings"
)

// Disc markers and edition noise that providers rarely index.
var albumCleanupPatterns = []*regexp.Regexp{
	// Disc numbers
	regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:disc|disk|cd)\s*\d+(?:\s*(?:of|/)\s*\d+)?\s*[\)\]]`),
	regexp.MustCompile(`(?i)\s*[-,]?\s*\b(?:disc|disk|cd)\s*\d+\s*$`),

	// Editions, remasters, bonus material
	regexp.MustCompile(`(?i)\s*[\(\[][^\)\]]*\b(?:deluxe|expanded|special|anniversary|collector'?s|limited|bonus)\b[^\)\]]*[\)\]]`),
	regexp.MustCompile(`(?i)\s*[\(\[][^\)\]]*\bremaster(?:ed)?\b[^\)\]]*[\)\]]`),
	regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:explicit|clean)(?:\s+version)?\s*[\)\]]`),
}

// CleanAlbum strips disc markers and edition suffixes from an album title.
// If cleaning would leave nothing, the trimmed input is returned.
func CleanAlbum(album string) string {
	album = strings.TrimSpace(album)
	cleaned := album
	for _, p := range albumCleanupPatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return album
	}
	return cleaned
}
