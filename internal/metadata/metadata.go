// Package metadata reads album tags from audio files and writes cover art
// back to disk and into the files themselves.
package metadata

// AlbumTags identifies the album an audio file belongs to.
type AlbumTags struct {
	Artist string
	Album  string
}

// Empty reports whether neither field is set.
func (t AlbumTags) Empty() bool {
	return t.Artist == "" && t.Album == ""
}

func firstTag(tags map[string][]string, key string) string {
	if vals, ok := tags[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}
