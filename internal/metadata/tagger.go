package metadata

import (
	"errors"
	"fmt"
	"strings"

	"go.senan.xyz/taglib"
)

// ErrNoTags is returned by ReadAlbum for files with neither an artist nor an
// album tag.
var ErrNoTags = errors.New("no album tags")

// ReadAlbum returns the album artist and album title of an audio file. The
// track artist is used when there is no album artist, trimmed to the first
// credited name.
func ReadAlbum(path string) (AlbumTags, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return AlbumTags{}, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}

	artist := strings.TrimSpace(firstTag(tags, taglib.AlbumArtist))
	if artist == "" {
		artist = firstTag(tags, taglib.Artist)
		if i := strings.Index(artist, ","); i > 0 {
			artist = artist[:i]
		}
		artist = strings.TrimSpace(artist)
	}

	at := AlbumTags{
		Artist: artist,
		Album:  strings.TrimSpace(firstTag(tags, taglib.Album)),
	}
	if at.Empty() {
		return at, fmt.Errorf("%s: %w", path, ErrNoTags)
	}
	return at, nil
}

// HasEmbeddedCover reports whether the file already carries a picture.
func HasEmbeddedCover(path string) bool {
	data, err := taglib.ReadImage(path)
	return err == nil && len(data) > 0
}

// EmbedCover embeds image data into an audio file.
func EmbedCover(path string, imageData []byte) error {
	if len(imageData) == 0 {
		return nil
	}
	if err := taglib.WriteImage(path, imageData); err != nil {
		return fmt.Errorf("failed to write artwork to %s: %w", path, err)
	}
	return nil
}
