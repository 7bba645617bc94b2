package media

import (
	"fmt"
	"io"

	"github.com/bogem/id3v2"
)

// TagInfo holds the metadata read from an uploaded audio file,
// used to pre-fill a new song's title and artist.
type TagInfo struct {
	Title  string
	Artist string
}

// ReadTags extracts ID3 title/artist from an MP3 stream. Files without a
// tag yield empty fields, not an error.
func ReadTags(r io.Reader) (*TagInfo, error) {
	tag, err := id3v2.ParseReader(r, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("parse id3 tag: %w", err)
	}

	return &TagInfo{
		Title:  tag.Title(),
		Artist: tag.Artist(),
	}, nil
}
