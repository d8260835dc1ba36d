package track

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dhowden/tag"
)

// Metadata embedded into the audio file (ID3, MP4, FLAC, OGG)
type audioTags struct {
	Title  string
	Artist string
	Album  string

	Picture *tag.Picture
}

// Read tags from the audio and rewind it
// Audio without tags or with broken ones gives empty tags and no error
func readTags(body io.ReadSeeker) (audioTags, error) {
	var tags audioTags

	m, readErr := tag.ReadFrom(body)
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return tags, fmt.Errorf("can't rewind upload. Err: %w", err)
	}
	if readErr != nil {
		return tags, nil
	}

	tags.Title = strings.TrimSpace(m.Title())
	tags.Artist = strings.TrimSpace(m.Artist())
	tags.Album = strings.TrimSpace(m.Album())
	if p := m.Picture(); p != nil && len(p.Data) > 0 {
		tags.Picture = p
	}
	return tags, nil
}

// Embedded picture as an uploaded cover
func (t audioTags) cover() *File {
	if t.Picture == nil {
		return nil
	}

	name := "cover"
	if t.Picture.Ext != "" {
		name += "." + strings.TrimPrefix(t.Picture.Ext, ".")
	}
	return &File{
		Name:        name,
		ContentType: t.Picture.MIMEType,
		Size:        int64(len(t.Picture.Data)),
		Body:        bytes.NewReader(t.Picture.Data),
	}
}

// First non blank value
func firstOf(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
