// Package tagger writes container metadata into decoded audio files.
package tagger

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported format for tagging")

const coverDescription = "Front cover"

// Tags is the subset of container metadata written to audio files.
type Tags struct {
	Title     string
	Album     string
	Artists   []string
	Cover     []byte
	CoverMIME string
}

func (t Tags) empty() bool {
	return t.Title == "" && t.Album == "" && len(t.Artists) == 0 && len(t.Cover) == 0
}

// Apply tags the file at path according to format. Frames already present
// in the file are left alone.
func Apply(path, format string, tags Tags) error {
	if tags.empty() {
		return nil
	}

	switch strings.ToLower(format) {
	case "mp3":
		return applyID3(path, tags)
	case "flac":
		return applyFLAC(path, tags)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
