package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	DefaultFormat = "mp3"

	// MaxFormatLen bounds the format extension; the embedded schema uses the
	// same limit.
	MaxFormatLen = 16
)

var ErrNotObject = errors.New("metadata is not a JSON object")

// Record is the loosely typed metadata embedded in a container. Only the
// format key is relied upon; everything else is best effort.
type Record map[string]any

// Parse decodes a JSON object into a Record.
func Parse(data []byte) (Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrNotObject
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	record := Record{}

	err := decoder.Decode(&record)
	if err != nil {
		return nil, fmt.Errorf("unmarshall metadata JSON: %w", err)
	}

	return record, nil
}

func (r Record) str(key string) string {
	v, ok := r[key].(string)
	if !ok {
		return ""
	}

	return v
}

func (r Record) number(key string) (float64, bool) {
	switch v := r[key].(type) {
	case json.Number:
		f, err := v.Float64()

		return f, err == nil
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)

		return f, err == nil
	default:
		return 0, false
	}
}

// Format returns the audio file extension, DefaultFormat when absent.
func (r Record) Format() string {
	if format := r.str("format"); format != "" {
		return format
	}

	return DefaultFormat
}

func (r Record) Title() string { return r.str("musicName") }

func (r Record) Album() string { return r.str("album") }

// AlbumPic is the cover art URL.
func (r Record) AlbumPic() string { return r.str("albumPic") }

// Artists returns artist names from the [[name, id], ...] list.
func (r Record) Artists() []string {
	list, ok := r["artist"].([]any)
	if !ok {
		return nil
	}

	names := make([]string, 0, len(list))

	for _, entry := range list {
		switch v := entry.(type) {
		case []any:
			if len(v) == 0 {
				continue
			}

			if name, ok := v[0].(string); ok && name != "" {
				names = append(names, name)
			}
		case string:
			if v != "" {
				names = append(names, v)
			}
		}
	}

	return names
}

// Bitrate in bits per second, zero when unknown.
func (r Record) Bitrate() int {
	v, ok := r.number("bitrate")
	if !ok {
		return 0
	}

	return int(v)
}

func (r Record) Duration() time.Duration {
	v, ok := r.number("duration")
	if !ok {
		return 0
	}

	return time.Duration(v) * time.Millisecond
}
