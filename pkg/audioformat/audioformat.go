package audioformat

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type Name string

const (
	MP3  Name = "mp3"
	FLAC Name = "flac"
	OGG  Name = "ogg"
	M4A  Name = "m4a"
	WAV  Name = "wav"
	APE  Name = "ape"
)

var mimeTypes = map[Name]string{
	MP3:  "audio/mpeg",
	FLAC: "audio/flac",
	OGG:  "audio/ogg",
	M4A:  "audio/mp4",
	WAV:  "audio/wav",
	APE:  "audio/ape",
}

const fallbackMIMEType = "application/octet-stream"

// MIMEType maps a format extension to its MIME type. Unknown formats are
// sniffed from the leading audio bytes.
func MIMEType(format string, audio []byte) string {
	if mt, ok := mimeTypes[Name(strings.ToLower(format))]; ok {
		return mt
	}

	if len(audio) == 0 {
		return fallbackMIMEType
	}

	return mimetype.Detect(audio).String()
}

// Cover describes an embedded cover image.
type Cover struct {
	MIMEType  string
	Extension string
}

// DetectCover sniffs the image type, defaulting to JPEG which is what the
// streaming client embeds when detection fails.
func DetectCover(image []byte) Cover {
	detected := mimetype.Detect(image)
	if !strings.HasPrefix(detected.String(), "image/") {
		return Cover{MIMEType: "image/jpeg", Extension: ".jpg"}
	}

	ext := detected.Extension()
	if ext == ".jpeg" {
		ext = ".jpg"
	}

	return Cover{MIMEType: detected.String(), Extension: ext}
}
