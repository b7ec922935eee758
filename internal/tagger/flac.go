package tagger

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

func applyFLAC(path string, tags Tags) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read flac: %w", err)
	}

	// Frames are carried over verbatim; a payload holding only metadata
	// blocks is still taggable.
	r := bytes.NewReader(data)

	file, err := flac.ParseMetadata(r)
	if err != nil {
		return fmt.Errorf("parse flac: %w", err)
	}

	file.Frames = data[len(data)-r.Len():]

	var (
		commentBlock *flac.MetaDataBlock
		hasPicture   bool
	)

	for _, meta := range file.Meta {
		switch meta.Type {
		case flac.VorbisComment:
			commentBlock = meta
		case flac.Picture:
			hasPicture = true
		}
	}

	comments := flacvorbis.New()
	if commentBlock != nil {
		comments, err = flacvorbis.ParseFromMetaDataBlock(*commentBlock)
		if err != nil {
			return fmt.Errorf("parse vorbis comment: %w", err)
		}
	}

	err = addComment(comments, flacvorbis.FIELD_TITLE, tags.Title)
	if err != nil {
		return err
	}

	err = addComment(comments, flacvorbis.FIELD_ALBUM, tags.Album)
	if err != nil {
		return err
	}

	err = addComment(comments, flacvorbis.FIELD_ARTIST, tags.Artists...)
	if err != nil {
		return err
	}

	marshalled := comments.Marshal()
	if commentBlock != nil {
		*commentBlock = marshalled
	} else {
		file.Meta = append(file.Meta, &marshalled)
	}

	if !hasPicture && len(tags.Cover) > 0 {
		picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, coverDescription, tags.Cover, tags.CoverMIME)
		if err != nil {
			return fmt.Errorf("build flac picture: %w", err)
		}

		pictureBlock := picture.Marshal()
		file.Meta = append(file.Meta, &pictureBlock)
	}

	err = os.WriteFile(path, file.Marshal(), 0o644) //nolint:gosec // audio output is world readable
	if err != nil {
		return fmt.Errorf("write flac: %w", err)
	}

	return nil
}

// addComment adds values for field unless the field is already present.
func addComment(comments *flacvorbis.MetaDataBlockVorbisComment, field string, values ...string) error {
	existing, err := comments.Get(field)
	if err != nil {
		return fmt.Errorf("read vorbis field %s: %w", field, err)
	}

	if len(existing) > 0 {
		return nil
	}

	for _, v := range values {
		if v == "" {
			continue
		}

		err = comments.Add(field, v)
		if err != nil {
			return fmt.Errorf("add vorbis field %s: %w", field, err)
		}
	}

	return nil
}
