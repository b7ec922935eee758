package tagger

import (
	"fmt"
	"strings"

	"github.com/bogem/id3v2/v2"
)

func applyID3(path string, tags Tags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	if tag.Title() == "" && tags.Title != "" {
		tag.SetTitle(tags.Title)
	}

	if tag.Album() == "" && tags.Album != "" {
		tag.SetAlbum(tags.Album)
	}

	if tag.Artist() == "" && len(tags.Artists) > 0 {
		tag.SetArtist(strings.Join(tags.Artists, "/"))
	}

	pictures := tag.GetFrames(tag.CommonID("Attached picture"))
	if len(pictures) == 0 && len(tags.Cover) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    tags.CoverMIME,
			PictureType: id3v2.PTFrontCover,
			Description: coverDescription,
			Picture:     tags.Cover,
		})
	}

	err = tag.Save()
	if err != nil {
		return fmt.Errorf("save id3 tag: %w", err)
	}

	return nil
}
