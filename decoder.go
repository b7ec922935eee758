package ncmunlock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zetetos/ncm-unlock/internal/container"
	"github.com/zetetos/ncm-unlock/internal/keybox"
	"github.com/zetetos/ncm-unlock/internal/logging"
	"github.com/zetetos/ncm-unlock/internal/sink"
	"github.com/zetetos/ncm-unlock/internal/tagger"
	"github.com/zetetos/ncm-unlock/pkg/audioformat"
	"github.com/zetetos/ncm-unlock/pkg/metadata"
)

const (
	DefaultChunkSize = 64 * 1024
	MaxChunkSize     = 16 * 1024 * 1024

	// SourceExtension is stripped from input names when naming outputs.
	SourceExtension = ".ncm"
)

type Options struct {
	LogLevel string
	Logger   *zerolog.Logger
	// ChunkSize bounds how much payload is decrypted per step.
	ChunkSize int
	// Tag writes title, album, artists and cover into MP3 and FLAC outputs.
	Tag bool
	// WriteCover saves the embedded cover image next to the audio output.
	WriteCover bool
	// StrictMetadata validates metadata against MetadataSchema, or the
	// embedded schema when nil, and degrades records that fail.
	StrictMetadata bool
	MetadataSchema []byte
}

// Result is a container decoded in memory.
type Result struct {
	Name          string
	Audio         []byte
	Format        string
	MIMEType      string
	Metadata      metadata.Record
	MetadataErr   error
	Cover         []byte
	CoverMIMEType string
	Checksum      uint32
}

// FileResult describes a container decoded to disk.
type FileResult struct {
	Input       string
	Output      string
	CoverOutput string
	Format      string
	Size        int64
	Metadata    metadata.Record
	MetadataErr error
	TagErr      error
	CoverErr    error
	Elapsed     time.Duration
}

// Decoder holds configuration only; it is safe for concurrent use.
type Decoder struct {
	log        zerolog.Logger
	chunkSize  int
	tag        bool
	writeCover bool
	parseOpts  []container.Option
}

func New(opts Options) (*Decoder, error) {
	var log zerolog.Logger
	if opts.Logger != nil {
		log = *opts.Logger
	} else {
		log = logging.New(opts.LogLevel, nil)
	}

	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	opts.ChunkSize = min(opts.ChunkSize, MaxChunkSize)

	d := &Decoder{
		log:        log,
		chunkSize:  opts.ChunkSize,
		tag:        opts.Tag,
		writeCover: opts.WriteCover,
	}

	if opts.StrictMetadata {
		validator, err := metadata.NewValidator(opts.MetadataSchema)
		if err != nil {
			return nil, fmt.Errorf("setting up metadata validator: %w", err)
		}

		d.parseOpts = append(d.parseOpts, container.WithValidator(validator))
	}

	return d, nil
}

func (d *Decoder) open(input []byte) (*container.Container, *keybox.Cipher, error) {
	c, err := container.Parse(input, d.parseOpts...)
	if err != nil {
		return nil, nil, err
	}

	cipher, err := keybox.NewCipher(c.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("build keystream: %w", err)
	}

	if c.MetadataErr != nil {
		d.log.Warn().Err(c.MetadataErr).Msg("metadata unreadable, using default format")
	}

	return c, cipher, nil
}

// Decode recovers the audio, format and metadata of a container held in
// memory.
func (d *Decoder) Decode(input []byte) (*Result, error) {
	c, cipher, err := d.open(input)
	if err != nil {
		return nil, err
	}

	audio := make([]byte, len(c.Payload))
	for off := 0; off < len(audio); off += d.chunkSize {
		end := min(off+d.chunkSize, len(audio))
		cipher.XORKeyStream(audio[off:end], c.Payload[off:end], int64(off))
	}

	format := c.Metadata.Format()
	result := &Result{
		Audio:       audio,
		Format:      format,
		MIMEType:    audioformat.MIMEType(format, audio),
		Metadata:    c.Metadata,
		MetadataErr: c.MetadataErr,
		Cover:       c.Image,
		Checksum:    c.Checksum,
	}

	if len(c.Image) > 0 {
		result.CoverMIMEType = audioformat.DetectCover(c.Image).MIMEType
	}

	d.log.Debug().Str("format", format).Int("bytes", len(audio)).Msg("decoded container")

	return result, nil
}

// DecodeNamed is Decode with Result.Name derived from the input name.
func (d *Decoder) DecodeNamed(name string, input []byte) (*Result, error) {
	result, err := d.Decode(input)
	if err != nil {
		return nil, err
	}

	result.Name = OutputName(name, result.Format)

	return result, nil
}

// DecodeFile decodes the container at path into outDir, or next to the
// input when outDir is empty. The output only appears once fully written.
func (d *Decoder) DecodeFile(ctx context.Context, path, outDir string) (*FileResult, error) {
	start := time.Now()
	log := d.log.With().Str("file", path).Logger()

	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	input, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	c, cipher, err := d.open(input)
	if err != nil {
		return nil, err
	}

	if outDir == "" {
		outDir = filepath.Dir(path)
	}

	format := outputFormat(c.Metadata.Format())
	res := &FileResult{
		Input:       path,
		Output:      filepath.Join(outDir, OutputName(path, format)),
		Format:      format,
		Metadata:    c.Metadata,
		MetadataErr: c.MetadataErr,
	}

	out, err := sink.Create(res.Output)
	if err != nil {
		return nil, err
	}
	defer out.Abort()

	res.Size, err = io.CopyBuffer(out, keybox.NewReader(bytes.NewReader(c.Payload), cipher), make([]byte, d.chunkSize))
	if err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}

	err = ctx.Err()
	if err != nil {
		return nil, err
	}

	var finalize func(string) error
	if d.tag {
		finalize = func(tmpPath string) error {
			res.TagErr = tagger.Apply(tmpPath, format, tagsFor(c))
			if res.TagErr != nil && !errors.Is(res.TagErr, tagger.ErrUnsupportedFormat) {
				log.Warn().Err(res.TagErr).Msg("failed to tag output")
			}

			return nil
		}
	}

	err = out.Commit(finalize)
	if err != nil {
		return nil, err
	}

	if d.writeCover && len(c.Image) > 0 {
		cover := audioformat.DetectCover(c.Image)
		coverPath := strings.TrimSuffix(res.Output, filepath.Ext(res.Output)) + cover.Extension

		res.CoverErr = sink.WriteFile(coverPath, c.Image)
		if res.CoverErr != nil {
			log.Warn().Err(res.CoverErr).Msg("failed to write cover")
		} else {
			res.CoverOutput = coverPath
		}
	}

	res.Elapsed = time.Since(start)
	log.Info().Str("output", res.Output).Str("format", format).Int64("bytes", res.Size).Dur("elapsed", res.Elapsed).Msg("decoded file")

	return res, nil
}

func tagsFor(c *container.Container) tagger.Tags {
	tags := tagger.Tags{
		Title:   c.Metadata.Title(),
		Album:   c.Metadata.Album(),
		Artists: c.Metadata.Artists(),
	}

	if len(c.Image) > 0 {
		tags.Cover = c.Image
		tags.CoverMIME = audioformat.DetectCover(c.Image).MIMEType
	}

	return tags
}

// OutputName derives the decoded file name from the input name: the base
// name with a trailing .ncm removed, case-insensitively, plus "." + format.
// Formats that are not a plain alphanumeric extension, or that name the
// container extension itself, are replaced by the default so metadata can
// never steer the output path or overwrite the input.
func OutputName(input, format string) string {
	format = outputFormat(format)

	base := filepath.Base(strings.ReplaceAll(input, `\`, "/"))
	if ext := filepath.Ext(base); strings.EqualFold(ext, SourceExtension) {
		base = strings.TrimSuffix(base, ext)
	}

	return base + "." + format
}

func outputFormat(format string) string {
	if !plainExtension(format) || strings.EqualFold("."+format, SourceExtension) {
		return metadata.DefaultFormat
	}

	return format
}

func plainExtension(s string) bool {
	if s == "" || len(s) > metadata.MaxFormatLen {
		return false
	}

	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}

	return true
}
