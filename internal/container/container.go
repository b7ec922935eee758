package container

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zetetos/ncm-unlock/internal/cursor"
	"github.com/zetetos/ncm-unlock/internal/ecb"
	"github.com/zetetos/ncm-unlock/pkg/metadata"
)

const (
	keyMask  byte = 0x64
	metaMask byte = 0x63

	reservedLen = 2
	gapLen      = 5
)

var (
	magic = []byte("CTENFDAM")

	coreKey = []byte{0x68, 0x7a, 0x48, 0x52, 0x41, 0x6d, 0x73, 0x6f, 0x35, 0x6b, 0x49, 0x6e, 0x62, 0x61, 0x78, 0x57}
	metaKey = []byte{0x23, 0x31, 0x34, 0x6c, 0x6a, 0x6b, 0x5f, 0x21, 0x5c, 0x5d, 0x26, 0x30, 0x55, 0x3c, 0x27, 0x28}

	keyPrefix  = []byte("neteasecloudmusic")
	metaPrefix = []byte("163 key(Don't modify):")
	metaTag    = []byte("music:")
)

var (
	ErrInvalidHeader  = errors.New("invalid container header")
	ErrOutOfBounds    = cursor.ErrOutOfBounds
	ErrKeyRecovery    = errors.New("key recovery failed")
	ErrMetadataDecode = errors.New("metadata decode failed")
)

// Container is the parsed, still encrypted, view of an NCM file.
type Container struct {
	// Key is the derived key the keystream table is built from.
	Key []byte
	// Metadata is empty, never nil, when MetadataErr is set.
	Metadata    metadata.Record
	MetadataErr error
	// Checksum is read as stored and not verified.
	Checksum      uint32
	Image         []byte
	PayloadOffset int64
	// Payload aliases the input buffer.
	Payload []byte
}

type Option func(*parser)

// WithValidator treats records failing schema validation as undecodable.
func WithValidator(v *metadata.Validator) Option {
	return func(p *parser) {
		p.validator = v
	}
}

type parser struct {
	validator *metadata.Validator
}

// Parse validates the header and recovers the key, metadata and image of a
// container. Structural and key errors are fatal; metadata errors are
// reported through Container.MetadataErr.
func Parse(buf []byte, opts ...Option) (*Container, error) {
	p := &parser{}
	for _, opt := range opts {
		opt(p)
	}

	c := cursor.New(buf)

	header, err := c.ReadBytes(int64(len(magic)))
	if err != nil || !bytes.Equal(header, magic) {
		return nil, ErrInvalidHeader
	}

	err = c.Skip(reservedLen)
	if err != nil {
		return nil, fmt.Errorf("reserved bytes: %w", err)
	}

	key, err := readKey(c)
	if err != nil {
		return nil, err
	}

	rawMeta, err := c.ReadPrefixed()
	if err != nil {
		return nil, fmt.Errorf("metadata block: %w", err)
	}

	record, metaErr := p.decodeMetadata(rawMeta)
	if metaErr != nil {
		record = metadata.Record{}
	}

	checksum, err := c.ReadU32LE()
	if err != nil {
		return nil, fmt.Errorf("checksum: %w", err)
	}

	err = c.Skip(gapLen)
	if err != nil {
		return nil, fmt.Errorf("gap: %w", err)
	}

	image, err := c.ReadPrefixed()
	if err != nil {
		return nil, fmt.Errorf("image block: %w", err)
	}

	offset := c.Pos()

	return &Container{
		Key:           key,
		Metadata:      record,
		MetadataErr:   metaErr,
		Checksum:      checksum,
		Image:         image,
		PayloadOffset: offset,
		Payload:       c.Rest(),
	}, nil
}

func readKey(c *cursor.Cursor) ([]byte, error) {
	block, err := c.ReadPrefixed()
	if err != nil {
		return nil, fmt.Errorf("key block: %w", err)
	}

	xor(block, keyMask)

	plain, err := ecb.DecryptECB(block, coreKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyRecovery, err)
	}

	if len(plain) <= len(keyPrefix) {
		return nil, fmt.Errorf("%w: decrypted key is %d bytes", ErrKeyRecovery, len(plain))
	}

	return plain[len(keyPrefix):], nil
}

func (p *parser) decodeMetadata(block []byte) (metadata.Record, error) {
	// some downloads carry no metadata at all
	if len(block) == 0 {
		return metadata.Record{}, nil
	}

	xor(block, metaMask)

	if len(block) < len(metaPrefix) {
		return nil, fmt.Errorf("%w: block shorter than prefix", ErrMetadataDecode)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(string(block[len(metaPrefix):]))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %w", ErrMetadataDecode, err)
	}

	plain, err := ecb.DecryptECB(ciphertext, metaKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadataDecode, err)
	}

	if len(plain) < len(metaTag) {
		return nil, fmt.Errorf("%w: plaintext shorter than tag", ErrMetadataDecode)
	}

	record, err := metadata.Parse(plain[len(metaTag):])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetadataDecode, err)
	}

	if p.validator != nil {
		err = p.validator.Validate(record)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMetadataDecode, err)
		}
	}

	return record, nil
}

func xor(b []byte, mask byte) {
	for i := range b {
		b[i] ^= mask
	}
}
