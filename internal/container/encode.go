package container

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/zetetos/ncm-unlock/internal/ecb"
	"github.com/zetetos/ncm-unlock/internal/keybox"
)

// Source describes the plain contents of a container to encode.
type Source struct {
	Key []byte
	// Metadata is marshalled to JSON; RawMetadata, when set, is stored
	// verbatim as the metadata block instead.
	Metadata    map[string]any
	RawMetadata []byte
	Checksum    uint32
	Image       []byte
	Audio       []byte
}

// Encode builds a container the way the streaming client writes one.
func Encode(src Source) ([]byte, error) {
	keyBlock, err := ecb.EncryptECB(append(bytes.Clone(keyPrefix), src.Key...), coreKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt key: %w", err)
	}

	xor(keyBlock, keyMask)

	metaBlock := src.RawMetadata
	if metaBlock == nil && src.Metadata != nil {
		metaBlock, err = encodeMetadata(src.Metadata)
		if err != nil {
			return nil, err
		}
	}

	c, err := keybox.NewCipher(src.Key)
	if err != nil {
		return nil, fmt.Errorf("build keystream: %w", err)
	}

	payload := make([]byte, len(src.Audio))
	c.XORKeyStream(payload, src.Audio, 0)

	var buf bytes.Buffer

	buf.Write(magic)
	buf.Write(make([]byte, reservedLen))
	writePrefixed(&buf, keyBlock)
	writePrefixed(&buf, metaBlock)
	_ = binary.Write(&buf, binary.LittleEndian, src.Checksum)
	buf.Write(make([]byte, gapLen))
	writePrefixed(&buf, src.Image)
	buf.Write(payload)

	return buf.Bytes(), nil
}

func encodeMetadata(record map[string]any) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	ciphertext, err := ecb.EncryptECB(append(bytes.Clone(metaTag), data...), metaKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt metadata: %w", err)
	}

	block := append(bytes.Clone(metaPrefix), base64.StdEncoding.EncodeToString(ciphertext)...)
	xor(block, metaMask)

	return block, nil
}

func writePrefixed(buf *bytes.Buffer, data []byte) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(data))) //nolint:gosec // blocks are far below 4GiB
	buf.Write(data)
}
