package cursor

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

var ErrOutOfBounds = errors.New("read out of bounds")

// Cursor reads sequentially from an immutable byte buffer. Every read is
// checked against the remaining length before the underlying stream is
// touched, so a failed read leaves the position unchanged.
type Cursor struct {
	stream *kaitai.Stream
	buf    []byte
	pos    int64
}

func New(buf []byte) *Cursor {
	return &Cursor{
		stream: kaitai.NewStream(bytes.NewReader(buf)),
		buf:    buf,
	}
}

func (c *Cursor) Pos() int64 {
	return c.pos
}

func (c *Cursor) Remaining() int64 {
	return int64(len(c.buf)) - c.pos
}

func (c *Cursor) ensure(n int64) error {
	if n < 0 || n > c.Remaining() {
		return fmt.Errorf("%w: need %d bytes at offset %d, %d remaining", ErrOutOfBounds, n, c.pos, c.Remaining())
	}

	return nil
}

// ReadU32LE reads a little-endian uint32.
func (c *Cursor) ReadU32LE() (uint32, error) {
	if err := c.ensure(4); err != nil {
		return 0, err
	}

	v, err := c.stream.ReadU4le()
	if err != nil {
		return 0, fmt.Errorf("read u32: %w", err)
	}

	c.pos += 4

	return v, nil
}

// ReadBytes returns a copy of the next n bytes.
func (c *Cursor) ReadBytes(n int64) ([]byte, error) {
	if err := c.ensure(n); err != nil {
		return nil, err
	}

	b, err := c.stream.ReadBytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("read %d bytes: %w", n, err)
	}

	c.pos += n

	return b, nil
}

// ReadPrefixed reads a uint32 length followed by that many bytes.
func (c *Cursor) ReadPrefixed() ([]byte, error) {
	start := c.pos

	n, err := c.ReadU32LE()
	if err != nil {
		return nil, err
	}

	b, err := c.ReadBytes(int64(n))
	if err != nil {
		// rewind over the length so the cursor stays where the field began
		_, _ = c.stream.Seek(start, io.SeekStart)
		c.pos = start

		return nil, err
	}

	return b, nil
}

func (c *Cursor) Skip(n int64) error {
	if err := c.ensure(n); err != nil {
		return err
	}

	if _, err := c.stream.Seek(n, io.SeekCurrent); err != nil {
		return fmt.Errorf("skip %d bytes: %w", n, err)
	}

	c.pos += n

	return nil
}

// Rest returns the unread suffix without copying and moves to the end.
func (c *Cursor) Rest() []byte {
	rest := c.buf[c.pos:]
	_, _ = c.stream.Seek(0, io.SeekEnd)
	c.pos = int64(len(c.buf))

	return rest
}
