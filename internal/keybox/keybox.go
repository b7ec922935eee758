// Package keybox derives the per-file substitution table from a container
// key and applies the resulting keystream to audio payload bytes.
package keybox

import (
	"errors"
)

const Size = 256

var ErrEmptyKey = errors.New("empty key")

// Table is a permutation of the bytes 0..255.
type Table [Size]byte

// NewTable runs the key-scheduling pass over key, repeated cyclically.
func NewTable(key []byte) (*Table, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}

	var t Table
	for i := range t {
		t[i] = byte(i)
	}

	var last byte

	k := 0
	for i := range t {
		c := t[i] + last + key[k]

		k++
		if k == len(key) {
			k = 0
		}

		t[i], t[c] = t[c], t[i]
		last = c
	}

	return &t, nil
}

// Cipher holds the 256-byte keystream expanded from a Table. The keystream
// byte for a payload offset depends only on that offset, so any chunking of
// the payload produces the same output.
type Cipher struct {
	stream [Size]byte
}

func NewCipher(key []byte) (*Cipher, error) {
	t, err := NewTable(key)
	if err != nil {
		return nil, err
	}

	return t.Cipher(), nil
}

func (t *Table) Cipher() *Cipher {
	c := &Cipher{}
	for j := range c.stream {
		v := t[j]
		c.stream[j] = t[v+t[v+byte(j)]]
	}

	return c
}

// KeyByte returns the keystream byte for absolute payload offset n.
func (c *Cipher) KeyByte(n int64) byte {
	return c.stream[(n+1)&0xff]
}

// XORKeyStream writes src XOR keystream into dst, where src[0] sits at
// absolute payload offset off. dst and src may overlap exactly.
func (c *Cipher) XORKeyStream(dst, src []byte, off int64) {
	if len(dst) < len(src) {
		panic("keybox: output smaller than input")
	}

	j := byte(off + 1)
	for i, b := range src {
		dst[i] = b ^ c.stream[j]
		j++
	}
}
