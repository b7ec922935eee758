package keybox

import "io"

// Reader decrypts an underlying payload reader as it is read. The first byte
// read from r is taken to be at payload offset 0.
type Reader struct {
	reader io.Reader
	cipher *Cipher
	off    int64
}

func NewReader(r io.Reader, c *Cipher) *Reader {
	return &Reader{reader: r, cipher: c}
}

func (r *Reader) Read(p []byte) (n int, err error) {
	n, err = r.reader.Read(p)
	if n > 0 {
		r.cipher.XORKeyStream(p[:n], p[:n], r.off)
		r.off += int64(n)
	}

	return n, err
}

// Offset is the number of payload bytes decrypted so far.
func (r *Reader) Offset() int64 {
	return r.off
}
