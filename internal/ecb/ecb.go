// Package ecb implements one-shot AES-128 decryption and encryption in
// electronic codebook mode with PKCS#7 padding, as used by the NCM key and
// metadata blocks.
package ecb

import (
	"bytes"
	"crypto/aes"
	"errors"
	"fmt"
)

const KeySize = 16

var (
	ErrKeySize = errors.New("invalid key size")
	ErrLength  = errors.New("ciphertext is not a whole number of blocks")
	ErrPadding = errors.New("invalid PKCS#7 padding")
)

// DecryptECB decrypts ciphertext block by block and strips the padding.
func DecryptECB(ciphertext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d != %d", ErrKeySize, len(key), KeySize)
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrLength, len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	for off := 0; off < len(ciphertext); off += aes.BlockSize {
		block.Decrypt(plaintext[off:off+aes.BlockSize], ciphertext[off:off+aes.BlockSize])
	}

	return unpad(plaintext)
}

// EncryptECB pads plaintext and encrypts it block by block.
func EncryptECB(plaintext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d != %d", ErrKeySize, len(key), KeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	padded := pad(plaintext)
	ciphertext := make([]byte, len(padded))
	for off := 0; off < len(padded); off += aes.BlockSize {
		block.Encrypt(ciphertext[off:off+aes.BlockSize], padded[off:off+aes.BlockSize])
	}

	return ciphertext, nil
}

func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize

	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize {
		return nil, fmt.Errorf("%w: pad length %d", ErrPadding, n)
	}

	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: mismatched pad byte", ErrPadding)
		}
	}

	return data[:len(data)-n], nil
}
