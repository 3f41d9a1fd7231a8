package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const keyLength = 32 // AES-256

var (
	// ErrMalformedCiphertext is returned when a stored blob is not in the
	// expected iv:ciphertext hex encoding.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrDecryptionFailure is returned when the ciphertext decrypts to an
	// invalid padding, which usually means a wrong key or corrupted data.
	ErrDecryptionFailure = errors.New("decryption failure")
)

// Vault encrypts and decrypts short secrets (scraper credentials) for
// at-rest storage. Output format is hex(iv):hex(ciphertext) so a stored
// blob is self-contained.
//
// CBC without a MAC does not detect tampering: a bit-flip decrypts to
// garbage rather than failing. Accepted limitation for this data.
type Vault struct {
	key []byte
}

// New creates a vault from the configured key material. The key is
// right-padded with '0' or truncated to the AES-256 key length, so any
// non-empty passphrase works.
func New(key string) (*Vault, error) {
	if key == "" {
		return nil, fmt.Errorf("encryption key is required")
	}

	padded := key
	for len(padded) < keyLength {
		padded += "0"
	}

	return &Vault{key: []byte(padded[:keyLength])}, nil
}

// Encrypt encrypts plaintext with a fresh random IV. Two calls with the
// same plaintext produce different blobs.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. It returns ErrMalformedCiphertext when the
// blob is not parseable and ErrDecryptionFailure when the decrypted
// padding is invalid.
func (v *Vault) Decrypt(blob string) (string, error) {
	ivHex, dataHex, found := strings.Cut(blob, ":")
	if !found {
		return "", fmt.Errorf("%w: missing separator", ErrMalformedCiphertext)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: invalid IV", ErrMalformedCiphertext)
	}

	ciphertext, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext encoding", ErrMalformedCiphertext)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext not block-aligned", ErrMalformedCiphertext)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", ErrDecryptionFailure
	}

	return string(unpadded), nil
}

// pkcs7Pad appends PKCS#7 padding up to the block size.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

// pkcs7Unpad strips and verifies PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize {
		return nil, errors.New("invalid padding length")
	}

	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid padding byte")
		}
	}

	return data[:len(data)-padLen], nil
}
