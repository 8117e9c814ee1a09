package token

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// KeySize is the only accepted key length (AES-256).
const KeySize = 32

const ivSize = aes.BlockSize

var (
	// ErrKeySize is returned by NewCodec when the key is not exactly KeySize bytes.
	ErrKeySize = errors.New("token key must be exactly 32 bytes")
	// ErrDecrypt is the single outcome of every failed Decrypt.
	ErrDecrypt = errors.New("token decrypt failed")
)

// Codec encrypts payloads into opaque tokens and back. It is safe for concurrent use.
type Codec struct {
	block cipher.Block
	rand  io.Reader
}

// NewCodec builds a codec for the given key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &Codec{block: block, rand: rand.Reader}, nil
}

// GenerateKey returns a fresh random key suitable for NewCodec.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt serializes v as JSON and seals it under a fresh IV.
func (c *Codec) Encrypt(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("token encode: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, ivSize+len(padded))
	iv := out[:ivSize]
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("token iv: %w", err)
	}

	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out[ivSize:], padded)
	return base64.URLEncoding.EncodeToString(out), nil
}

// Decrypt opens tok and decodes its JSON payload into v. Every failure returns ErrDecrypt.
//
// Only the exact string Encrypt produced is accepted. Callers key caches and
// revocation entries on the token text, so a second spelling of the same
// bytes (stripped or extra padding, embedded newlines) must not decode.
func (c *Codec) Decrypt(tok string, v any) error {
	raw, err := base64.URLEncoding.Strict().DecodeString(tok)
	if err != nil {
		return ErrDecrypt
	}
	if base64.URLEncoding.EncodeToString(raw) != tok {
		return ErrDecrypt
	}
	if len(raw) < ivSize+aes.BlockSize || (len(raw)-ivSize)%aes.BlockSize != 0 {
		return ErrDecrypt
	}

	iv := raw[:ivSize]
	body := make([]byte, len(raw)-ivSize)
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(body, raw[ivSize:])

	plaintext, ok := pkcs7Unpad(body, aes.BlockSize)
	if !ok {
		return ErrDecrypt
	}

	dec := json.NewDecoder(bytes.NewReader(plaintext))
	if err := dec.Decode(v); err != nil {
		return ErrDecrypt
	}
	if dec.More() {
		return ErrDecrypt
	}
	return nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, bool) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, false
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
