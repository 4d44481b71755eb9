// Package secure implements the per-connection envelope cipher: a fresh
// 256-bit session key per connection, AES-256-CBC with a random IV per
// message, and PKCS#7 padding. Both envelope fields travel base64-encoded.
package secure

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// KeySize is the session key length in bytes (AES-256).
const KeySize = 32

// ErrDecrypt is returned for every decryption failure: bad base64, wrong
// key, truncated or tampered ciphertext, corrupt padding. Collapsing the
// causes into one opaque error keeps the peer from using the gateway as a
// decryption oracle.
var ErrDecrypt = errors.New("decrypt failed")

// Key is a per-connection symmetric key. It lives only in memory for the
// lifetime of the connection.
type Key []byte

// NewKey generates a fresh random session key.
func NewKey() (Key, error) {
	k := make(Key, KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return nil, err
	}
	return k, nil
}

// Zero overwrites the key material. Called on session teardown.
func (k Key) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// Envelope is the encrypted wire unit carrying one request or response.
type Envelope struct {
	IV   string `json:"iv"`
	Data string `json:"data"`
}

// Encrypt seals plaintext into an envelope under key, generating a fresh
// random IV. The IV must never repeat for the same key: CBC with a reused
// IV leaks plaintext-prefix equality across messages.
func Encrypt(plaintext []byte, key Key) (Envelope, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return Envelope{}, err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Envelope{}, err
	}

	padded := pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return Envelope{
		IV:   base64.StdEncoding.EncodeToString(iv),
		Data: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt opens an envelope under key. Any failure yields ErrDecrypt; the
// caller must not report a more specific cause to the remote peer.
func Decrypt(env Envelope, key Key) ([]byte, error) {
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, ErrDecrypt
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecrypt
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecrypt
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return unpad(plaintext, aes.BlockSize)
}

// pad appends PKCS#7 padding up to the next block boundary.
func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad strips PKCS#7 padding, rejecting anything malformed.
func unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, ErrDecrypt
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, ErrDecrypt
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrDecrypt
		}
	}
	return b[:len(b)-n], nil
}
