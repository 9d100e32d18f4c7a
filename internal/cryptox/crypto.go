// Package cryptox implements authenticated encryption for OAuth tokens at
// rest. Each blob is sealed with an AES-256-GCM key derived from the master
// secret plus the owning user's id, so a derived key for one user never
// decrypts another user's blobs.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/devlens/devlens/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32

	// kdfIterations keeps key derivation slow enough that recovering the
	// master secret from one derived key is impractical.
	kdfIterations = 150_000

	blobVersion = byte(1)
)

// Encryptor seals and opens per-user token blobs.
type Encryptor struct {
	master []byte
}

func NewEncryptor(masterSecret string) (*Encryptor, error) {
	if masterSecret == "" {
		return nil, errors.New("empty master secret")
	}
	return &Encryptor{master: []byte(masterSecret)}, nil
}

// deriveKey stretches master||":"||userID with the per-blob salt into an
// AES-256 key.
func (e *Encryptor) deriveKey(userID string, salt []byte) []byte {
	secret := make([]byte, 0, len(e.master)+1+len(userID))
	secret = append(secret, e.master...)
	secret = append(secret, ':')
	secret = append(secret, userID...)
	defer common.WipeBytes(secret)
	return pbkdf2.Key(secret, salt, kdfIterations, keySize, sha256.New)
}

// Encrypt seals plaintext for userID. The salt and nonce are freshly random
// on every call, so encrypting the same plaintext twice yields different
// blobs. The returned blob is base64(version || salt || nonce || ciphertext)
// where ciphertext includes the GCM authentication tag.
func (e *Encryptor) Encrypt(plaintext, userID string) (string, error) {
	salt := common.RandBytes(saltSize)
	nonce := common.RandBytes(nonceSize)

	key := e.deriveKey(userID, salt)
	defer common.WipeBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	ciphertext := aesgcm.Seal(nil, nonce, []byte(plaintext), nil)

	blob := make([]byte, 0, 1+saltSize+nonceSize+len(ciphertext))
	blob = append(blob, blobVersion)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt for the same userID. Every failure
// mode (malformed blob, wrong user, tampered ciphertext) returns
// common.ErrDecryptionFailed so callers cannot distinguish them.
func (e *Encryptor) Decrypt(blob, userID string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}
	if len(raw) < 1+saltSize+nonceSize+1 || raw[0] != blobVersion {
		return "", common.ErrDecryptionFailed
	}

	salt := raw[1 : 1+saltSize]
	nonce := raw[1+saltSize : 1+saltSize+nonceSize]
	ciphertext := raw[1+saltSize+nonceSize:]

	key := e.deriveKey(userID, salt)
	defer common.WipeBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", common.ErrDecryptionFailed
	}

	return string(plaintext), nil
}
