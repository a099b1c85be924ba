// Package seal encrypts credential blobs before they land in durable storage.
// The key is derived from a device-local secret with scrypt; the blob format
// is salt || nonce || ciphertext.
package seal

import (
	"crypto/rand"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const saltLength = 16

// scrypt parameters sized for a mobile-class device
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Sealer performs authenticated encryption of opaque storage values.
type Sealer struct {
	secret []byte
}

// New creates a Sealer from a device-local secret. The secret is not the key;
// a fresh key is derived per sealed value.
func New(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, errors.New("[seal.New] secret is required")
	}
	s := &Sealer{secret: make([]byte, len(secret))}
	copy(s.secret, secret)
	return s, nil
}

func (s *Sealer) deriveKey(salt []byte) ([]byte, error) {
	return scrypt.Key(s.secret, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
}

// Seal encrypts plaintext into a self-describing blob.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "[Sealer.Seal] generate salt")
	}

	key, err := s.deriveKey(salt)
	if err != nil {
		return nil, errors.Wrap(err, "[Sealer.Seal] derive key")
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "[Sealer.Seal] create cipher")
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "[Sealer.Seal] generate nonce")
	}

	blob := make([]byte, 0, saltLength+len(nonce)+len(plaintext)+aead.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	return aead.Seal(blob, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(blob []byte) ([]byte, error) {
	key, err := func() ([]byte, error) {
		if len(blob) < saltLength {
			return nil, errors.New("blob too short")
		}
		return s.deriveKey(blob[:saltLength])
	}()
	if err != nil {
		return nil, errors.Wrap(err, "[Sealer.Open] derive key")
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "[Sealer.Open] create cipher")
	}

	rest := blob[saltLength:]
	if len(rest) < aead.NonceSize() {
		return nil, errors.New("[Sealer.Open] blob too short")
	}
	nonce, ciphertext := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Sealer.Open] decrypt")
	}
	return plaintext, nil
}
