package web

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// authenticator keeps an argon2id digest of the configured dashboard password
// so the plaintext is not held in memory after startup. The salt is generated
// per process; sessions do not survive a restart anyway.
type authenticator struct {
	salt   []byte
	digest []byte
}

func newAuthenticator(password string) (*authenticator, error) {
	if password == "" {
		return nil, nil
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return &authenticator{salt: salt, digest: deriveKey(password, salt)}, nil
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
}

// verify reports whether the given password matches. A nil authenticator
// means auth is disabled and everything verifies.
func (a *authenticator) verify(password string) bool {
	if a == nil {
		return true
	}
	return subtle.ConstantTimeCompare(deriveKey(password, a.salt), a.digest) == 1
}
