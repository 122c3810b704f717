package service

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashFunc is the injected one-way credential hash.
type HashFunc func(plaintext string) (string, error)

// BcryptHash is the production HashFunc.
func BcryptHash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// credentialPrefixes are the opaque-hash prefix family produced by HashFunc.
var credentialPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// CredentialReconciler decides what credential value to store given an
// incoming snapshot value and the currently stored one. It performs no I/O.
type CredentialReconciler struct {
	hash HashFunc
}

// NewCredentialReconciler constructs a CredentialReconciler.
func NewCredentialReconciler(hash HashFunc) *CredentialReconciler {
	if hash == nil {
		hash = BcryptHash
	}
	return &CredentialReconciler{hash: hash}
}

// Resolve returns the canonical credential to store. Re-importing an
// unchanged snapshot never rehashes: an empty incoming value keeps the
// stored one, an identical value is treated as already canonical, a value
// carrying a recognized hash prefix is stored as-is, and anything else is
// hashed exactly once.
func (r *CredentialReconciler) Resolve(incoming, stored string) (string, error) {
	incoming = strings.TrimSpace(incoming)
	if incoming == "" {
		return stored, nil
	}
	if incoming == stored {
		return stored, nil
	}
	if hasCredentialPrefix(incoming) {
		return incoming, nil
	}
	return r.hash(incoming)
}

func hasCredentialPrefix(value string) bool {
	for _, prefix := range credentialPrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
