package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrKeyRejected = errors.New("security: key rejected")

// BcryptHasher hashes and verifies operator keys.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(key string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(key), h.cost())
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (h BcryptHasher) Compare(hash, key string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
}

func (h BcryptHasher) cost() int {
	if h.Cost >= bcrypt.MinCost {
		return h.Cost
	}
	return bcrypt.DefaultCost
}

// OperatorKeyVerifier checks presented operator keys against one configured
// bcrypt hash. An empty hash rejects every key.
type OperatorKeyVerifier struct {
	Hash   string
	Hasher BcryptHasher
}

func (v OperatorKeyVerifier) Verify(key string) error {
	if v.Hash == "" || key == "" {
		return ErrKeyRejected
	}
	if err := v.Hasher.Compare(v.Hash, key); err != nil {
		return ErrKeyRejected
	}
	return nil
}
