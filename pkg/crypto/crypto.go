// Package crypto hashes member passwords and generates random secrets.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost used for new hashes. Hashes made with a
// lower cost are upgraded on the next successful login.
const PasswordCost = bcrypt.DefaultCost

var (
	ErrEmptyPassword = errors.New("crypto: password must not be empty")
	// ErrPasswordTooLong is returned for passwords bcrypt would truncate.
	ErrPasswordTooLong = errors.New("crypto: password exceeds 72 bytes")
)

// HashPassword hashes password with PasswordCost.
func HashPassword(password string) (string, error) {
	return hashWithCost(password, PasswordCost)
}

func hashWithCost(password string, cost int) (string, error) {
	switch {
	case password == "":
		return "", ErrEmptyPassword
	case len(password) > 72:
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("crypto: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches hash. An empty hash never matches.
func VerifyPassword(hash, password string) bool {
	return hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether hash was produced with a cost below PasswordCost.
// Unparseable hashes are reported as not needing a rehash since they cannot
// have been verified either.
func NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err == nil && cost < PasswordCost
}

// GenerateToken returns n random bytes encoded as unpadded URL-safe base64.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("crypto: token length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypto: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
