package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt cost bounds accepted by configuration.
const (
	MinPasswordCost     = bcrypt.MinCost
	MaxPasswordCost     = bcrypt.MaxCost
	DefaultPasswordCost = 10

	// bcrypt only reads the first 72 bytes of its input.
	bcryptMaxInput = 72
)

// bcryptInput pre-hashes passwords longer than bcrypt accepts so that every
// byte still contributes. Shorter inputs pass through unchanged.
func bcryptInput(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// PasswordHasher hashes and verifies passwords with a fixed bcrypt cost.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher validates the cost and returns a hasher using it.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < MinPasswordCost || cost > MaxPasswordCost {
		return nil, fmt.Errorf("crypto: bcrypt cost %d outside [%d, %d]", cost, MinPasswordCost, MaxPasswordCost)
	}
	return &PasswordHasher{cost: cost}, nil
}

// Hash returns a bcrypt hash of the supplied password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares the hashed password with the plaintext candidate.
func (h *PasswordHasher) Verify(hashedPassword, password string) bool {
	return VerifyPassword(hashedPassword, password)
}

// VerifyPassword compares the hashed password with the plaintext candidate.
func VerifyPassword(hashedPassword, password string) bool {
	if hashedPassword == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), bcryptInput(password)) == nil
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
