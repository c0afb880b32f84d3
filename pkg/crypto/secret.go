package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// MinSecretBytes is the smallest entropy accepted for single-use secrets (256 bits).
const MinSecretBytes = 32

// ErrSecretTooShort is returned when an issuer is configured below MinSecretBytes.
var ErrSecretTooShort = errors.New("crypto: secret size below 32 bytes")

// SecretIssuer mints single-use secrets and their one-way digests. Only the
// digest is meant to be stored; the raw value travels once inside a link.
type SecretIssuer struct {
	size   int
	reader io.Reader
}

// IssuerOption customises a SecretIssuer.
type IssuerOption func(*SecretIssuer)

// WithSecretSize overrides the number of random bytes per secret.
func WithSecretSize(size int) IssuerOption {
	return func(i *SecretIssuer) {
		i.size = size
	}
}

// WithRandomSource swaps the entropy source, used by tests to force failures.
func WithRandomSource(r io.Reader) IssuerOption {
	return func(i *SecretIssuer) {
		if r != nil {
			i.reader = r
		}
	}
}

// NewSecretIssuer builds an issuer producing MinSecretBytes secrets by default.
func NewSecretIssuer(opts ...IssuerOption) (*SecretIssuer, error) {
	issuer := &SecretIssuer{
		size:   MinSecretBytes,
		reader: rand.Reader,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	if issuer.size < MinSecretBytes {
		return nil, ErrSecretTooShort
	}
	return issuer, nil
}

// Issue returns a hex encoded raw secret and its SHA-256 digest.
func (i *SecretIssuer) Issue() (raw string, digest string, err error) {
	buf := make([]byte, i.size)
	if _, err := io.ReadFull(i.reader, buf); err != nil {
		return "", "", fmt.Errorf("crypto: read random secret: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, HashSecret(raw), nil
}

// HashSecret returns the deterministic hex SHA-256 digest of a raw secret.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

