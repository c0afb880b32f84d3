package app

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// minSecretBytes is the smallest signing secret accepted in production.
const minSecretBytes = 32

// KeyByteLength returns the decoded byte length of a secret. Hex is tried
// first because generated secrets are hex, then both base64 alphabets, and
// anything else counts as raw bytes.
func KeyByteLength(value string) (int, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, nil
	}

	if len(v)%2 == 0 {
		if decoded, err := hex.DecodeString(v); err == nil {
			return len(decoded), nil
		}
	}

	if decoded, err := base64.StdEncoding.DecodeString(v); err == nil {
		return len(decoded), nil
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(v); err == nil {
		return len(decoded), nil
	}

	return len(v), nil
}
