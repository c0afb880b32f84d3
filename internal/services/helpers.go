package services

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Password length bounds. Signup keeps the historical minimum of six
// characters; reset and change require eight.
const (
	SignupPasswordMin = 6
	PasswordMin       = 8
	PasswordMax       = 100
)

func checkPassword(field, password string, minLen int) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < minLen:
		return fieldError(field, fmt.Sprintf("Password must be at least %d characters", minLen))
	case n > PasswordMax:
		return fieldError(field, fmt.Sprintf("Password must be at most %d characters", PasswordMax))
	}
	return nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normaliseTags(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
