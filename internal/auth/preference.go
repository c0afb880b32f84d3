package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PreferenceCookieName is the cookie carrying the signed workspace preference.
const PreferenceCookieName = "current-workspace"

const preferenceAudience = "workspace-preference"

// PreferenceClaims binds a workspace choice to the user that made it.
type PreferenceClaims struct {
	UserID      string `json:"uid"`
	WorkspaceID string `json:"wid"`
	jwt.RegisteredClaims
}

// PreferenceSigner signs and verifies workspace preferences. A verified
// preference is still only a hint: callers must confirm membership.
type PreferenceSigner struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewPreferenceSigner builds a signer whose tokens live for maxAge.
func NewPreferenceSigner(secret string, maxAge time.Duration, clock func() time.Time) (*PreferenceSigner, error) {
	if secret == "" {
		return nil, errors.New("preference: secret must be provided")
	}
	if maxAge <= 0 {
		return nil, errors.New("preference: max age must be positive")
	}
	if clock == nil {
		clock = time.Now
	}
	return &PreferenceSigner{secret: []byte(secret), maxAge: maxAge, now: clock}, nil
}

// Sign returns a token recording that userID selected workspaceID.
func (s *PreferenceSigner) Sign(userID, workspaceID string) (string, time.Time, error) {
	if userID == "" || workspaceID == "" {
		return "", time.Time{}, errors.New("preference: user and workspace are required")
	}
	now := s.now()
	expiresAt := now.Add(s.maxAge)
	claims := &PreferenceClaims{
		UserID:      userID,
		WorkspaceID: workspaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{preferenceAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("preference: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// WorkspaceFor returns the workspace id recorded in token when the token is
// authentic, unexpired and was issued to userID. Any failure yields "".
func (s *PreferenceSigner) WorkspaceFor(token, userID string) string {
	if token == "" || userID == "" {
		return ""
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithAudience(preferenceAudience),
	)
	var claims PreferenceClaims
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}); err != nil {
		return ""
	}
	if claims.UserID != userID {
		return ""
	}
	return claims.WorkspaceID
}
