package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/internal/ratelimit"
	"github.com/charlesng35/tenantcrm/pkg/crypto"
	"github.com/charlesng35/tenantcrm/pkg/logger"
	"github.com/charlesng35/tenantcrm/pkg/metrics"
)

const defaultResetExpiry = 30 * time.Minute

var (
	// ErrTokenInvalid covers every unusable reset token: unknown, used or expired.
	ErrTokenInvalid = errors.New("password reset: token invalid")
	// ErrNoPasswordSet indicates an account that only signs in externally.
	ErrNoPasswordSet = errors.New("password: account has no password")
	// ErrWrongPassword indicates the supplied current password does not match.
	ErrWrongPassword = errors.New("password: current password is incorrect")
)

// Reasons reported on the debug channel of RequestReset.
const (
	ResetSent         = "sent"
	ResetRateLimited  = "rate_limited"
	ResetUnknownEmail = "user_not_found"
	ResetNoPassword   = "oauth_user"
	ResetEmailFailed  = "smtp_failed"
	ResetServerError  = "server_error"
)

// ResetDebug explains what RequestReset actually did. It is only populated
// when the service runs with debug output enabled.
type ResetDebug struct {
	Sent   bool   `json:"sent"`
	Reason string `json:"reason"`
}

// ResetOutcome is the externally visible result of RequestReset. Outside debug
// mode it is identical for every input.
type ResetOutcome struct {
	Debug *ResetDebug `json:"debug,omitempty"`
}

// PasswordOption customises PasswordService behaviour.
type PasswordOption func(*PasswordService)

// WithResetExpiry overrides the reset token lifetime.
func WithResetExpiry(d time.Duration) PasswordOption {
	return func(s *PasswordService) {
		if d > 0 {
			s.resetExpiry = d
		}
	}
}

// WithPasswordClock injects a custom clock primarily for testing.
func WithPasswordClock(clock func() time.Time) PasswordOption {
	return func(s *PasswordService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithResetDebug enables the debug channel on RequestReset. Never enable it in
// production.
func WithResetDebug(enabled bool) PasswordOption {
	return func(s *PasswordService) {
		s.debug = enabled
	}
}

// PasswordLimiters are the admission limiters guarding the two flows.
type PasswordLimiters struct {
	ResetRequest   *ratelimit.Limiter
	ChangePassword *ratelimit.Limiter
}

// PasswordService handles forgotten-password resets and authenticated changes.
type PasswordService struct {
	db          *gorm.DB
	hasher      *crypto.PasswordHasher
	issuer      *crypto.SecretIssuer
	limiters    PasswordLimiters
	notifier    ResetNotifier
	links       *LinkBuilder
	resetExpiry time.Duration
	debug       bool
	now         func() time.Time
	log         *zap.Logger
}

// NewPasswordService constructs a PasswordService with the provided dependencies.
func NewPasswordService(db *gorm.DB, hasher *crypto.PasswordHasher, issuer *crypto.SecretIssuer, limiters PasswordLimiters, notifier ResetNotifier, links *LinkBuilder, opts ...PasswordOption) (*PasswordService, error) {
	switch {
	case db == nil:
		return nil, errors.New("password service: db is required")
	case hasher == nil:
		return nil, errors.New("password service: hasher is required")
	case issuer == nil:
		return nil, errors.New("password service: secret issuer is required")
	case limiters.ResetRequest == nil || limiters.ChangePassword == nil:
		return nil, errors.New("password service: both limiters are required")
	case notifier == nil:
		return nil, errors.New("password service: notifier is required")
	case links == nil:
		return nil, errors.New("password service: link builder is required")
	}

	service := &PasswordService{
		db:          db,
		hasher:      hasher,
		issuer:      issuer,
		limiters:    limiters,
		notifier:    notifier,
		links:       links,
		resetExpiry: defaultResetExpiry,
		now:         time.Now,
		log:         logger.WithModule("password"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// RequestReset starts a reset for email. Apart from a malformed email it
// always succeeds, whether or not an account exists, the request was rate
// limited, or delivery failed. What really happened is logged and, in debug
// mode, returned in Debug.
func (s *PasswordService) RequestReset(ctx context.Context, email string) (ResetOutcome, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return ResetOutcome{}, fieldError("email", "Email is required")
	}

	reason := s.requestReset(ctx, email)
	metrics.PasswordEvents.WithLabelValues("reset_request", reason).Inc()

	if !s.debug {
		return ResetOutcome{}, nil
	}
	return ResetOutcome{Debug: &ResetDebug{Sent: reason == ResetSent, Reason: reason}}, nil
}

func (s *PasswordService) requestReset(ctx context.Context, email string) string {
	log := s.log.With(zap.String("email", email))

	decision, err := s.limiters.ResetRequest.Allow(ctx, email)
	if err != nil {
		log.Error("reset limiter unavailable", zap.Error(err))
		return ResetServerError
	}
	if !decision.Allowed {
		log.Warn("password reset rate limited", zap.Duration("retry_after", decision.RetryAfter))
		return ResetRateLimited
	}

	db := s.db.WithContext(ctx)
	var user models.User
	err = db.Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Info("password reset requested for unknown email")
		return ResetUnknownEmail
	}
	if err != nil {
		log.Error("load user for password reset", zap.Error(err))
		return ResetServerError
	}
	if !user.HasPassword() {
		log.Info("password reset requested for account without password", zap.String("user_id", user.ID))
		return ResetNoPassword
	}

	raw, digest, err := s.issuer.Issue()
	if err != nil {
		log.Error("issue reset secret", zap.Error(err))
		return ResetServerError
	}

	now := s.now().UTC()
	token := models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: digest,
		ExpiresAt: now.Add(s.resetExpiry),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := invalidateResetTokens(tx, user.ID, "", now); err != nil {
			return err
		}
		return tx.Create(&token).Error
	})
	if err != nil {
		log.Error("store reset token", zap.Error(err))
		return ResetServerError
	}

	sent := s.notifier.SendPasswordReset(ctx, user.Email, ResetEmail{
		Name:      user.DisplayName(),
		Link:      s.links.ResetPassword(raw),
		ExpiresIn: s.resetExpiry,
	})
	if !sent {
		log.Error("password reset email not delivered", zap.String("user_id", user.ID))
		return ResetEmailFailed
	}

	log.Info("password reset email sent", zap.String("user_id", user.ID))
	return ResetSent
}

// PerformReset sets a new password using a reset token. The token is spent in
// the same transaction that replaces the hash. Every token failure yields
// ErrTokenInvalid.
func (s *PasswordService) PerformReset(ctx context.Context, rawToken, newPassword string) error {
	if err := checkPassword("password", newPassword, PasswordMin); err != nil {
		return err
	}
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return ErrTokenInvalid
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return serverError(s.log, "hash password", err)
	}

	var userID string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var token models.PasswordResetToken
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ?", crypto.HashSecret(rawToken)).
			Take(&token).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenInvalid
		}
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if !token.UsableAt(now) {
			return ErrTokenInvalid
		}

		spend := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used_at IS NULL", token.ID).
			Update("used_at", now)
		if spend.Error != nil {
			return spend.Error
		}
		if spend.RowsAffected == 0 {
			return ErrTokenInvalid
		}

		update := tx.Model(&models.User{}).Where("id = ?", token.UserID).Update("password_hash", hash)
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return ErrTokenInvalid
		}

		userID = token.UserID
		return invalidateResetTokens(tx, token.UserID, token.ID, now)
	})
	if errors.Is(err, ErrTokenInvalid) {
		metrics.PasswordEvents.WithLabelValues("reset", "invalid_token").Inc()
		return ErrTokenInvalid
	}
	if err != nil {
		metrics.PasswordEvents.WithLabelValues("reset", "error").Inc()
		return serverError(s.log, "perform password reset", err)
	}

	metrics.PasswordEvents.WithLabelValues("reset", "success").Inc()
	s.log.Info("password reset completed", zap.String("user_id", userID))
	return nil
}

// ChangePassword replaces the password of an authenticated user who knows the
// current one. The limiter is consulted before anything else, so a blocked
// caller never gets the current password checked.
func (s *PasswordService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if userID == "" {
		return ErrUnauthorized
	}

	decision, err := s.limiters.ChangePassword.Allow(ctx, userID)
	if err != nil {
		return serverError(s.log, "check password change limit", err, zap.String("user_id", userID))
	}
	if !decision.Allowed {
		metrics.PasswordEvents.WithLabelValues("change", "rate_limited").Inc()
		s.log.Warn("password change rate limited", zap.String("user_id", userID))
		return ErrRateLimited
	}

	if currentPassword == "" {
		return fieldError("current_password", "Current password is required")
	}
	if err := checkPassword("new_password", newPassword, PasswordMin); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var user models.User
	err = db.Select("id", "password_hash").Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return serverError(s.log, "load user", err, zap.String("user_id", userID))
	}
	if !user.HasPassword() {
		return ErrNoPasswordSet
	}
	if !s.hasher.Verify(*user.PasswordHash, currentPassword) {
		metrics.PasswordEvents.WithLabelValues("change", "wrong_password").Inc()
		return ErrWrongPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return serverError(s.log, "hash password", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("password_hash", hash).Error; err != nil {
			return err
		}
		return invalidateResetTokens(tx, userID, "", s.now().UTC())
	})
	if err != nil {
		return serverError(s.log, "change password", err, zap.String("user_id", userID))
	}

	metrics.PasswordEvents.WithLabelValues("change", "success").Inc()
	s.log.Info("password changed", zap.String("user_id", userID))
	return nil
}

// invalidateResetTokens marks every unused token of userID as used, except keep.
func invalidateResetTokens(tx *gorm.DB, userID, keep string, now time.Time) error {
	query := tx.Model(&models.PasswordResetToken{}).Where("user_id = ? AND used_at IS NULL", userID)
	if keep != "" {
		query = query.Where("id <> ?", keep)
	}
	return query.Update("used_at", now).Error
}
