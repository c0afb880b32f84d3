package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrServer wraps every unexpected store or transport failure. Its detail is
	// logged, never shown to callers.
	ErrServer = errors.New("server error")
	// ErrUnauthorized means the caller has no usable identity or lacks the role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the record is absent or outside the caller's workspace.
	ErrNotFound = errors.New("not found")
	// ErrNoWorkspace means the identity has no membership at all.
	ErrNoWorkspace = errors.New("no workspace")
	// ErrRateLimited is returned by flows that do not mask rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// FieldError is a validation failure attached to one input field. Its message
// is safe to show verbatim.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func fieldError(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

// serverError logs the cause with context and returns an ErrServer wrapper.
func serverError(log *zap.Logger, op string, err error, fields ...zap.Field) error {
	log.Error(op+" failed", append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w", op, ErrServer)
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}
