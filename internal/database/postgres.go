package database

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.New(postgres.Config{DSN: dsn}), gormConfig())
}

// buildPostgresDSN renders a keyword/value connection string. Explicit DSNs
// are passed through after pgx confirms they parse.
func buildPostgresDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		if _, err := pgx.ParseConfig(dsn); err != nil {
			return "", fmt.Errorf("postgres dsn: %w", err)
		}
		return dsn, nil
	}

	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	settings := map[string]string{
		"host":     firstNonEmpty(cfg.Host, "localhost"),
		"port":     strconv.Itoa(portOrDefault(cfg.Port, 5432)),
		"user":     cfg.User,
		"dbname":   cfg.Name,
		"sslmode":  "disable",
		"TimeZone": "UTC",
	}
	if cfg.Password != "" {
		settings["password"] = cfg.Password
	}
	for key, value := range cfg.Options {
		settings[key] = value
	}

	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+quoteConnValue(settings[key]))
	}
	return strings.Join(parts, " "), nil
}

// quoteConnValue applies libpq quoting to values that are empty or contain
// spaces, quotes or backslashes.
func quoteConnValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return "'" + escaped + "'"
}

func firstNonEmpty(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func portOrDefault(port, fallback int) int {
	if port > 0 {
		return port
	}
	return fallback
}
