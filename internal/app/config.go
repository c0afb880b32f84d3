package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/tenantcrm/pkg/crypto"
	"github.com/charlesng35/tenantcrm/pkg/validator"
)

// Runtime environments.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Config represents the runtime configuration for the TenantCRM backend.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Invitations   InvitationConfig    `mapstructure:"invitations"`
	PasswordReset PasswordResetConfig `mapstructure:"password_reset"`
	RateLimits    RateLimitConfig     `mapstructure:"rate_limits"`
	Workspace     WorkspaceConfig     `mapstructure:"workspace"`
	Email         EmailConfig         `mapstructure:"email"`
	Maintenance   MaintenanceConfig   `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	Environment string `mapstructure:"environment" validate:"oneof=development test production"`
	BaseURL     string `mapstructure:"base_url" validate:"required,url"`
	LogLevel    string `mapstructure:"log_level"`
}

// IsProduction reports whether the production profile is active.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

// IsDevelopment reports whether the development profile is active.
func (c ServerConfig) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string            `mapstructure:"driver" validate:"oneof=sqlite postgres mysql"`
	Path            string            `mapstructure:"path"`
	DSN             string            `mapstructure:"dsn"`
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Name            string            `mapstructure:"name"`
	User            string            `mapstructure:"user"`
	Password        string            `mapstructure:"password"`
	Options         map[string]string `mapstructure:"options"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration     `mapstructure:"conn_max_lifetime"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT              JWTSettings `mapstructure:"jwt"`
	BcryptCost       int         `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
	PreferenceSecret string      `mapstructure:"preference_secret" validate:"required"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret" validate:"required"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// InvitationConfig controls invitation lifetimes.
type InvitationConfig struct {
	ExpiryDays int `mapstructure:"expiry_days" validate:"gte=1"`
}

// PasswordResetConfig controls reset token lifetimes.
type PasswordResetConfig struct {
	ExpiryMinutes int `mapstructure:"expiry_minutes" validate:"gte=1"`
}

// RateLimitConfig configures the admission limiters and their backing store.
type RateLimitConfig struct {
	Backend        string       `mapstructure:"backend" validate:"oneof=memory database"`
	ResetRequest   WindowConfig `mapstructure:"reset_request"`
	ChangePassword WindowConfig `mapstructure:"change_password"`
	API            WindowConfig `mapstructure:"api"`
}

// WindowConfig is one fixed-window policy.
type WindowConfig struct {
	Window time.Duration `mapstructure:"window" validate:"gt=0"`
	Max    int           `mapstructure:"max" validate:"gte=1"`
}

// WorkspaceConfig controls the workspace preference cookie.
type WorkspaceConfig struct {
	PreferenceMaxAgeDays int `mapstructure:"preference_max_age_days" validate:"gte=1"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	Provider string         `mapstructure:"provider" validate:"oneof=log smtp sendgrid mailgun"`
	From     string         `mapstructure:"from"`
	AppName  string         `mapstructure:"app_name"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	SendGrid SendGridConfig `mapstructure:"sendgrid"`
	Mailgun  MailgunConfig  `mapstructure:"mailgun"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SendGridConfig holds SendGrid API settings.
type SendGridConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	FromName string        `mapstructure:"from_name"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MailgunConfig holds Mailgun API settings.
type MailgunConfig struct {
	Domain  string        `mapstructure:"domain"`
	APIKey  string        `mapstructure:"api_key"`
	APIBase string        `mapstructure:"api_base"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MaintenanceConfig schedules background cleanup.
type MaintenanceConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	Schedule            string        `mapstructure:"schedule"`
	ResetTokenRetention time.Duration `mapstructure:"reset_token_retention"`
}

// requiredInProduction lists the keys that must be set explicitly when the
// production profile is active. None of them has a production default.
var requiredInProduction = []string{
	"server.base_url",
	"auth.jwt.secret",
	"auth.preference_secret",
	"auth.bcrypt_cost",
	"invitations.expiry_days",
	"password_reset.expiry_minutes",
	"rate_limits.reset_request.window",
	"rate_limits.reset_request.max",
	"rate_limits.change_password.window",
	"rate_limits.change_password.max",
	"workspace.preference_max_age_days",
}

// MissingKeysError reports every required key that was left unset.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return "config: missing required production settings: " + strings.Join(e.Keys, ", ")
}

// LoadConfig initialises application configuration using Viper. Outside
// production every domain tunable falls back to a safe default; in production
// the tunables must be supplied and startup fails naming each missing key.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("CRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	env := strings.ToLower(strings.TrimSpace(v.GetString("server.environment")))
	if env == EnvProduction {
		if missing := missingKeys(v, requiredInProduction); len(missing) > 0 {
			return nil, &MissingKeysError{Keys: missing}
		}
	} else {
		setDomainDefaults(v)
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	config.Server.Environment = env

	return &config, nil
}

// Validate checks the loaded configuration against the allowed ranges. It is
// called after ApplyRuntimeDefaults so generated secrets count as present.
func (c *Config) Validate() error {
	if err := validator.ValidateStruct(c); err != nil {
		var failures validator.ValidationErrors
		if errors.As(err, &failures) {
			return fmt.Errorf("config: invalid settings: %w", failures)
		}
		return fmt.Errorf("config: validate: %w", err)
	}
	if c.Server.IsProduction() {
		length, err := KeyByteLength(c.Auth.JWT.Secret)
		if err != nil || length < minSecretBytes {
			return fmt.Errorf("config: auth.jwt.secret must decode to at least %d bytes", minSecretBytes)
		}
		length, err = KeyByteLength(c.Auth.PreferenceSecret)
		if err != nil || length < minSecretBytes {
			return fmt.Errorf("config: auth.preference_secret must decode to at least %d bytes", minSecretBytes)
		}
	}
	return nil
}

func missingKeys(v *viper.Viper, keys []string) []string {
	var missing []string
	for _, key := range keys {
		if !v.IsSet(key) || strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/tenantcrm.sqlite")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("auth.jwt.issuer", "tenantcrm")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("rate_limits.backend", "memory")
	v.SetDefault("rate_limits.api.window", "1m")
	v.SetDefault("rate_limits.api.max", 60)

	v.SetDefault("email.provider", "log")
	v.SetDefault("email.from", "no-reply@tenantcrm.local")
	v.SetDefault("email.app_name", "TenantCRM")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")
	v.SetDefault("email.sendgrid.timeout", "10s")
	v.SetDefault("email.mailgun.timeout", "10s")

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.schedule", "@hourly")
	v.SetDefault("maintenance.reset_token_retention", "168h")
}

// setDomainDefaults fills the tunables that production must set explicitly.
// Secrets are left empty here and generated by ApplyRuntimeDefaults.
func setDomainDefaults(v *viper.Viper) {
	v.SetDefault("server.base_url", "http://localhost:3000")
	v.SetDefault("auth.bcrypt_cost", crypto.DefaultPasswordCost)
	v.SetDefault("invitations.expiry_days", 7)
	v.SetDefault("password_reset.expiry_minutes", 30)
	v.SetDefault("rate_limits.reset_request.window", "15m")
	v.SetDefault("rate_limits.reset_request.max", 5)
	v.SetDefault("rate_limits.change_password.window", "10m")
	v.SetDefault("rate_limits.change_password.max", 5)
	v.SetDefault("workspace.preference_max_age_days", 365)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
