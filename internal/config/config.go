// Package config loads and validates app config from env and an optional
// .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or a path to
	// a file; used with JWT_PUBLIC_KEY to sign session tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or a path to a file.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "frootex-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "frootex-web").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTSessionTTL is the session token lifetime (e.g. "720h").
	JWTSessionTTL string `mapstructure:"JWT_SESSION_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// PhoneCountryCode is the fixed prefix applied to 10-digit local numbers
	// (e.g. "+91"). No other international formats are accepted.
	PhoneCountryCode string `mapstructure:"PHONE_COUNTRY_CODE"`
	// OTPTTL is how long an OTP challenge stays confirmable (e.g. "10m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// OTPResendCooldownSeconds is the countdown before resend is allowed.
	OTPResendCooldownSeconds int `mapstructure:"OTP_RESEND_COOLDOWN_SECONDS"`
	// OTPReturnToClient when true enables dev OTP mode: no SMS, OTP stored for
	// GET /dev/otp. Must not be true when Env is production.
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`

	// SMSLocalAPIKey is the API key for SMS Local. Required unless dev OTP
	// mode is on.
	SMSLocalAPIKey string `mapstructure:"SMS_LOCAL_API_KEY"`
	// SMSLocalSender is the optional sender ID for SMS Local.
	SMSLocalSender string `mapstructure:"SMS_LOCAL_SENDER"`
	// SMSLocalBaseURL is the SMS Local API base URL.
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`

	// CaptchaSecret is the shared secret for the human-verification widget.
	CaptchaSecret string `mapstructure:"CAPTCHA_SECRET"`
	// CaptchaVerifyURL overrides the siteverify endpoint (tests, self-hosted).
	CaptchaVerifyURL string `mapstructure:"CAPTCHA_VERIFY_URL"`

	// BlobDir is the directory the blob store writes uploads to.
	BlobDir string `mapstructure:"BLOB_DIR"`
	// BlobBaseURL prefixes returned blob URLs (e.g. http://localhost:8080/static).
	BlobBaseURL string `mapstructure:"BLOB_BASE_URL"`

	// CORSAllowedOrigins is a comma-separated list of allowed origins.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// OTLPEndpoint is the OTLP collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext export to https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "frootex-auth")
	v.SetDefault("JWT_AUDIENCE", "frootex-web")
	v.SetDefault("JWT_SESSION_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PHONE_COUNTRY_CODE", "+91")
	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("OTP_RESEND_COOLDOWN_SECONDS", 60)
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://www.smslocal.com/dev/bulkV2")
	v.SetDefault("BLOB_DIR", "./data/blobs")
	v.SetDefault("BLOB_BASE_URL", "/static")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}
	if !strings.HasPrefix(cfg.PhoneCountryCode, "+") {
		return nil, errors.New("config: PHONE_COUNTRY_CODE must start with +")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.OTPResendCooldownSeconds <= 0 {
		cfg.OTPResendCooldownSeconds = 60
	}

	return &cfg, nil
}

// SessionTTL parses JWTSessionTTL as a time.Duration. Returns 720h if unset
// or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTSessionTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// OTPChallengeTTL parses OTPTTL as a time.Duration. Returns 10m if unset or
// invalid.
func (c *Config) OTPChallengeTTL() time.Duration {
	d, err := time.ParseDuration(c.OTPTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// AllowedOriginsList returns the CORS origins from the comma-separated config.
func (c *Config) AllowedOriginsList() []string {
	if c == nil || c.CORSAllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
