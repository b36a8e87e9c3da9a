package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	Env            string
	DatabaseURL    string
	RedisURL       string
	LogLevel       string
	LogFormat      string
	LogFile        string
	FrontendURL    string
	Domain         string
	TrustedProxies []string
	TOTPIssuer     string
	Tokens         TokenConfig
	Expiry         ExpiryConfig
	Email          EmailConfig
	Google         OAuthProvider
}

// Production reports whether cookies must be marked Secure.
func (c Config) Production() bool {
	return c.Env == "production"
}

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	PreAuthTTL    time.Duration
}

type ExpiryConfig struct {
	VerificationCode time.Duration
	OTP              time.Duration
	ResetToken       time.Duration
	PendingTOTP      time.Duration
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Secure   bool
}

func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

type OAuthProvider struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (p OAuthProvider) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != "" && p.RedirectURL != ""
}

func Load() (Config, error) {
	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	clean := func(key string) string { return cleanString(v, key) }

	cfg := Config{
		Port:           v.GetString("PORT"),
		Env:            strings.ToLower(firstNonEmpty(clean("APP_ENV"), clean("NODE_ENV"), "development")),
		DatabaseURL:    firstNonEmpty(clean("DATABASE_URL"), composeDatabaseURL(v)),
		RedisURL:       clean("REDIS_URL"),
		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:      strings.ToLower(v.GetString("LOG_FORMAT")),
		LogFile:        clean("LOG_FILE"),
		FrontendURL:    strings.TrimSuffix(clean("FRONTEND_URL"), "/"),
		Domain:         clean("DOMAIN"),
		TrustedProxies: parseList(v.GetString("TRUSTED_PROXIES")),
		TOTPIssuer:     v.GetString("TOTP_ISSUER"),
	}

	cfg.Tokens = TokenConfig{
		AccessSecret:  clean("ACCESS_TOKEN_SECRET"),
		RefreshSecret: clean("REFRESH_TOKEN_SECRET"),
		AccessTTL:     seconds(v, "ACCESS_TOKEN_EXPIRY"),
		RefreshTTL:    seconds(v, "REFRESH_TOKEN_EXPIRY"),
		PreAuthTTL:    seconds(v, "PRE_AUTH_TOKEN_EXPIRY"),
	}
	cfg.Expiry = ExpiryConfig{
		VerificationCode: seconds(v, "VERIFICATION_CODE_EXPIRY"),
		OTP:              seconds(v, "OTP_EXPIRY"),
		ResetToken:       seconds(v, "RESET_TOKEN_EXPIRY"),
		PendingTOTP:      seconds(v, "PENDING_TOTP_EXPIRY"),
	}

	emailUser := firstNonEmpty(clean("EMAIL_SERVER_USER"), clean("EMAIL_USER"))
	emailHost := clean("EMAIL_SERVER_HOST")
	if emailHost == "" && emailUser != "" {
		// EMAIL_USER / EMAIL_APP_PASSWORD are gmail app credentials.
		emailHost = "smtp.gmail.com"
	}
	cfg.Email = EmailConfig{
		Host:     emailHost,
		Port:     v.GetInt("EMAIL_SERVER_PORT"),
		Username: emailUser,
		Password: firstNonEmpty(clean("EMAIL_SERVER_PASSWORD"), clean("EMAIL_APP_PASSWORD")),
		From:     firstNonEmpty(clean("EMAIL_FROM"), emailUser),
		Secure:   v.GetBool("EMAIL_SERVER_SECURE") || v.GetInt("EMAIL_SERVER_PORT") == 465,
	}

	cfg.Google = OAuthProvider{
		ClientID:     clean("GOOGLE_CLIENT_ID"),
		ClientSecret: clean("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  clean("GOOGLE_REDIRECT_URI"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MigrateConfig is the subset the migrate command needs. It does not require
// the token secrets.
type MigrateConfig struct {
	DatabaseURL string
	LogLevel    string
	LogFormat   string
}

func LoadMigrate() (MigrateConfig, error) {
	v, err := newViper()
	if err != nil {
		return MigrateConfig{}, err
	}
	cfg := MigrateConfig{
		DatabaseURL: firstNonEmpty(cleanString(v, "DATABASE_URL"), composeDatabaseURL(v)),
		LogLevel:    strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:   strings.ToLower(v.GetString("LOG_FORMAT")),
	}
	if cfg.DatabaseURL == "" {
		return MigrateConfig{}, errMissingDatabaseURL
	}
	return cfg, nil
}

var errMissingDatabaseURL = errors.New("DATABASE_URL (or DB_HOST/DB_USER/DB_NAME) is required")

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}
	return v, nil
}

func cleanString(v *viper.Viper, key string) string {
	return strings.Trim(v.GetString(key), "\"' \t\r\n")
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return errMissingDatabaseURL
	}
	if c.Tokens.AccessSecret == "" || c.Tokens.RefreshSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	}
	if c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 || c.Tokens.PreAuthTTL <= 0 {
		return fmt.Errorf("token expiries must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("DOMAIN", "localhost")
	v.SetDefault("TOTP_ISSUER", "auth-system")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("ACCESS_TOKEN_EXPIRY", 900)
	v.SetDefault("REFRESH_TOKEN_EXPIRY", 604800)
	v.SetDefault("PRE_AUTH_TOKEN_EXPIRY", 300)
	v.SetDefault("VERIFICATION_CODE_EXPIRY", 3600)
	v.SetDefault("OTP_EXPIRY", 600)
	v.SetDefault("RESET_TOKEN_EXPIRY", 3600)
	v.SetDefault("PENDING_TOTP_EXPIRY", 900)

	v.SetDefault("EMAIL_SERVER_PORT", 587)
}

func composeDatabaseURL(v *viper.Viper) string {
	host := v.GetString("DB_HOST")
	user := v.GetString("DB_USER")
	name := v.GetString("DB_NAME")
	if host == "" || user == "" || name == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, v.GetString("DB_PASSWORD")),
		Host:     host + ":" + v.GetString("DB_PORT"),
		Path:     "/" + name,
		RawQuery: "sslmode=" + v.GetString("DB_SSLMODE"),
	}
	return u.String()
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Second
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseList(val string) []string {
	parts := strings.Split(val, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
