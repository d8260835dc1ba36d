package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/musicbox/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultAccessTTL       = 15 * time.Minute
	defaultRefreshTTL      = 7 * 24 * time.Hour
	defaultS3Region        = "us-east-1"
	defaultAppRedirectURL  = "musicbox://auth"
	defaultAuthRateLimit   = 60
	defaultCleanupInterval = time.Hour
)

type Config struct {
	// Default logging level
	LogLevel string `validate:"oneof=debug info warn error"`

	// Address on which the service will be run
	ListenAddr string `validate:"required"`

	// Database to connect to
	DatabaseDSN string `validate:"required"`

	// Environment
	Environment string `validate:"oneof=dev prod"`

	// JWT secrets. Access and refresh tokens are signed with different keys
	AccessSecret  string `validate:"required"`
	RefreshSecret string `validate:"required,nefield=AccessSecret"`

	AccessTTL  time.Duration `validate:"min=1s"`
	RefreshTTL time.Duration `validate:"min=1s,gtfield=AccessTTL"`

	// Emails allowed to log in. Nobody may log in if empty
	AllowedEmails []string

	// Object storage
	S3Endpoint     string
	S3Region       string `validate:"required"`
	S3Bucket       string `validate:"required"`
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Identity provider. Browser login is disabled unless all set
	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthUserInfoURL  string
	OAuthRedirectURL  string

	// Native app URL receiving one-time authorization code after browser login
	OAuthAppRedirectURL string `validate:"required,url"`

	// Requests per minute per client on /auth/ routes, 0 disables limiting
	AuthRateLimit int `validate:"min=0"`

	// How often expired refresh tokens and authorization codes are removed
	CleanupInterval time.Duration `validate:"min=1s"`
}

func NewConfig() *Config {
	return &Config{
		LogLevel:            defaultLoggingLevel,
		ListenAddr:          defaultListenAddr,
		Environment:         defaultEnvironment,
		AccessTTL:           defaultAccessTTL,
		RefreshTTL:          defaultRefreshTTL,
		S3Region:            defaultS3Region,
		S3UsePathStyle:      true,
		OAuthAppRedirectURL: defaultAppRedirectURL,
		AuthRateLimit:       defaultAuthRateLimit,
		CleanupInterval:     defaultCleanupInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			return (*durationValue)(o).Set(value)
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = b
			return nil
		}
	}
	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = splitList(value)
			}
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":            setString(&c.ListenAddr),
		"DATABASE_URI":           setString(&c.DatabaseDSN),
		"LOG_LEVEL":              setString(&c.LogLevel),
		"ENVIRONMENT":            setString(&c.Environment),
		"ACCESS_TOKEN_SECRET":    setString(&c.AccessSecret),
		"REFRESH_TOKEN_SECRET":   setString(&c.RefreshSecret),
		"ACCESS_TOKEN_TTL":       setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL":      setDuration(&c.RefreshTTL),
		"ALLOWED_EMAILS":         setList(&c.AllowedEmails),
		"S3_ENDPOINT":            setString(&c.S3Endpoint),
		"S3_REGION":              setString(&c.S3Region),
		"S3_BUCKET":              setString(&c.S3Bucket),
		"S3_ACCESS_KEY":          setString(&c.S3AccessKey),
		"S3_SECRET_KEY":          setString(&c.S3SecretKey),
		"S3_USE_PATH_STYLE":      setBool(&c.S3UsePathStyle),
		"OAUTH_CLIENT_ID":        setString(&c.OAuthClientID),
		"OAUTH_CLIENT_SECRET":    setString(&c.OAuthClientSecret),
		"OAUTH_AUTH_URL":         setString(&c.OAuthAuthURL),
		"OAUTH_TOKEN_URL":        setString(&c.OAuthTokenURL),
		"OAUTH_USERINFO_URL":     setString(&c.OAuthUserInfoURL),
		"OAUTH_REDIRECT_URL":     setString(&c.OAuthRedirectURL),
		"OAUTH_APP_REDIRECT_URL": setString(&c.OAuthAppRedirectURL),
		"AUTH_RATE_LIMIT":        setInt(&c.AuthRateLimit),
		"CLEANUP_INTERVAL":       setDuration(&c.CleanupInterval),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("musicbox", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	fs.StringVar(&c.AccessSecret, "access-secret", c.AccessSecret, "Access token signing secret")
	fs.StringVar(&c.RefreshSecret, "refresh-secret", c.RefreshSecret, "Refresh token signing secret")
	fs.Var((*durationValue)(&c.AccessTTL), "access-ttl", "Access token lifetime, e.g. 15m")
	fs.Var((*durationValue)(&c.RefreshTTL), "refresh-ttl", "Refresh token lifetime, e.g. 7d")
	fs.StringSliceVar(&c.AllowedEmails, "allowed-emails", c.AllowedEmails, "Comma separated emails allowed to log in")

	fs.StringVar(&c.S3Endpoint, "s3-endpoint", c.S3Endpoint, "S3 compatible endpoint, empty for AWS")
	fs.StringVar(&c.S3Region, "s3-region", c.S3Region, "S3 region")
	fs.StringVar(&c.S3Bucket, "s3-bucket", c.S3Bucket, "S3 bucket with tracks and album art")
	fs.StringVar(&c.S3AccessKey, "s3-access-key", c.S3AccessKey, "S3 access key, empty for default credentials chain")
	fs.StringVar(&c.S3SecretKey, "s3-secret-key", c.S3SecretKey, "S3 secret key")
	fs.BoolVar(&c.S3UsePathStyle, "s3-path-style", c.S3UsePathStyle, "Use path style S3 addressing")

	fs.StringVar(&c.OAuthClientID, "oauth-client-id", c.OAuthClientID, "OAuth client id")
	fs.StringVar(&c.OAuthClientSecret, "oauth-client-secret", c.OAuthClientSecret, "OAuth client secret")
	fs.StringVar(&c.OAuthAuthURL, "oauth-auth-url", c.OAuthAuthURL, "OAuth provider authorize endpoint")
	fs.StringVar(&c.OAuthTokenURL, "oauth-token-url", c.OAuthTokenURL, "OAuth provider token endpoint")
	fs.StringVar(&c.OAuthUserInfoURL, "oauth-userinfo-url", c.OAuthUserInfoURL, "OAuth provider userinfo endpoint")
	fs.StringVar(&c.OAuthRedirectURL, "oauth-redirect-url", c.OAuthRedirectURL, "Our OAuth callback URL registered at the provider")
	fs.StringVar(&c.OAuthAppRedirectURL, "oauth-app-redirect-url", c.OAuthAppRedirectURL, "App URL receiving authorization code")

	fs.IntVar(&c.AuthRateLimit, "auth-rate-limit", c.AuthRateLimit, "Requests per minute per client on auth routes, 0 disables")
	fs.Var((*durationValue)(&c.CleanupInterval), "cleanup-interval", "Expired credentials cleanup interval")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Duration flag also accepting whole days, e.g. "7d"
type durationValue time.Duration

func (d *durationValue) Set(value string) error {
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid duration %q", value)
		}
		*d = durationValue(time.Duration(n) * 24 * time.Hour)
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*d = durationValue(parsed)
	return nil
}

func (d *durationValue) String() string {
	return time.Duration(*d).String()
}

func (d *durationValue) Type() string {
	return "duration"
}
