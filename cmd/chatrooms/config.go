package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/chatrooms/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultRefreshRotation = "revoke"
	defaultAuthRateLimit   = 5
	defaultAuthRateBurst   = 10
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the chatrooms service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret keys to sign access and refresh tokens. Must differ
	SecretKey        string
	RefreshSecretKey string

	// Environment
	Environment string

	// Refresh token rotation: 'revoke' (used token is rejected) or 'keep'
	RefreshRotation string

	// Browser origins allowed to open websocket besides the server own origin
	AllowedOrigins []string

	// Requests per second allowed to anonymous auth endpoints from one client
	AuthRateLimit float64
	AuthRateBurst int
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		Environment:     defaultEnvironment,
		RefreshRotation: defaultRefreshRotation,
		AuthRateLimit:   defaultAuthRateLimit,
		AuthRateBurst:   defaultAuthRateBurst,
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
	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = strings.Split(value, ",")
			}
			return nil
		}
	}
	setFloat := func(o *float64) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return err
			}
			*o = f
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"SECRET_KEY":         setString(&c.SecretKey),
		"REFRESH_SECRET_KEY": setString(&c.RefreshSecretKey),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"REFRESH_ROTATION":   setString(&c.RefreshRotation),
		"ALLOWED_ORIGINS":    setList(&c.AllowedOrigins),
		"AUTH_RATE_LIMIT":    setFloat(&c.AuthRateLimit),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("chatrooms", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign access tokens")
	fs.StringVarP(&c.RefreshSecretKey, "refresh-secret-key", "r", c.RefreshSecretKey, "Secret key to sign refresh tokens")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.RefreshRotation, "refresh-rotation", c.RefreshRotation, "Refresh token rotation policy (revoke, keep)")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "Origins allowed to open websocket, '*' allows any")
	fs.Float64Var(&c.AuthRateLimit, "auth-rate-limit", c.AuthRateLimit, "Auth requests per second allowed from one client, 0 disables limit")

	return fs.Parse(args)
}
