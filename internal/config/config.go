// =============================================================================
// SENA Material Requisitions - Configuration Module
// =============================================================================
//
// This module is responsible for loading the application configuration and
// the catalog of enumerations used by the importer.
//
// CONFIGURATION SOURCES (later sources win):
//   1. Built-in defaults (see setDefaults)
//   2. The main config file (config.yaml, overridable with --config)
//   3. A .env file in the working directory, if present
//   4. Environment variables prefixed with SENA_ (e.g. SENA_STORE_BACKEND)
//
// The catalog (programs, lots, units and header synonyms) lives in
// catalog.go and is decoded separately from its own YAML file.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "SENA"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the global application configuration.
type Config struct {
	// =========================================================================
	// APPLICATION SETTINGS
	// =========================================================================

	App struct {
		// Env selects logging defaults: "dev" logs to the console at debug
		// level, anything else logs JSON at LogLevel.
		Env string `mapstructure:"env"`

		// LogLevel controls the verbosity of logging.
		// Valid values: "debug", "info", "warn", "error"
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"app"`

	// =========================================================================
	// STORE SETTINGS
	// =========================================================================

	Store struct {
		// Backend is one of "file", "sqlite" or "postgres".
		Backend string `mapstructure:"backend"`

		// Path is the JSON file (file backend) or database file (sqlite).
		Path string `mapstructure:"path"`

		// DSN is the PostgreSQL connection string (postgres backend).
		DSN string `mapstructure:"dsn"`

		// Key is the storage key the whole snapshot is saved under.
		Key string `mapstructure:"key"`
	} `mapstructure:"store"`

	// CatalogFile optionally replaces the embedded catalog.
	CatalogFile string `mapstructure:"catalog_file"`

	// =========================================================================
	// ENRICHMENT SETTINGS
	// =========================================================================

	Enrichment struct {
		// APIKey for the text generation service. Falls back to GEMINI_API_KEY.
		// An empty key disables enrichment.
		APIKey string `mapstructure:"api_key"`

		// Model is the generation model name.
		Model string `mapstructure:"model"`
	} `mapstructure:"enrichment"`

	// =========================================================================
	// HTTP SETTINGS
	// =========================================================================

	HTTP struct {
		Addr string `mapstructure:"addr"`

		// Metrics exposes /metrics when true.
		Metrics bool `mapstructure:"metrics"`
	} `mapstructure:"http"`

	// =========================================================================
	// EXPORT SETTINGS
	// =========================================================================

	Export struct {
		// OutputDir is where exported files are written.
		OutputDir string `mapstructure:"output_dir"`
	} `mapstructure:"export"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load reads the configuration from path, applying defaults, the .env file
// and SENA_* environment overrides.
//
// PARAMETERS:
//   - path: The path to the main configuration file. A missing file is not
//     an error; defaults and environment variables are used instead.
//
// RETURNS:
//   - The loaded configuration.
//   - An error if the file exists but cannot be parsed, or if the result
//     fails validation.
func Load(path string) (Config, error) {
	// .env is optional; the process environment still applies without it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return c, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to parse config: %w", err)
	}

	if c.Enrichment.APIKey == "" {
		c.Enrichment.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", "./data/requests.json")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.key", "sena_material_requests_v1")
	v.SetDefault("catalog_file", "")
	v.SetDefault("enrichment.api_key", "")
	v.SetDefault("enrichment.model", "gemini-2.5-flash")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.metrics", true)
	v.SetDefault("export.output_dir", ".")
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "file", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Store.Key == "" {
		return errors.New("store.key must not be empty")
	}

	switch strings.ToLower(c.App.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.App.LogLevel)
	}

	return nil
}
