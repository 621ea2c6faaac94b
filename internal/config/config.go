// Package config loads entrepo settings.
//
// Precedence (highest to lowest): flags > ENTREPO_ env vars > entrepo.yaml >
// defaults. Nested keys use "." in YAML and flags, and "__" in environment
// variable names:
//
//	database:
//	  driver: sqlite3        ENTREPO_DATABASE__DRIVER
//	  dsn: app.db            ENTREPO_DATABASE__DSN
//	dialect: sqlite          ENTREPO_DIALECT
//	schema_dir: schema       ENTREPO_SCHEMA_DIR
//	log:
//	  level: info            ENTREPO_LOG__LEVEL
//	  format: text           ENTREPO_LOG__FORMAT
//	query_log: false         ENTREPO_QUERY_LOG
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/roach88/entrepo/internal/planner"
)

// DefaultFile is the configuration file looked up in the working directory
// when no explicit path is given.
const DefaultFile = "entrepo.yaml"

const envPrefix = "ENTREPO_"

// Defaults.
const (
	DefaultDriver    = "sqlite3"
	DefaultDSN       = ":memory:"
	DefaultSchemaDir = "schema"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Drivers lists the accepted database.driver values.
var Drivers = []string{"sqlite3", "sqlite", "pgx"}

// LogFormats lists the accepted log.format values.
var LogFormats = []string{"text", "json", "pretty"}

// LogLevels lists the accepted log.level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Config holds all entrepo settings.
type Config struct {
	Database  DatabaseConfig `koanf:"database"`
	Dialect   string         `koanf:"dialect"`
	SchemaDir string         `koanf:"schema_dir"`
	Log       LogConfig      `koanf:"log"`
	QueryLog  bool           `koanf:"query_log"`

	// File is the configuration file that was read, or "".
	File string `koanf:"-"`
}

// DatabaseConfig selects the driver and data source.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads configuration from defaults, the config file, the environment
// and flags, in increasing order of precedence. cfgFile may be "" to look
// for DefaultFile in the working directory; flags may be nil. Only flags the
// user actually set override lower layers.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"database.driver": DefaultDriver,
		"database.dsn":    DefaultDSN,
		"dialect":         "",
		"schema_dir":      DefaultSchemaDir,
		"log.level":       DefaultLogLevel,
		"log.format":      DefaultLogFormat,
		"query_log":       false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used, err := findConfigFile(cfgFile)
	if err != nil {
		return nil, err
	}
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// ENTREPO_DATABASE__DSN -> database.dsn
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	if cfg.Dialect == "" {
		cfg.Dialect = dialectForDriver(cfg.Database.Driver)
	}
	return &cfg, nil
}

// flagKeys maps CLI flag names to configuration keys. Flags not listed here
// never reach the configuration.
var flagKeys = map[string]string{
	"driver":     "database.driver",
	"dsn":        "database.dsn",
	"dialect":    "dialect",
	"schema-dir": "schema_dir",
	"log-level":  "log.level",
	"log-format": "log.format",
	"query-log":  "query_log",
}

// findConfigFile returns the explicit path, which must exist, or
// DefaultFile when present in the working directory.
func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return explicit, nil
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile, nil
	}
	return "", nil
}

func dialectForDriver(driver string) string {
	if driver == "pgx" {
		return "postgres"
	}
	return "sqlite"
}

// Validate checks enumerated settings. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(Drivers, c.Database.Driver) {
		errs = append(errs, fmt.Errorf("database.driver %q: must be one of %v", c.Database.Driver, Drivers))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if _, err := planner.DialectByName(c.Dialect); err != nil {
		errs = append(errs, fmt.Errorf("dialect: %w", err))
	}
	if !slices.Contains(LogLevels, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level %q: must be one of %v", c.Log.Level, LogLevels))
	}
	if !slices.Contains(LogFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format %q: must be one of %v", c.Log.Format, LogFormats))
	}
	return errors.Join(errs...)
}
