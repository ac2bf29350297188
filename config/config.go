// Package config loads kisht's settings from .kisht.yaml, the environment and
// an embedded default.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/aqlanhadi/kisht/extractor/upi_statement"
	"github.com/spf13/viper"
)

//go:embed default.yaml
var defaultConfigYAML []byte

const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

type FirestoreConfig struct {
	ProjectID          string `mapstructure:"project_id"`
	DatabaseID         string `mapstructure:"database_id"`
	ServiceAccountFile string `mapstructure:"service_account_file"`
	ServiceAccountJSON string `mapstructure:"service_account_json"`
	EmulatorHost       string `mapstructure:"emulator_host"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
}

// Timeout is the per-request timeout of the HTTP client
func (c FirestoreConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type ColumnsConfig struct {
	Date       int `mapstructure:"date"`
	Details    int `mapstructure:"details"`
	Withdrawal int `mapstructure:"withdrawal"`
	Deposit    int `mapstructure:"deposit"`
}

type StatementConfig struct {
	HeaderDate     string        `mapstructure:"header_date"`
	HeaderDetails  string        `mapstructure:"header_details"`
	Columns        ColumnsConfig `mapstructure:"columns"`
	MaxBlankRows   int           `mapstructure:"max_blank_rows"`
	UnknownPreview int           `mapstructure:"unknown_preview"`
}

// Parser returns the row parser layout
func (c StatementConfig) Parser() upi_statement.Config {
	return upi_statement.Config{
		HeaderDate:    c.HeaderDate,
		HeaderDetails: c.HeaderDetails,
		Columns: upi_statement.Columns{
			Date:       c.Columns.Date,
			Details:    c.Columns.Details,
			Withdrawal: c.Columns.Withdrawal,
			Deposit:    c.Columns.Deposit,
		},
		MaxBlankRows: c.MaxBlankRows,
	}
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type Config struct {
	UserID    string          `mapstructure:"user_id"`
	Timezone  string          `mapstructure:"timezone"`
	Store     StoreConfig     `mapstructure:"store"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Statement StatementConfig `mapstructure:"statement"`
	Server    ServerConfig    `mapstructure:"server"`

	// File is the config file that was read, empty when only the embedded
	// default applied.
	File string `mapstructure:"-"`
}

// Load reads the embedded default, then the config file at path or the first
// .kisht.yaml found in the working directory or home directory, then the
// environment. Variables are prefixed KISHT_ with dots turned into
// underscores, e.g. KISHT_STORE_BACKEND.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("failed to read embedded config: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".kisht")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("KISHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("postgres.url", "KISHT_POSTGRES_URL", "DATABASE_URL")
	_ = v.BindEnv("firestore.emulator_host", "KISHT_FIRESTORE_EMULATOR_HOST", "FIRESTORE_EMULATOR_HOST")

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	c.File = v.ConfigFileUsed()
	return &c, nil
}

// Validate checks the settings the selected backend needs
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.Contains(c.UserID, "/") {
		return errors.New("user_id cannot contain '/'")
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Store.Backend {
	case BackendFirestore:
		if c.Firestore.ProjectID == "" {
			return errors.New("firestore.project_id is required")
		}
		if c.Firestore.EmulatorHost == "" && c.Firestore.ServiceAccountFile == "" && c.Firestore.ServiceAccountJSON == "" {
			return errors.New("firestore.service_account_file or firestore.service_account_json is required")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return errors.New("postgres.url or DATABASE_URL is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	cols := c.Statement.Columns
	if cols.Date < 0 || cols.Details < 0 || cols.Withdrawal < 0 || cols.Deposit < 0 {
		return errors.New("statement columns must not be negative")
	}
	if c.Statement.MaxBlankRows <= 0 {
		return errors.New("statement.max_blank_rows must be positive")
	}
	return nil
}

// Location resolves the configured time zone. An empty value means local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
