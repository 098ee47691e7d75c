// Package config provides configuration management for the MemOS user store.
//
// Connection settings are sourced from environment variables, with MOS_-prefixed
// names taking precedence over the legacy unprefixed fallbacks, or from a
// YAML/JSON config file supplied by the host application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Supported user manager backends
const (
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
)

// Environment variables selecting the backend. EnvBackendLegacy is the legacy
// alias with the same effect; EnvBackend wins when both are set.
const (
	EnvBackend       = "MOS_USER_MANAGER"
	EnvBackendLegacy = "MOS_USER_MANAGER_BACKEND"
)

// SQLiteConfig holds SQLite backend settings
type SQLiteConfig struct {
	UserID string `mapstructure:"user_id" yaml:"user_id" json:"user_id"`
	DBPath string `mapstructure:"db_path" yaml:"db_path,omitempty" json:"db_path,omitempty"`
}

// MySQLConfig holds MySQL backend settings
type MySQLConfig struct {
	UserID   string `mapstructure:"user_id" yaml:"user_id" json:"user_id"`
	Host     string `mapstructure:"host" yaml:"host" json:"host" validate:"required"`
	Port     int    `mapstructure:"port" yaml:"port" json:"port" validate:"required,gt=0"`
	Username string `mapstructure:"username" yaml:"username" json:"username" validate:"required"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
	Database string `mapstructure:"database" yaml:"database" json:"database" validate:"required"`
	Charset  string `mapstructure:"charset" yaml:"charset" json:"charset"`
}

// PostgresConfig holds Postgres backend settings
type PostgresConfig struct {
	UserID   string `mapstructure:"user_id" yaml:"user_id" json:"user_id"`
	Host     string `mapstructure:"host" yaml:"host" json:"host" validate:"required"`
	Port     int    `mapstructure:"port" yaml:"port" json:"port" validate:"required,gt=0"`
	Username string `mapstructure:"username" yaml:"username" json:"username" validate:"required"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
	Database string `mapstructure:"database" yaml:"database" json:"database" validate:"required"`
	Schema   string `mapstructure:"schema" yaml:"schema" json:"schema" validate:"required"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode,omitempty" json:"sslmode,omitempty"`
}

// BackendConfig selects a user manager backend and carries the per-backend
// connection settings.
type BackendConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend" json:"backend" validate:"required,oneof=sqlite mysql postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite" json:"sqlite"`
	MySQL    MySQLConfig    `mapstructure:"mysql" yaml:"mysql" json:"mysql"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres" json:"postgres"`
}

// Default returns a configuration with the default backend (sqlite) and the
// documented defaults for every backend.
func Default() *BackendConfig {
	return &BackendConfig{
		Backend: BackendSQLite,
		SQLite: SQLiteConfig{
			UserID: "root",
		},
		MySQL: MySQLConfig{
			UserID:   "root",
			Host:     "localhost",
			Port:     3306,
			Username: "root",
			Database: "memos_users",
			Charset:  "utf8mb4",
		},
		Postgres: PostgresConfig{
			UserID:   "root",
			Host:     "localhost",
			Port:     5432,
			Username: "postgres",
			Database: "memos_users",
			Schema:   "memos",
		},
	}
}

// FromEnv builds a configuration from environment variables. MOS_-prefixed
// variables take precedence over their legacy unprefixed fallbacks.
func FromEnv() (*BackendConfig, error) {
	v := viper.New()

	v.SetDefault("backend", BackendSQLite)

	bindings := map[string][]string{
		"sqlite.user_id": {"MOS_SQLITE_USER_ID"},
		"sqlite.db_path": {"MOS_SQLITE_DB_PATH", "SQLITE_DB_PATH"},

		"mysql.host":     {"MOS_MYSQL_HOST", "MYSQL_HOST"},
		"mysql.port":     {"MOS_MYSQL_PORT", "MYSQL_PORT"},
		"mysql.username": {"MOS_MYSQL_USERNAME", "MYSQL_USERNAME"},
		"mysql.password": {"MOS_MYSQL_PASSWORD", "MYSQL_PASSWORD"},
		"mysql.database": {"MOS_MYSQL_DATABASE", "MYSQL_DATABASE"},
		"mysql.charset":  {"MOS_MYSQL_CHARSET", "MYSQL_CHARSET"},

		"postgres.host":     {"MOS_POSTGRES_HOST", "POSTGRES_HOST"},
		"postgres.port":     {"MOS_POSTGRES_PORT", "POSTGRES_PORT"},
		"postgres.username": {"MOS_POSTGRES_USERNAME", "POSTGRES_USERNAME"},
		"postgres.password": {"MOS_POSTGRES_PASSWORD", "POSTGRES_PASSWORD"},
		"postgres.database": {"MOS_POSTGRES_DATABASE", "POSTGRES_DATABASE"},
		"postgres.schema":   {"MOS_POSTGRES_SCHEMA", "POSTGRES_SCHEMA"},
		"postgres.sslmode":  {"MOS_POSTGRES_SSLMODE", "POSTGRES_SSLMODE"},
	}

	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if backend := BackendFromEnv(); backend != "" {
		cfg.Backend = backend
	}

	return cfg, nil
}

// BackendFromEnv returns the backend selected via MOS_USER_MANAGER or its
// legacy alias MOS_USER_MANAGER_BACKEND, or "" when neither is set.
func BackendFromEnv() string {
	backend := os.Getenv(EnvBackend)
	if backend == "" {
		backend = os.Getenv(EnvBackendLegacy)
	}
	return strings.ToLower(strings.TrimSpace(backend))
}

// FromYAMLFile loads configuration from a YAML file
func FromYAMLFile(path string) (*BackendConfig, error) {
	return fromFile(path, "yaml")
}

// FromJSONFile loads configuration from a JSON file
func FromJSONFile(path string) (*BackendConfig, error) {
	return fromFile(path, "json")
}

func fromFile(path, format string) (*BackendConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(format)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ToYAMLFile saves the configuration to a YAML file
func (c *BackendConfig) ToYAMLFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for the selected backend
func (c *BackendConfig) Validate() error {
	validate := validator.New()
	if err := validate.StructPartial(c, "Backend"); err != nil {
		return err
	}

	switch c.Backend {
	case BackendSQLite:
		return nil
	case BackendMySQL:
		return validate.Struct(&c.MySQL)
	case BackendPostgres:
		return validate.Struct(&c.Postgres)
	default:
		return fmt.Errorf("unsupported user manager backend: %s", c.Backend)
	}
}

// UserID returns the default user ID for the selected backend
func (c *BackendConfig) UserID() string {
	var id string
	switch c.Backend {
	case BackendMySQL:
		id = c.MySQL.UserID
	case BackendPostgres:
		id = c.Postgres.UserID
	default:
		id = c.SQLite.UserID
	}
	if id == "" {
		id = "root"
	}
	return id
}

// DSN builds the SQLite database path. When DBPath is unset, the default
// location under MEMOS_DIR (~/.memos) is used.
func (c *SQLiteConfig) DSN() string {
	path := c.DBPath
	if path == "" {
		base := os.Getenv("MEMOS_DIR")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				home = "."
			}
			base = filepath.Join(home, ".memos")
		}
		path = filepath.Join(base, "memos_users.db")
	}
	return path
}

// DSN builds the MySQL connection string
func (c *MySQLConfig) DSN() string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, charset)
}

// DSN builds the Postgres connection string. The schema rides along as
// search_path so unqualified table names resolve inside the configured
// namespace.
func (c *PostgresConfig) DSN() string {
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
		fmt.Sprintf("user=%s", c.Username),
	}
	if c.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.Password))
	}
	parts = append(parts, fmt.Sprintf("dbname=%s", c.Database))
	if c.Schema != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", c.Schema))
	}
	if c.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", c.SSLMode))
	}
	return strings.Join(parts, " ")
}
