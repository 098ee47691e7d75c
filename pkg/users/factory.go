package users

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/memtensor/memos-users/pkg/config"
	"github.com/memtensor/memos-users/pkg/errors"
)

// Open connects to the configured backend and returns the database handle.
// Driver errors are translated into GORM's portable sentinels so constraint
// violations surface uniformly across backends.
func Open(cfg *config.BackendConfig) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid configuration: %v", err))
	}

	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch cfg.Backend {
	case config.BackendSQLite:
		path := cfg.SQLite.DSN()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.NewInternalError("failed to create database directory", err)
		}
		// _foreign_keys enables referential integrity enforcement, which
		// SQLite leaves off by default
		dialector = sqlite.Open(fmt.Sprintf("file:%s?_foreign_keys=on", path))
	case config.BackendMySQL:
		dialector = mysql.Open(cfg.MySQL.DSN())
	case config.BackendPostgres:
		if err := ValidateSchemaName(cfg.Postgres.Schema); err != nil {
			return nil, err
		}
		dialector = postgres.Open(cfg.Postgres.DSN())
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported user manager backend: %s", cfg.Backend))
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, errors.NewConnectivityError(
			fmt.Sprintf("failed to connect to %s backend", cfg.Backend), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.NewInternalError("failed to get database instance", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, errors.NewConnectivityError(
			fmt.Sprintf("database at %s backend is unreachable", cfg.Backend), err)
	}

	return db, nil
}

// resolveBackend applies the MOS_USER_MANAGER / MOS_USER_MANAGER_BACKEND
// environment override. When a valid override is present, the selected
// backend's connection settings are re-read from the environment as well, so
// a file-based configuration can be redirected wholesale at deploy time.
func resolveBackend(cfg *config.BackendConfig) (*config.BackendConfig, error) {
	override := config.BackendFromEnv()
	if override == "" {
		return cfg, nil
	}

	switch override {
	case config.BackendSQLite, config.BackendMySQL, config.BackendPostgres:
	default:
		// Unknown selector values are ignored, matching the original
		// factory behavior
		return cfg, nil
	}

	envCfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	resolved := *cfg
	resolved.Backend = override
	switch override {
	case config.BackendSQLite:
		resolved.SQLite = envCfg.SQLite
	case config.BackendMySQL:
		resolved.MySQL = envCfg.MySQL
	case config.BackendPostgres:
		resolved.Postgres = envCfg.Postgres
	}
	return &resolved, nil
}
