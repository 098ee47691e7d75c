package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "root", cfg.SQLite.UserID)

	assert.Equal(t, "localhost", cfg.MySQL.Host)
	assert.Equal(t, 3306, cfg.MySQL.Port)
	assert.Equal(t, "root", cfg.MySQL.Username)
	assert.Equal(t, "memos_users", cfg.MySQL.Database)
	assert.Equal(t, "utf8mb4", cfg.MySQL.Charset)

	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "postgres", cfg.Postgres.Username)
	assert.Empty(t, cfg.Postgres.Password)
	assert.Equal(t, "memos_users", cfg.Postgres.Database)
	assert.Equal(t, "memos", cfg.Postgres.Schema)
	assert.Empty(t, cfg.Postgres.SSLMode)
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "memos", cfg.Postgres.Schema)
}

func TestFromEnv_PrefixedTakesPrecedence(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "legacy.example.com")
	t.Setenv("MOS_POSTGRES_HOST", "primary.example.com")
	t.Setenv("MOS_POSTGRES_PORT", "15432")
	t.Setenv("MOS_POSTGRES_SCHEMA", "tenant_a")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "primary.example.com", cfg.Postgres.Host)
	assert.Equal(t, 15432, cfg.Postgres.Port)
	assert.Equal(t, "tenant_a", cfg.Postgres.Schema)
}

func TestFromEnv_LegacyFallback(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "legacy.example.com")
	t.Setenv("POSTGRES_DATABASE", "legacy_users")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "legacy.example.com", cfg.Postgres.Host)
	assert.Equal(t, "legacy_users", cfg.Postgres.Database)
}

func TestFromEnv_BackendSelector(t *testing.T) {
	t.Setenv(EnvBackend, "postgres")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Backend)
}

func TestFromEnv_BackendLegacyAlias(t *testing.T) {
	t.Setenv(EnvBackendLegacy, "MySQL")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendMySQL, cfg.Backend)
}

func TestBackendFromEnv_PrimaryWinsOverAlias(t *testing.T) {
	t.Setenv(EnvBackend, "postgres")
	t.Setenv(EnvBackendLegacy, "mysql")

	assert.Equal(t, BackendPostgres, BackendFromEnv())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Backend = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Backend = BackendPostgres
	require.NoError(t, cfg.Validate())

	cfg.Postgres.Host = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Backend = BackendMySQL
	cfg.MySQL.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestPostgresDSN(t *testing.T) {
	cfg := Default().Postgres
	dsn := cfg.DSN()

	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "user=postgres")
	assert.Contains(t, dsn, "dbname=memos_users")
	assert.Contains(t, dsn, "search_path=memos")
	assert.NotContains(t, dsn, "password=")
	assert.NotContains(t, dsn, "sslmode=")

	cfg.Password = "secret"
	cfg.SSLMode = "require"
	dsn = cfg.DSN()
	assert.Contains(t, dsn, "password=secret")
	assert.Contains(t, dsn, "sslmode=require")
}

func TestMySQLDSN(t *testing.T) {
	cfg := Default().MySQL
	cfg.Password = "secret"

	dsn := cfg.DSN()
	assert.Equal(t, "root:secret@tcp(localhost:3306)/memos_users?charset=utf8mb4&parseTime=True&loc=Local", dsn)
}

func TestSQLiteDSN(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MEMOS_DIR", dir)

	cfg := SQLiteConfig{}
	assert.Equal(t, filepath.Join(dir, "memos_users.db"), cfg.DSN())

	cfg.DBPath = "/tmp/custom.db"
	assert.Equal(t, "/tmp/custom.db", cfg.DSN())
}

func TestYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_manager.yaml")

	cfg := Default()
	cfg.Backend = BackendPostgres
	cfg.Postgres.Host = "db.internal"
	cfg.Postgres.Schema = "memos_test"
	require.NoError(t, cfg.ToYAMLFile(path))

	loaded, err := FromYAMLFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, loaded.Backend)
	assert.Equal(t, "db.internal", loaded.Postgres.Host)
	assert.Equal(t, "memos_test", loaded.Postgres.Schema)
}

func TestUserID(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "root", cfg.UserID())

	cfg.Backend = BackendPostgres
	cfg.Postgres.UserID = "operator"
	assert.Equal(t, "operator", cfg.UserID())

	cfg.Postgres.UserID = ""
	assert.Equal(t, "root", cfg.UserID())
}
