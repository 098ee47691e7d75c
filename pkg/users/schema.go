package users

import (
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"unicode"

	"gorm.io/gorm"

	"github.com/memtensor/memos-users/pkg/errors"
)

// schemaModels returns the models in dependency order: users before cubes
// (owner reference), both before the association table.
func schemaModels() []interface{} {
	return []interface{}{
		&User{},
		&Cube{},
		&UserCubeAssociation{},
	}
}

// columnSpec describes the expected shape of a column for conflict detection.
// typeFamily values are substrings matched against the database-reported type.
type columnSpec struct {
	name       string
	typeFamily []string
	primaryKey bool
	unique     bool
}

var (
	textFamily = []string{"char", "text", "string", "clob"}
	timeFamily = []string{"time", "date"}
	boolFamily = []string{"bool", "tinyint", "numeric", "bit", "int"}
)

var expectedColumns = map[string][]columnSpec{
	"users": {
		{name: "user_id", typeFamily: textFamily, primaryKey: true},
		{name: "user_name", typeFamily: textFamily, unique: true},
		{name: "role", typeFamily: textFamily},
		{name: "created_at", typeFamily: timeFamily},
		{name: "updated_at", typeFamily: timeFamily},
		{name: "is_active", typeFamily: boolFamily},
	},
	"cubes": {
		{name: "cube_id", typeFamily: textFamily, primaryKey: true},
		{name: "cube_name", typeFamily: textFamily},
		{name: "cube_path", typeFamily: textFamily},
		{name: "owner_id", typeFamily: textFamily},
		{name: "created_at", typeFamily: timeFamily},
		{name: "updated_at", typeFamily: timeFamily},
		{name: "is_active", typeFamily: boolFamily},
	},
	"user_cube_association": {
		{name: "user_id", typeFamily: textFamily, primaryKey: true},
		{name: "cube_id", typeFamily: textFamily, primaryKey: true},
		{name: "created_at", typeFamily: timeFamily},
	},
}

// expectedForeignKeys lists the referencing columns each table must protect
// with a foreign key.
var expectedForeignKeys = map[string][]string{
	"cubes":                 {"owner_id"},
	"user_cube_association": {"user_id", "cube_id"},
}

// ValidateSchemaName checks that a schema (namespace) name is safe to embed in
// DDL: non-empty, starting with a letter or underscore, containing only
// letters, digits, and underscores.
func ValidateSchemaName(schema string) error {
	if schema == "" {
		return errors.NewValidationError("schema name cannot be empty")
	}
	for i, r := range schema {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		if i == 0 {
			return errors.NewValidationError("schema name must start with a letter or underscore")
		}
		return errors.NewValidationError("schema name may only contain letters, numbers, and underscores")
	}
	return nil
}

// Bootstrap ensures the namespace, tables, and indexes exist. It is safe to
// run any number of times, including concurrently with itself: every step is
// existence-checked, and create races lost to another invocation are treated
// as success. Existing objects are verified, never altered; a shape mismatch
// fails with a schema conflict error.
func Bootstrap(db *gorm.DB, schemaName string) error {
	if db.Dialector.Name() == "postgres" && schemaName != "" {
		if err := ensureSchema(db, schemaName); err != nil {
			return err
		}
	}

	migrator := db.Migrator()

	for _, model := range schemaModels() {
		if err := ensureTable(db, model); err != nil {
			return err
		}
	}

	indexes := []struct {
		model interface{}
		name  string
	}{
		{&User{}, "idx_users_user_name"},
		{&Cube{}, "idx_cubes_owner_id"},
	}
	for _, idx := range indexes {
		if migrator.HasIndex(idx.model, idx.name) {
			continue
		}
		if err := migrator.CreateIndex(idx.model, idx.name); err != nil {
			// Lost a race against a concurrent bootstrap
			if migrator.HasIndex(idx.model, idx.name) || isAlreadyExists(err) {
				continue
			}
			return ddlError(fmt.Sprintf("failed to create index %s", idx.name), err)
		}
	}

	return nil
}

// ensureSchema creates the target namespace when absent
func ensureSchema(db *gorm.DB, schemaName string) error {
	if err := ValidateSchemaName(schemaName); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, schemaName)
	if err := db.Exec(stmt).Error; err != nil {
		if isAlreadyExists(err) {
			return nil
		}
		return ddlError(fmt.Sprintf("failed to create schema %s", schemaName), err)
	}
	return nil
}

// ensureTable creates the model's table when absent and verifies its shape
// when present.
func ensureTable(db *gorm.DB, model interface{}) error {
	migrator := db.Migrator()

	if migrator.HasTable(model) {
		return verifyTableShape(db, model)
	}

	if err := migrator.CreateTable(model); err != nil {
		// Lost a race against a concurrent bootstrap
		if migrator.HasTable(model) || isAlreadyExists(err) {
			return verifyTableShape(db, model)
		}
		tableName := tableNameOf(db, model)
		return ddlError(fmt.Sprintf("failed to create table %s", tableName), err)
	}

	return nil
}

// verifyTableShape compares an existing table against the expected column
// set. Existence-checked creation only: a mismatch is surfaced as a schema
// conflict for manual intervention, never reconciled.
func verifyTableShape(db *gorm.DB, model interface{}) error {
	tableName := tableNameOf(db, model)

	specs, ok := expectedColumns[tableName]
	if !ok {
		return errors.NewInternalError(fmt.Sprintf("no column spec for table %s", tableName), nil)
	}

	columnTypes, err := db.Migrator().ColumnTypes(model)
	if err != nil {
		return ddlError(fmt.Sprintf("failed to inspect table %s", tableName), err)
	}

	existing := make(map[string]gorm.ColumnType, len(columnTypes))
	for _, ct := range columnTypes {
		existing[strings.ToLower(ct.Name())] = ct
	}

	for _, spec := range specs {
		ct, found := existing[spec.name]
		if !found {
			return errors.NewSchemaConflictError(
				fmt.Sprintf("table %s exists but is missing column %s", tableName, spec.name), nil)
		}

		dbType := strings.ToLower(ct.DatabaseTypeName())
		if !matchesFamily(dbType, spec.typeFamily) {
			return errors.NewSchemaConflictError(
				fmt.Sprintf("table %s column %s has incompatible type %s", tableName, spec.name, ct.DatabaseTypeName()), nil)
		}

		if spec.primaryKey {
			if pk, ok := ct.PrimaryKey(); ok && !pk {
				return errors.NewSchemaConflictError(
					fmt.Sprintf("table %s column %s is expected to be part of the primary key", tableName, spec.name), nil)
			}
		}

		if spec.unique && !hasUniqueColumn(db, model, ct, spec.name) {
			return errors.NewSchemaConflictError(
				fmt.Sprintf("table %s is missing the unique constraint on %s", tableName, spec.name), nil)
		}
	}

	for _, column := range expectedForeignKeys[tableName] {
		present, err := hasForeignKey(db, tableName, column)
		if err != nil {
			return ddlError(fmt.Sprintf("failed to inspect foreign keys of table %s", tableName), err)
		}
		if !present {
			return errors.NewSchemaConflictError(
				fmt.Sprintf("table %s is missing the foreign key on %s", tableName, column), nil)
		}
	}

	return nil
}

// hasUniqueColumn reports whether columnName is covered by a unique
// constraint, either declared on the column itself or through a
// single-column unique index.
func hasUniqueColumn(db *gorm.DB, model interface{}, ct gorm.ColumnType, columnName string) bool {
	if unique, ok := ct.Unique(); ok && unique {
		return true
	}
	indexes, err := db.Migrator().GetIndexes(model)
	if err != nil {
		return false
	}
	for _, idx := range indexes {
		unique, ok := idx.Unique()
		if !ok || !unique {
			continue
		}
		columns := idx.Columns()
		if len(columns) == 1 && strings.EqualFold(columns[0], columnName) {
			return true
		}
	}
	return false
}

// hasForeignKey reports whether tableName carries a foreign key on column,
// consulting each dialect's catalog. Dialects without a known catalog query
// are reported as present so verification never blocks a healthy bootstrap.
func hasForeignKey(db *gorm.DB, tableName, column string) (bool, error) {
	var count int64
	switch db.Dialector.Name() {
	case "sqlite":
		if err := db.Raw(
			`SELECT COUNT(*) FROM pragma_foreign_key_list(?) WHERE "from" = ?`,
			tableName, column).Scan(&count).Error; err != nil {
			return false, err
		}
	case "postgres":
		if err := db.Raw(
			`SELECT COUNT(*)
			 FROM information_schema.table_constraints tc
			 JOIN information_schema.key_column_usage kcu
			   ON kcu.constraint_name = tc.constraint_name
			  AND kcu.constraint_schema = tc.constraint_schema
			 WHERE tc.constraint_type = 'FOREIGN KEY'
			   AND tc.table_schema = current_schema()
			   AND tc.table_name = ?
			   AND kcu.column_name = ?`,
			tableName, column).Scan(&count).Error; err != nil {
			return false, err
		}
	case "mysql":
		if err := db.Raw(
			`SELECT COUNT(*) FROM information_schema.key_column_usage
			 WHERE table_schema = DATABASE()
			   AND table_name = ?
			   AND column_name = ?
			   AND referenced_table_name IS NOT NULL`,
			tableName, column).Scan(&count).Error; err != nil {
			return false, err
		}
	default:
		return true, nil
	}
	return count > 0, nil
}

func matchesFamily(dbType string, family []string) bool {
	for _, fragment := range family {
		if strings.Contains(dbType, fragment) {
			return true
		}
	}
	return false
}

func tableNameOf(db *gorm.DB, model interface{}) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return fmt.Sprintf("%T", model)
	}
	return stmt.Schema.Table
}

// ddlError classifies a failed DDL or catalog statement: failures caused by
// the connection surface as connectivity errors, everything else as internal.
func ddlError(message string, err error) error {
	if isConnectivityErr(err) {
		return errors.NewConnectivityError(message, err)
	}
	return errors.NewInternalError(message, err)
}

// isConnectivityErr detects connection-level failures from the supported
// drivers, as opposed to the statement itself being rejected.
func isConnectivityErr(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"database is closed",
		"terminating connection",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// isAlreadyExists detects the duplicate-object errors the supported drivers
// report when two bootstrap invocations race on the same CREATE.
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}
