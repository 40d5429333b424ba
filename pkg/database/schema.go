package database

import (
	"database/sql"
	"fmt"
)

// SchemaValidator checks that the poll document table matches what the store expects
// ARCHITECTURAL DISCOVERY: Separate validation component enables deployment
// verification without coupling to the migration system
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// Validate runs every schema check.
func (v *SchemaValidator) Validate() error {
	if err := v.ValidateTablesExist(); err != nil {
		return err
	}
	if err := v.ValidateTableStructure(); err != nil {
		return err
	}
	if err := v.ValidateIndexes(); err != nil {
		return err
	}
	return v.ValidateJSONSupport()
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"polls":             "Poll document storage",
		"schema_migrations": "Migration tracking",
	}

	for table, description := range requiredTables {
		exists, err := v.objectExists("table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}

	return nil
}

// ValidateTableStructure verifies the polls column layout
func (v *SchemaValidator) ValidateTableStructure() error {
	pollColumns := map[string]string{
		"id":         "TEXT",
		"document":   "TEXT",
		"expires_at": "INTEGER",
	}

	if err := v.validateColumns("polls", pollColumns); err != nil {
		return fmt.Errorf("polls table structure invalid: %w", err)
	}
	return nil
}

// ValidateIndexes verifies that the expiry sweep index exists
func (v *SchemaValidator) ValidateIndexes() error {
	exists, err := v.objectExists("index", "idx_polls_expires_at")
	if err != nil {
		return fmt.Errorf("error checking index idx_polls_expires_at: %w", err)
	}
	if !exists {
		return fmt.Errorf("required index idx_polls_expires_at does not exist")
	}
	return nil
}

// ValidateJSONSupport verifies the linked SQLite has the JSON functions field writes rely on
func (v *SchemaValidator) ValidateJSONSupport() error {
	var out string
	err := v.db.QueryRow(`SELECT json_set('{"a":{}}', '$."a"."b"', json('1'))`).Scan(&out)
	if err != nil {
		return fmt.Errorf("sqlite json functions unavailable: %w", err)
	}
	if out != `{"a":{"b":1}}` {
		return fmt.Errorf("unexpected json_set result %s", out)
	}
	return nil
}

func (v *SchemaValidator) objectExists(kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type=? AND name=?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// validateColumns checks that a table has the expected columns with correct types
func (v *SchemaValidator) validateColumns(tableName string, expectedColumns map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	foundColumns := make(map[string]string)
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull int
		var defaultValue interface{}
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		foundColumns[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for expectedCol, expectedType := range expectedColumns {
		foundType, exists := foundColumns[expectedCol]
		if !exists {
			return fmt.Errorf("column %s not found", expectedCol)
		}
		if foundType != expectedType {
			return fmt.Errorf("column %s has type %s, expected %s", expectedCol, foundType, expectedType)
		}
	}

	return nil
}
