// Package database wraps the relational store: connection management,
// schema introspection, and query execution returning rows as column-keyed
// maps. Supports SQLite (modernc.org/sqlite, pure Go) and PostgreSQL
// (pgx stdlib adapter).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/dbgenie/dbgenie/pkg/models"
	"github.com/rs/zerolog/log"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Service owns the database connection and a read-only snapshot of the
// schema taken at initialization.
type Service struct {
	db     *sql.DB
	driver string
	schema models.SchemaDescription
	tables []string // sorted, for stable prompt output
}

// Open connects to the database and introspects its schema.
// driver is "sqlite" or "postgres"; dsn is a file path / :memory: for
// sqlite, a postgres:// URL for postgres.
func Open(ctx context.Context, driver, dsn string) (*Service, error) {
	var driverName string
	switch driver {
	case "sqlite":
		driverName = "sqlite"
	case "postgres":
		driverName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		// SQLite serializes writers anyway; a single pooled connection also
		// keeps :memory: databases visible across calls.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Service{db: db, driver: driver}
	if err := s.introspect(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("introspect schema: %w", err)
	}

	log.Info().
		Str("driver", driver).
		Int("tables", len(s.tables)).
		Strs("table_names", s.tables).
		Msg("Database schema introspected")
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Service) Close() error { return s.db.Close() }

func (s *Service) introspect(ctx context.Context) error {
	schema := models.SchemaDescription{}

	switch s.driver {
	case "sqlite":
		rows, err := s.db.QueryContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
		if err != nil {
			return err
		}
		var names []string
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			names = append(names, name)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, name := range names {
			table, err := s.sqliteTableSchema(ctx, name)
			if err != nil {
				return err
			}
			schema[name] = table
		}

	case "postgres":
		rows, err := s.db.QueryContext(ctx, `
			SELECT c.table_name, c.column_name, c.data_type, c.is_nullable,
			       EXISTS (
			           SELECT 1 FROM information_schema.table_constraints tc
			           JOIN information_schema.key_column_usage kcu
			             ON tc.constraint_name = kcu.constraint_name
			           WHERE tc.constraint_type = 'PRIMARY KEY'
			             AND tc.table_name = c.table_name
			             AND kcu.column_name = c.column_name
			       ) AS is_pk
			FROM information_schema.columns c
			WHERE c.table_schema = 'public'
			ORDER BY c.table_name, c.ordinal_position`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var tableName, colName, dataType, nullable string
			var isPK bool
			if err := rows.Scan(&tableName, &colName, &dataType, &nullable, &isPK); err != nil {
				return err
			}
			table := schema[tableName]
			table.Columns = append(table.Columns, models.ColumnSchema{
				Name:       colName,
				Type:       dataType,
				Nullable:   nullable == "YES",
				PrimaryKey: isPK,
			})
			if isPK {
				table.PrimaryKeys = append(table.PrimaryKeys, colName)
			}
			schema[tableName] = table
		}
		if err := rows.Err(); err != nil {
			return err
		}
	}

	s.schema = schema
	s.tables = s.tables[:0]
	for name := range schema {
		s.tables = append(s.tables, name)
	}
	sort.Strings(s.tables)
	return nil
}

func (s *Service) sqliteTableSchema(ctx context.Context, name string) (models.TableSchema, error) {
	var table models.TableSchema

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
	if err != nil {
		return table, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notNull, pk int
		var colName, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return table, err
		}
		table.Columns = append(table.Columns, models.ColumnSchema{
			Name:       colName,
			Type:       colType,
			Nullable:   notNull == 0,
			PrimaryKey: pk > 0,
		})
		if pk > 0 {
			table.PrimaryKeys = append(table.PrimaryKeys, colName)
		}
	}
	return table, rows.Err()
}

// Execute runs a SQL statement and returns its rows as column-keyed maps.
func (s *Service) Execute(ctx context.Context, query string) ([]models.Row, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []models.Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make(models.Row, len(cols))
		for i, col := range cols {
			v := values[i]
			// Normalize []byte columns (sqlite TEXT can scan as bytes).
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[col] = v
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Schema returns the introspected schema snapshot.
func (s *Service) Schema() models.SchemaDescription { return s.schema }

// TableNames returns the sorted table names.
func (s *Service) TableNames() []string { return s.tables }

// HasTable reports whether the introspected schema contains the table.
func (s *Service) HasTable(name string) bool {
	for _, t := range s.tables {
		if t == name {
			return true
		}
	}
	return false
}

// SchemaDescription renders a human-readable schema summary used as LLM
// prompt context: one block per table listing columns, types and key
// markers.
func (s *Service) SchemaDescription() string {
	var blocks []string
	for _, name := range s.tables {
		table := s.schema[name]
		var b strings.Builder
		fmt.Fprintf(&b, "Table: %s", name)
		for _, col := range table.Columns {
			marker := ""
			if col.PrimaryKey {
				marker = " (PRIMARY KEY)"
			}
			fmt.Fprintf(&b, "\n  - %s: %s%s", col.Name, col.Type, marker)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// Sample returns up to limit rows from a table. The table name is checked
// against the introspected schema, so arbitrary identifiers never reach the
// database.
func (s *Service) Sample(ctx context.Context, table string, limit int) ([]models.Row, error) {
	if !s.HasTable(table) {
		return nil, fmt.Errorf("unknown table: %s", table)
	}
	if limit <= 0 {
		limit = 5
	}
	return s.Execute(ctx, fmt.Sprintf("SELECT * FROM %q LIMIT %d", table, limit))
}

// Ping verifies the connection is alive.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
