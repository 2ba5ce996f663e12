package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tidwall/sjson"
)

var ErrNoTable = errors.New("no table to read")

// LoadSQLite reads every row of a table. Without a table name the database
// must contain exactly one table.
func LoadSQLite(ctx context.Context, path string, opts Options) ([]Record, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	dsn := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	table := opts.Table
	if table == "" {
		if table, err = onlyTable(ctx, db); err != nil {
			return nil, err
		}
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("failed to query table %s: %w", table, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows, opts.IDField)
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}
	slog.Debug("Loaded source", "path", path, "format", FormatSQLite, "table", table, "records", len(records))
	return records, nil
}

// Tables lists the user tables of a database.
func Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_schema WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func onlyTable(ctx context.Context, db *sql.DB) (string, error) {
	tables, err := Tables(ctx, db)
	if err != nil {
		return "", err
	}
	switch len(tables) {
	case 0:
		return "", ErrNoTable
	case 1:
		return tables[0], nil
	}
	return "", fmt.Errorf("%w: choose one of %s", ErrNoTable, strings.Join(tables, ", "))
}

func scanRecords(rows *sql.Rows, idField string) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var records []Record
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		raw := "{}"
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if raw, err = sjson.Set(raw, escapePath(col), v); err != nil {
				return nil, fmt.Errorf("failed to encode column %s: %w", col, err)
			}
		}
		rec, err := NewRecord(raw, idField)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// escapePath keeps column names with path syntax as a single key.
func escapePath(name string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(name)
}
