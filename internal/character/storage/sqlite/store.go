// Package sqlite persists the choice catalog in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/charforge/internal/character/catalog"
	"github.com/louisbranch/charforge/internal/character/storage/sqlite/migrations"
	apperrors "github.com/louisbranch/charforge/internal/platform/errors"
	sqlitemigrate "github.com/louisbranch/charforge/internal/platform/storage/sqlitemigrate"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists catalog snapshots in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Import describes one catalog import.
type Import struct {
	ID         int64
	Source     string
	Categories int
	Entries    int
	ImportedAt time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite catalog store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveCatalog replaces the stored catalog with cat and records the import.
func (s *Store) SaveCatalog(ctx context.Context, cat *catalog.Catalog, source string) (Import, error) {
	if err := ctx.Err(); err != nil {
		return Import{}, err
	}
	if s == nil || s.sqlDB == nil {
		return Import{}, fmt.Errorf("storage is not configured")
	}
	if cat.Len() == 0 {
		return Import{}, apperrors.New(apperrors.CodeCatalogEmpty, "refusing to store an empty catalog")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return Import{}, apperrors.Wrap(apperrors.CodeStorageWrite, "begin catalog import", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_entries`); err != nil {
		return Import{}, apperrors.Wrap(apperrors.CodeStorageWrite, "clear catalog entries", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_categories`); err != nil {
		return Import{}, apperrors.Wrap(apperrors.CodeStorageWrite, "clear catalog categories", err)
	}

	record := Import{Source: strings.TrimSpace(source), ImportedAt: time.Now().UTC()}
	for i, section := range cat.Sections() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_categories (name, position) VALUES (?, ?)`,
			section.Category, i,
		); err != nil {
			return Import{}, writeError(fmt.Sprintf("insert category %s", section.Category), err)
		}
		for j, entry := range section.Entries {
			meta, err := encodeMeta(entry.Meta)
			if err != nil {
				return Import{}, apperrors.WrapWithMetadata(apperrors.CodeCatalogInvalid,
					"encode entry metadata",
					map[string]string{"Category": section.Category, "Entry": entry.Name}, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO catalog_entries (category, name, position, meta_json) VALUES (?, ?, ?, ?)`,
				section.Category, entry.Name, j, meta,
			); err != nil {
				return Import{}, writeError(fmt.Sprintf("insert entry %s/%s", section.Category, entry.Name), err)
			}
			record.Entries++
		}
		record.Categories++
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO catalog_imports (source, categories, entries, imported_at) VALUES (?, ?, ?, ?)`,
		record.Source, record.Categories, record.Entries, toMillis(record.ImportedAt),
	)
	if err != nil {
		return Import{}, apperrors.Wrap(apperrors.CodeStorageWrite, "record catalog import", err)
	}
	if record.ID, err = result.LastInsertId(); err != nil {
		return Import{}, apperrors.Wrap(apperrors.CodeStorageWrite, "read import id", err)
	}
	if err := tx.Commit(); err != nil {
		return Import{}, apperrors.Wrap(apperrors.CodeStorageWrite, "commit catalog import", err)
	}
	return record, nil
}

// LoadCatalog rebuilds the stored catalog in its original order.
func (s *Store) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT c.name, e.name, e.meta_json
		FROM catalog_categories c
		LEFT JOIN catalog_entries e ON e.category = c.name
		ORDER BY c.position, e.position`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var sections []catalog.Section
	for rows.Next() {
		var (
			category string
			name     sql.NullString
			metaJSON sql.NullString
		)
		if err := rows.Scan(&category, &name, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		if len(sections) == 0 || sections[len(sections)-1].Category != category {
			sections = append(sections, catalog.Section{Category: category})
		}
		if !name.Valid {
			continue
		}
		meta, err := decodeMeta(metaJSON.String)
		if err != nil {
			return nil, apperrors.WrapWithMetadata(apperrors.CodeCatalogInvalid,
				"decode entry metadata",
				map[string]string{"Category": category, "Entry": name.String}, err)
		}
		last := &sections[len(sections)-1]
		last.Entries = append(last.Entries, catalog.Entry{Name: name.String, Meta: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	if len(sections) == 0 {
		return nil, apperrors.New(apperrors.CodeCatalogEmpty, "no catalog has been imported")
	}
	return catalog.New(sections...)
}

// LastImport returns the most recent import record.
func (s *Store) LastImport(ctx context.Context) (Import, error) {
	if err := ctx.Err(); err != nil {
		return Import{}, err
	}
	if s == nil || s.sqlDB == nil {
		return Import{}, fmt.Errorf("storage is not configured")
	}
	var (
		record     Import
		importedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
		SELECT id, source, categories, entries, imported_at
		FROM catalog_imports
		ORDER BY id DESC
		LIMIT 1`,
	).Scan(&record.ID, &record.Source, &record.Categories, &record.Entries, &importedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, apperrors.New(apperrors.CodeNotFound, "no catalog import recorded")
	}
	if err != nil {
		return Import{}, fmt.Errorf("get last import: %w", err)
	}
	record.ImportedAt = fromMillis(importedAt)
	return record, nil
}

func encodeMeta(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMeta(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// writeError maps constraint violations to CodeCatalogInvalid and everything
// else to CodeStorageWrite.
func writeError(message string, err error) error {
	if isConstraintViolation(err) {
		return apperrors.Wrap(apperrors.CodeCatalogInvalid, message, err)
	}
	return apperrors.Wrap(apperrors.CodeStorageWrite, message, err)
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "constraint failed")
}
