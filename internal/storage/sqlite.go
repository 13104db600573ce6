// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Keshav04042001/mindmeld/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS labeled_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		intent TEXT NOT NULL,
		label_set TEXT NOT NULL,
		text TEXT NOT NULL,
		entities TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_queries_branch
		ON labeled_queries(domain, intent, label_set);

	CREATE TABLE IF NOT EXISTS gazetteers (
		name TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entries TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceQueries atomically replaces all queries stored for the
// (domain, intent, labelSet) branch.
func (s *SQLiteStorage) ReplaceQueries(ctx context.Context, domain, intent, labelSet string, queries []models.ProcessedQuery) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM labeled_queries WHERE domain = ? AND intent = ? AND label_set = ?`,
		domain, intent, labelSet,
	); err != nil {
		return fmt.Errorf("delete old queries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO labeled_queries (domain, intent, label_set, text, entities)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range queries {
		entitiesJSON, err := json.Marshal(q.Entities)
		if err != nil {
			return fmt.Errorf("failed to marshal entities: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, domain, intent, labelSet, q.Text, string(entitiesJSON)); err != nil {
			return fmt.Errorf("insert query: %w", err)
		}
	}
	return tx.Commit()
}

// LabeledQueries returns the queries stored for the (domain, intent, labelSet)
// branch in insertion order.
func (s *SQLiteStorage) LabeledQueries(ctx context.Context, domain, intent, labelSet string) ([]models.ProcessedQuery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT text, entities FROM labeled_queries
		 WHERE domain = ? AND intent = ? AND label_set = ?
		 ORDER BY id`,
		domain, intent, labelSet,
	)
	if err != nil {
		return nil, fmt.Errorf("query labeled queries: %w", err)
	}
	defer rows.Close()

	var queries []models.ProcessedQuery
	for rows.Next() {
		var q models.ProcessedQuery
		var entitiesJSON string
		if err := rows.Scan(&q.Text, &entitiesJSON); err != nil {
			return nil, err
		}
		q.Domain = domain
		q.Intent = intent
		if entitiesJSON != "" {
			if err := json.Unmarshal([]byte(entitiesJSON), &q.Entities); err != nil {
				return nil, fmt.Errorf("failed to unmarshal entities: %w", err)
			}
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// DeleteQueries removes all queries for the (domain, intent, labelSet) branch.
func (s *SQLiteStorage) DeleteQueries(ctx context.Context, domain, intent, labelSet string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM labeled_queries WHERE domain = ? AND intent = ? AND label_set = ?`,
		domain, intent, labelSet,
	)
	return err
}

// CountQueries returns the total number of stored labeled queries.
func (s *SQLiteStorage) CountQueries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM labeled_queries`).Scan(&count)
	return count, err
}

// SaveGazetteer inserts or replaces a gazetteer by name.
func (s *SQLiteStorage) SaveGazetteer(ctx context.Context, gaz *models.Gazetteer) error {
	entriesJSON, err := json.Marshal(gaz.Entries)
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO gazetteers (name, entity_type, entries, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET
		   entity_type = excluded.entity_type,
		   entries = excluded.entries,
		   updated_at = CURRENT_TIMESTAMP`,
		gaz.Name, gaz.EntityType, string(entriesJSON),
	)
	return err
}

// Gazetteer returns a gazetteer by name.
func (s *SQLiteStorage) Gazetteer(ctx context.Context, name string) (*models.Gazetteer, error) {
	gaz := &models.Gazetteer{Name: name}
	var entriesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT entity_type, entries FROM gazetteers WHERE name = ?`, name,
	).Scan(&gaz.EntityType, &entriesJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("gazetteer not found: %s", name)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(entriesJSON), &gaz.Entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entries: %w", err)
	}
	return gaz, nil
}

// ListGazetteers returns the stored gazetteer names, sorted.
func (s *SQLiteStorage) ListGazetteers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM gazetteers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
