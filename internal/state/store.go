// Package state persists conversion history in a local SQLite database.
// The store is optional: the CLI runs without it unless a history path
// is configured.
package state

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// StatusCompleted and StatusFailed are the terminal conversion states.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when a conversion id does not exist.
var ErrNotFound = errors.New("state: conversion not found")

// Conversion is one recorded script-to-flow run.
type Conversion struct {
	ID           string
	ScriptPath   string
	FlowName     string
	DatasetCount int
	RecipeCount  int
	Status       string
	Error        string
	CreatedAt    time.Time
}

// Store wraps the SQLite conversion-history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and
// applies the schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// RecordConversion inserts a conversion row and returns it with the
// generated id and timestamp filled in.
func (s *Store) RecordConversion(c Conversion) (*Conversion, error) {
	if s.db == nil {
		return nil, fmt.Errorf("state: database not opened")
	}
	c.ID = generateID()
	c.CreatedAt = time.Now().UTC()
	if c.Status == "" {
		c.Status = StatusCompleted
	}

	_, err := s.db.Exec(`
		INSERT INTO conversions (id, script_path, flow_name, dataset_count, recipe_count, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ScriptPath, c.FlowName, c.DatasetCount, c.RecipeCount,
		c.Status, c.Error, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("state: record conversion: %w", err)
	}
	return &c, nil
}

// GetConversion fetches one conversion by id.
func (s *Store) GetConversion(id string) (*Conversion, error) {
	if s.db == nil {
		return nil, fmt.Errorf("state: database not opened")
	}
	row := s.db.QueryRow(`
		SELECT id, script_path, flow_name, dataset_count, recipe_count, status, error, created_at
		FROM conversions WHERE id = ?`, id)
	c, err := scanConversion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("state: get conversion: %w", err)
	}
	return c, nil
}

// ListConversions returns the most recent conversions, newest first.
// A non-positive limit returns everything.
func (s *Store) ListConversions(limit int) ([]*Conversion, error) {
	if s.db == nil {
		return nil, fmt.Errorf("state: database not opened")
	}
	query := `
		SELECT id, script_path, flow_name, dataset_count, recipe_count, status, error, created_at
		FROM conversions ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("state: list conversions: %w", err)
	}
	defer rows.Close()

	var out []*Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, fmt.Errorf("state: scan conversion: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: list conversions: %w", err)
	}
	return out, nil
}

// LatestConversion returns the newest conversion for a script path, or
// ErrNotFound.
func (s *Store) LatestConversion(scriptPath string) (*Conversion, error) {
	if s.db == nil {
		return nil, fmt.Errorf("state: database not opened")
	}
	row := s.db.QueryRow(`
		SELECT id, script_path, flow_name, dataset_count, recipe_count, status, error, created_at
		FROM conversions WHERE script_path = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, scriptPath)
	c, err := scanConversion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("state: latest conversion: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversion(row rowScanner) (*Conversion, error) {
	var c Conversion
	err := row.Scan(&c.ID, &c.ScriptPath, &c.FlowName,
		&c.DatasetCount, &c.RecipeCount, &c.Status, &c.Error, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func generateID() string {
	return uuid.New().String()
}
