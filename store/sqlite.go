package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const documentName = "database"

// SQLite stores the document as a single row of a SQLite table.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database at path and creates the documents table.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	// A single connection keeps ':memory:' databases shared across calls.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			name TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			update_timestamp INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating documents table")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load() ([]byte, error) {
	var content string
	err := s.db.QueryRow(`SELECT content FROM documents WHERE name = ?`, documentName).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying document")
	}
	return []byte(content), nil
}

func (s *SQLite) Save(content []byte) error {
	return s.write(documentName, content, time.Now())
}

func (s *SQLite) Backup(content []byte, at time.Time) (string, error) {
	name := fmt.Sprintf("%s.corrupt-%d", documentName, at.UnixMilli())
	if err := s.write(name, content, at); err != nil {
		return "", err
	}
	return name, nil
}

func (s *SQLite) write(name string, content []byte, at time.Time) error {
	_, err := s.db.Exec(`
		REPLACE INTO documents (name, content, update_timestamp)
		VALUES (?, ?, ?)
	`, name, string(content), at.UnixMicro())
	if err != nil {
		return errors.Wrap(err, "writing document")
	}
	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
