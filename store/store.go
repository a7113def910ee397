package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Backend persists the raw database document.
type Backend interface {
	// Load returns the stored document, or nil if none exists yet.
	Load() ([]byte, error)
	// Save replaces the stored document.
	Save(content []byte) error
	// Backup keeps an unreadable document aside and returns where it went.
	Backup(content []byte, at time.Time) (string, error)
	Close() error
}

// Option configures a store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the single writer of the database document. Every operation re-reads the whole
// document and mutations re-write it, serialized by mu.
type Store struct {
	mu      sync.Mutex
	backend Backend
	log     zerolog.Logger
	now     func() time.Time
}

// New store over the given backend. The document is created if it does not exist.
func New(backend Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.View(func(*Database) error { return nil }); err != nil {
		return nil, errors.Wrap(err, "initializing database")
	}
	return s, nil
}

// Open a store using the named driver.
func Open(driver, path string, opts ...Option) (*Store, error) {
	var backend Backend
	var err error
	switch driver {
	case "", DriverJSON:
		backend, err = NewJSONFile(path)
	case DriverSQLite:
		backend, err = NewSQLite(path)
	default:
		return nil, errors.Errorf("unknown database driver %q", driver)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s backend", driver)
	}
	return New(backend, opts...)
}

// View runs fn against a freshly loaded document without persisting it.
func (s *Store) View(fn func(db *Database) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.load()
	if err != nil {
		return err
	}
	return fn(db)
}

// Update runs fn against a freshly loaded document and persists it if fn succeeds.
func (s *Store) Update(fn func(db *Database) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(db); err != nil {
		return err
	}
	return s.save(db)
}

// Now returns the store time, truncated to milliseconds.
func (s *Store) Now() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Close the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) load() (*Database, error) {
	content, err := s.backend.Load()
	if err != nil {
		return nil, errors.Wrap(err, "loading database")
	}
	if len(content) == 0 {
		db := newDatabase()
		return db, s.save(db)
	}

	db := &Database{}
	if err := json.Unmarshal(content, db); err != nil {
		location, backupErr := s.backend.Backup(content, s.Now())
		event := s.log.Warn().Err(err)
		if backupErr != nil {
			event = event.AnErr("backup_error", backupErr)
		} else {
			event = event.Str("backup", location)
		}
		event.Msg("database is unreadable, starting from an empty document")

		db = newDatabase()
		return db, s.save(db)
	}
	db.normalize()
	return db, nil
}

func (s *Store) save(db *Database) error {
	content, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling database")
	}
	if err := s.backend.Save(content); err != nil {
		return errors.Wrap(err, "saving database")
	}
	return nil
}
