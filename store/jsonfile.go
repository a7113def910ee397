package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/malonaz/multichat/internal/file"
)

// JSONFile stores the document as a single JSON file.
type JSONFile struct {
	path string
}

// NewJSONFile returns a backend writing to path, creating its directory.
func NewJSONFile(path string) (*JSONFile, error) {
	if path == "" {
		return nil, errors.New("database path cannot be empty")
	}
	if err := file.CreateDirectoryIfNotExist(filepath.Dir(path)); err != nil {
		return nil, errors.Wrap(err, "creating database directory")
	}
	return &JSONFile{path: path}, nil
}

func (f *JSONFile) Load() ([]byte, error) {
	content, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading database file")
	}
	return content, nil
}

func (f *JSONFile) Save(content []byte) error {
	return file.WriteAtomic(f.path, content, 0600)
}

func (f *JSONFile) Backup(content []byte, at time.Time) (string, error) {
	path := fmt.Sprintf("%s.corrupt-%d", f.path, at.UnixMilli())
	if err := os.WriteFile(path, content, 0600); err != nil {
		return "", errors.Wrap(err, "writing database backup")
	}
	return path, nil
}

func (f *JSONFile) Close() error { return nil }
