package file

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// File read from disk.
type File struct {
	Path    string
	Content []byte
}

// Read the files at paths. A directory contributes its files, and its subdirectories too
// when the path ends with '/...'. When extensions is non-empty, only matching names are kept.
func Read(paths []string, extensions ...string) ([]*File, error) {
	files := []*File{}
	readFn := func(path string) error {
		if !hasExtension(path, extensions) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "reading file")
		}
		files = append(files, &File{Path: path, Content: content})
		return nil
	}
	for _, path := range paths {
		if err := walk(path, readFn); err != nil {
			return nil, errors.Wrapf(err, "walking %s", path)
		}
	}
	return files, nil
}

func walk(path string, readFn func(path string) error) error {
	path, err := ExpandPath(path)
	if err != nil {
		return errors.Wrap(err, "expanding path")
	}
	path, recurse := strings.CutSuffix(path, "/...")

	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "getting os stats")
	}
	if !info.IsDir() {
		if recurse {
			return errors.Errorf("cannot recurse on file %s", path)
		}
		return readFn(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return errors.Wrap(err, "reading directory")
	}
	for _, entry := range entries {
		child := filepath.Join(path, entry.Name())
		if !entry.IsDir() {
			if err := readFn(child); err != nil {
				return errors.Wrapf(err, "reading %s", child)
			}
			continue
		}
		if recurse {
			if err := walk(child+"/...", readFn); err != nil {
				return err
			}
		}
	}
	return nil
}

func hasExtension(name string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	for _, extension := range extensions {
		if strings.HasSuffix(name, extension) {
			return true
		}
	}
	return false
}
