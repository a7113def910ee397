package client

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/malonaz/multichat/internal/file"
)

// SessionFile persists the session token between runs.
type SessionFile struct {
	path string
}

// Session as stored on disk.
type Session struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// NewSessionFile returns a session file at path.
func NewSessionFile(path string) *SessionFile {
	return &SessionFile{path: path}
}

// Load returns the stored session, or nil if there is none.
func (f *SessionFile) Load() (*Session, error) {
	content, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading session file")
	}
	session := &Session{}
	if err := json.Unmarshal(content, session); err != nil {
		// An unreadable file is treated as no session.
		return nil, nil
	}
	if session.Token == "" {
		return nil, nil
	}
	return session, nil
}

// Save writes the session, readable by the owner only.
func (f *SessionFile) Save(session *Session) error {
	content, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling session")
	}
	return file.WriteAtomic(f.path, content, 0600)
}

// Clear removes the stored session.
func (f *SessionFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session file")
	}
	return nil
}
