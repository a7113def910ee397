package store

import (
	"time"

	"github.com/malonaz/multichat/internal/apperror"
)

// CreateSessionRequest represents a request to store a new session.
type CreateSessionRequest struct {
	Session *Session
	// Maximum number of sessions the user holds once the new one is stored.
	MaxPerUser int
}

// CreateSession stores a session, first dropping the user's oldest sessions so that at most
// MaxPerUser remain afterwards.
func (s *Store) CreateSession(req *CreateSessionRequest) error {
	if req == nil || req.Session == nil {
		return apperror.Validation("session cannot be nil")
	}
	return s.Update(func(db *Database) error {
		if req.MaxPerUser > 0 {
			pruneSessions(db, req.Session.UserID, req.MaxPerUser-1)
		}
		db.Sessions = append(db.Sessions, req.Session)
		return nil
	})
}

// ResolveSession returns the user owning token. A session past its expiry at now is deleted.
func (s *Store) ResolveSession(token string, now time.Time) (*User, *Session, error) {
	if token == "" {
		return nil, nil, apperror.Auth("no session token")
	}

	var user *User
	var session *Session
	var expired bool
	err := s.Update(func(db *Database) error {
		for i, candidate := range db.Sessions {
			if candidate.Token != token {
				continue
			}
			if now.After(candidate.ExpiresAt) {
				db.Sessions = append(db.Sessions[:i], db.Sessions[i+1:]...)
				expired = true
				return nil
			}
			session = candidate
			break
		}
		if session == nil {
			return apperror.Auth("invalid session")
		}
		user = findUser(db, func(u *User) bool { return u.ID == session.UserID })
		if user == nil {
			return apperror.Auth("invalid session")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if expired {
		return nil, nil, apperror.Auth("session expired")
	}
	return user, session, nil
}

// DeleteSession removes a session. Unknown tokens are ignored.
func (s *Store) DeleteSession(token string) error {
	return s.Update(func(db *Database) error {
		for i, session := range db.Sessions {
			if session.Token == token {
				db.Sessions = append(db.Sessions[:i], db.Sessions[i+1:]...)
				return nil
			}
		}
		return nil
	})
}

// ListSessions returns the sessions of a user in storage order.
func (s *Store) ListSessions(userID string) ([]*Session, error) {
	sessions := []*Session{}
	err := s.View(func(db *Database) error {
		for _, session := range db.Sessions {
			if session.UserID == userID {
				sessions = append(sessions, session)
			}
		}
		return nil
	})
	return sessions, err
}
