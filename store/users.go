package store

import (
	"github.com/malonaz/multichat/internal/apperror"
)

// CreateUser inserts a user, failing if the username is taken.
func (s *Store) CreateUser(user *User) error {
	return s.Update(func(db *Database) error {
		if findUser(db, func(u *User) bool { return u.Username == user.Username }) != nil {
			return apperror.Conflict("user already exists")
		}
		if findUser(db, func(u *User) bool { return u.ID == user.ID }) != nil {
			return apperror.Conflict("user id already exists")
		}
		db.Users = append(db.Users, user)
		return nil
	})
}

// FindOrCreateUser returns the user with the given id, inserting the result of create if absent.
// The returned boolean is true if the user was created. An error from create leaves the store
// unchanged.
func (s *Store) FindOrCreateUser(userID string, create func() (*User, error)) (*User, bool, error) {
	var user *User
	var created bool
	err := s.Update(func(db *Database) error {
		user = findUser(db, func(u *User) bool { return u.ID == userID })
		if user != nil {
			return nil
		}
		var err error
		if user, err = create(); err != nil {
			return err
		}
		if findUser(db, func(u *User) bool { return u.Username == user.Username }) != nil {
			return apperror.Conflict("user already exists")
		}
		db.Users = append(db.Users, user)
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(username string) (*User, error) {
	return s.getUser(func(u *User) bool { return u.Username == username })
}

// GetUserByID returns a user by id.
func (s *Store) GetUserByID(userID string) (*User, error) {
	return s.getUser(func(u *User) bool { return u.ID == userID })
}

// GetUserByAPIKey returns the user owning the given API key.
func (s *Store) GetUserByAPIKey(apiKey string) (*User, error) {
	if apiKey == "" {
		return nil, apperror.NotFound("user not found")
	}
	return s.getUser(func(u *User) bool { return u.APIKey == apiKey })
}

// SetUserAPIKey replaces the API key of a user.
func (s *Store) SetUserAPIKey(username, apiKey string) (*User, error) {
	var user *User
	err := s.Update(func(db *Database) error {
		user = findUser(db, func(u *User) bool { return u.Username == username })
		if user == nil {
			return apperror.NotFound("user not found")
		}
		user.APIKey = apiKey
		return nil
	})
	return user, err
}

func (s *Store) getUser(match func(*User) bool) (*User, error) {
	var user *User
	err := s.View(func(db *Database) error {
		user = findUser(db, match)
		if user == nil {
			return apperror.NotFound("user not found")
		}
		return nil
	})
	return user, err
}
