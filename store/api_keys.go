package store

// GetAPIKeys returns the shared third-party credentials.
func (s *Store) GetAPIKeys() (APIKeys, error) {
	var keys APIKeys
	err := s.View(func(db *Database) error {
		keys = db.APIKeys
		return nil
	})
	return keys, err
}

// MergeAPIKeys overwrites the given credentials, leaving the others in place. An empty value
// removes a credential.
func (s *Store) MergeAPIKeys(update APIKeys) (APIKeys, error) {
	var keys APIKeys
	err := s.Update(func(db *Database) error {
		for name, value := range update {
			if value == "" {
				delete(db.APIKeys, name)
				continue
			}
			db.APIKeys[name] = value
		}
		keys = db.APIKeys
		return nil
	})
	return keys, err
}
