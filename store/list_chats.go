package store

// ListChats returns the chats of a user in storage order.
func (s *Store) ListChats(userID string) ([]*Chat, error) {
	chats := []*Chat{}
	err := s.View(func(db *Database) error {
		for _, chat := range db.Chats {
			if chat.UserID == userID {
				chats = append(chats, chat)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chats, nil
}
