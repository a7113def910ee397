package store

import (
	"github.com/malonaz/multichat/internal/apperror"
)

// DeleteChat removes a chat. The document is left untouched if the chat does not exist.
func (s *Store) DeleteChat(chatID string) error {
	return s.Update(func(db *Database) error {
		for i, chat := range db.Chats {
			if chat.ID == chatID {
				db.Chats = append(db.Chats[:i], db.Chats[i+1:]...)
				return nil
			}
		}
		return apperror.NotFound("chat not found")
	})
}
