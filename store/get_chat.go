package store

import (
	"github.com/malonaz/multichat/internal/apperror"
)

// GetChat returns a chat by id.
func (s *Store) GetChat(chatID string) (*Chat, error) {
	var chat *Chat
	err := s.View(func(db *Database) error {
		chat = findChat(db, chatID)
		if chat == nil {
			return apperror.NotFound("chat not found")
		}
		return nil
	})
	return chat, err
}
