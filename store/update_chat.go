package store

import (
	"time"

	"github.com/malonaz/multichat/internal/apperror"
)

const (
	ChatFieldTitle    = "title"
	ChatFieldModel    = "model"
	ChatFieldMessages = "messages"
)

// UpdateChatRequest represents a request to update a chat with specific fields.
type UpdateChatRequest struct {
	Chat *Chat
	// Fields of Chat to copy onto the stored record. Unknown fields are ignored.
	UpdateMask []string
}

// UpdateChat shallow-merges the masked fields onto the stored chat and refreshes its update
// time. The id, owner and creation time of a chat never change.
func (s *Store) UpdateChat(req *UpdateChatRequest) (*Chat, error) {
	if req == nil || req.Chat == nil {
		return nil, apperror.Validation("chat cannot be nil")
	}

	var updated *Chat
	err := s.Update(func(db *Database) error {
		existing := findChat(db, req.Chat.ID)
		if existing == nil {
			return apperror.NotFound("chat not found")
		}

		for _, field := range req.UpdateMask {
			switch field {
			case ChatFieldTitle:
				existing.Title = req.Chat.Title
			case ChatFieldModel:
				existing.Model = req.Chat.Model
			case ChatFieldMessages:
				existing.Messages = req.Chat.Messages
				if existing.Messages == nil {
					existing.Messages = []*Message{}
				}
			}
		}

		// Always update the timestamp, keeping it strictly increasing.
		now := s.Now()
		if !now.After(existing.UpdatedAt) {
			now = existing.UpdatedAt.Add(time.Millisecond)
		}
		existing.UpdatedAt = now
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
