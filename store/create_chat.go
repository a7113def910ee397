package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/malonaz/multichat/internal/apperror"
)

// CreateChatRequest represents a request to create a new chat.
type CreateChatRequest struct {
	UserID string
	Title  string
	Model  string
}

// CreateChat creates an empty chat with id 'chat_<epochMillis>'.
func (s *Store) CreateChat(req *CreateChatRequest) (*Chat, error) {
	if req == nil || strings.TrimSpace(req.UserID) == "" {
		return nil, apperror.Validation("userId is required")
	}

	var chat *Chat
	err := s.Update(func(db *Database) error {
		now := s.Now()
		id := chatID(now)
		// Two chats created within the same millisecond get consecutive ids.
		for findChat(db, id) != nil {
			now = now.Add(time.Millisecond)
			id = chatID(now)
		}
		chat = &Chat{
			ID:        id,
			UserID:    req.UserID,
			Title:     req.Title,
			Model:     req.Model,
			Messages:  []*Message{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		db.Chats = append(db.Chats, chat)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func chatID(t time.Time) string {
	return fmt.Sprintf("chat_%d", t.UnixMilli())
}
