package store

import (
	"time"
)

const (
	MessageTypeUser = "user"
	MessageTypeAI   = "ai"
)

// User of the application.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	// Hex SHA-256 of the password. Empty for Telegram-originated users.
	Password   string    `json:"password,omitempty"`
	APIKey     string    `json:"apiKey"`
	TelegramID int64     `json:"telegramId,omitempty"`
	FirstName  string    `json:"firstName,omitempty"`
	LastName   string    `json:"lastName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Public returns a copy of the user without its password hash.
func (u *User) Public() *User {
	public := *u
	public.Password = ""
	return &public
}

// Session maps a bearer token to a user.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Attachment is a file sent along with a message.
type Attachment struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Size    int64  `json:"size,omitempty"`
	Content string `json:"content,omitempty"`
}

// Message of a chat.
type Message struct {
	Type      string        `json:"type"`
	Text      string        `json:"text"`
	Files     []*Attachment `json:"files,omitempty"`
	Image     string        `json:"image,omitempty"`
	Video     string        `json:"video,omitempty"`
	Timestamp *Timestamp    `json:"timestamp,omitempty"`
}

// Chat holds a conversation.
type Chat struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Title     string     `json:"title"`
	Model     string     `json:"model"`
	Messages  []*Message `json:"messages"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// APIKeys holds third-party credentials shared by every user, keyed by provider name.
type APIKeys map[string]string

const (
	APIKeyHuggingFace  = "huggingface"
	APIKeyOpenRouter   = "openrouter"
	APIKeyPollinations = "pollinations"
)

// Database is the whole persisted document.
type Database struct {
	Users    []*User    `json:"users"`
	Chats    []*Chat    `json:"chats"`
	Sessions []*Session `json:"sessions"`
	APIKeys  APIKeys    `json:"apiKeys"`
}

func newDatabase() *Database {
	db := &Database{}
	db.normalize()
	return db
}

// normalize replaces nil collections so the document always serializes with its full shape.
func (db *Database) normalize() {
	if db.Users == nil {
		db.Users = []*User{}
	}
	if db.Chats == nil {
		db.Chats = []*Chat{}
	}
	if db.Sessions == nil {
		db.Sessions = []*Session{}
	}
	if db.APIKeys == nil {
		db.APIKeys = APIKeys{}
	}
	for _, chat := range db.Chats {
		if chat.Messages == nil {
			chat.Messages = []*Message{}
		}
	}
}
