package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/malonaz/multichat/internal/apperror"
	"github.com/malonaz/multichat/store"
)

// Chat fields a client may update, mapped to their store field.
var updatableChatFields = map[string]string{
	"title":    store.ChatFieldTitle,
	"model":    store.ChatFieldModel,
	"messages": store.ChatFieldMessages,
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req struct {
		UserID string `json:"userId"`
		Title  string `json:"title"`
		Model  string `json:"model"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Model == "" {
		req.Model = s.config.DefaultModel
	}
	chat, err := s.store.CreateChat(&store.CreateChatRequest{UserID: req.UserID, Title: req.Title, Model: req.Model})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, chat)
}

// handleChatRoutes serves '/api/chats/<userId>' (GET) and '/api/chats/<chatId>' (PUT, DELETE).
func (s *Server) handleChatRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id := parts[2]

	switch r.Method {
	case http.MethodGet:
		s.handleListChats(w, r, id)
	case http.MethodPut:
		s.handleUpdateChat(w, r, id)
	case http.MethodDelete:
		s.handleDeleteChat(w, r, id)
	default:
		allowMethods(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request, userID string) {
	chats, err := s.store.ListChats(userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleUpdateChat(w http.ResponseWriter, r *http.Request, chatID string) {
	var fields map[string]json.RawMessage
	if err := decodeJSON(r, &fields); err != nil {
		s.respondError(w, r, err)
		return
	}

	chat := &store.Chat{ID: chatID}
	var updateMask []string
	for name, raw := range fields {
		field, ok := updatableChatFields[name]
		if !ok {
			continue
		}
		var err error
		switch field {
		case store.ChatFieldTitle:
			err = json.Unmarshal(raw, &chat.Title)
		case store.ChatFieldModel:
			err = json.Unmarshal(raw, &chat.Model)
		case store.ChatFieldMessages:
			err = json.Unmarshal(raw, &chat.Messages)
		}
		if err != nil {
			s.respondError(w, r, apperror.Validation("invalid %s: %v", name, err))
			return
		}
		updateMask = append(updateMask, field)
	}

	updated, err := s.store.UpdateChat(&store.UpdateChatRequest{Chat: chat, UpdateMask: updateMask})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request, chatID string) {
	if err := s.store.DeleteChat(chatID); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
