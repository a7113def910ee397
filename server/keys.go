package server

import (
	"net/http"
	"strings"

	"github.com/malonaz/multichat/internal/apperror"
	"github.com/malonaz/multichat/store"
)

// handleUserRoutes serves '/api/user/<username>/apikey' and its 'regenerate' action. A session
// only reaches the key of its own user.
func (s *Server) handleUserRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 4 || parts[3] != "apikey" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	username := parts[2]
	if user := userFromContext(r.Context()); user == nil || user.Username != username {
		s.respondError(w, r, apperror.Auth("session does not belong to %s", username))
		return
	}

	switch {
	case len(parts) == 4:
		if !allowMethods(w, r, http.MethodGet) {
			return
		}
		apiKey, err := s.auth.GetAPIKey(username)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"apiKey": apiKey})
	case len(parts) == 5 && parts[4] == "regenerate":
		if !allowMethods(w, r, http.MethodPost, http.MethodPut) {
			return
		}
		apiKey, err := s.auth.RegenerateAPIKey(username)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		s.log.Info().Str("username", username).Msg("api key regenerated")
		writeJSON(w, http.StatusOK, map[string]any{"apiKey": apiKey})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleAPIKeys serves the shared third-party credentials.
func (s *Server) handleAPIKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		keys, err := s.store.GetAPIKeys()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, keys)
	case http.MethodPost, http.MethodPut:
		update := store.APIKeys{}
		if err := decodeJSON(r, &update); err != nil {
			s.respondError(w, r, err)
			return
		}
		keys, err := s.store.MergeAPIKeys(update)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, keys)
	default:
		allowMethods(w, r, http.MethodGet, http.MethodPost, http.MethodPut)
	}
}
