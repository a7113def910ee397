package server

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/scylladb/go-set/strset"

	"github.com/malonaz/multichat/generation"
	"github.com/malonaz/multichat/internal/apperror"
	"github.com/malonaz/multichat/store"
)

// Response headers copied from the chat completions upstream.
var forwardedHeaders = []string{"Content-Type", "Cache-Control", "X-Request-Id"}

// handleChatCompletions proxies the request body verbatim to the configured upstream and
// forwards its status and body.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, r, apperror.Validation("reading body: %v", err))
		return
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.config.Gateway.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		s.respondError(w, r, apperror.Internal(err, "creating upstream request"))
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")
	apiKey, err := s.upstreamAPIKey()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if apiKey != "" {
		upstreamReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := s.upstream.Do(upstreamReq)
	if err != nil {
		s.respondError(w, r, apperror.Internal(err, "requesting upstream"))
		return
	}
	defer resp.Body.Close()

	for _, header := range forwardedHeaders {
		if value := resp.Header.Get(header); value != "" {
			w.Header().Set(header, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.log.Warn().Err(err).Str("request_id", requestID(r.Context())).Msg("copying upstream response")
	}
}

// upstreamAPIKey returns the configured upstream credential, else the shared OpenRouter key.
func (s *Server) upstreamAPIKey() (string, error) {
	if s.config.Gateway.UpstreamAPIKey != "" {
		return s.config.Gateway.UpstreamAPIKey, nil
	}
	keys, err := s.store.GetAPIKeys()
	if err != nil {
		return "", err
	}
	return keys[store.APIKeyOpenRouter], nil
}

type v1GenerateRequest struct {
	Prompt   string `json:"prompt"`
	Provider string `json:"provider"`
	ChatID   string `json:"chatId"`
}

func (s *Server) handleV1Images(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req v1GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	user := userFromContext(r.Context())
	result, err := s.generation.GenerateImage(r.Context(), &generation.ImageRequest{
		Prompt:   req.Prompt,
		ChatID:   req.ChatID,
		UserID:   user.ID,
		Provider: req.Provider,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"created":  s.now().Unix(),
		"provider": result.Provider,
		"data": []map[string]any{{
			"url":            result.ImageURL,
			"revised_prompt": result.Prompt,
		}},
	})
}

func (s *Server) handleV1Videos(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	var req v1GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		s.respondError(w, r, apperror.Validation("prompt is required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"videoUrl":      s.generation.VideoURL(prompt),
		"prompt":        prompt,
		"provider":      generation.ProviderPollinations,
		"isPlaceholder": true,
	})
}

type model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// handleModels serves the configured model catalog, without duplicates, in configuration order.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	seen := strset.New()
	models := []*model{}
	for _, id := range s.config.Gateway.Models {
		id = strings.TrimSpace(id)
		if id == "" || seen.Has(id) {
			continue
		}
		seen.Add(id)
		models = append(models, &model{ID: id, Object: "model", OwnedBy: "multichat"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": models})
}
