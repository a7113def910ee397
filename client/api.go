// Package client drives multichat conversations from the user side: authentication against the
// backend, request classification, provider fallback and chat persistence.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/malonaz/multichat/generation"
	"github.com/malonaz/multichat/internal/apperror"
	"github.com/malonaz/multichat/store"
)

// API is a client of the multichat REST API.
type API struct {
	baseURL string
	client  *http.Client

	mu    sync.RWMutex
	token string
}

// NewAPI instantiates and returns a new API client.
func NewAPI(baseURL string, client *http.Client) *API {
	if client == nil {
		client = http.DefaultClient
	}
	return &API{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

// SetToken sets the session token sent as a bearer credential.
func (a *API) SetToken(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = token
}

// Token returns the current session token.
func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

type loginResponse struct {
	store.User
	SessionToken string `json:"sessionToken"`
}

// Register creates an account.
func (a *API) Register(ctx context.Context, username, password string) (*store.User, error) {
	user := &store.User{}
	err := a.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{"username": username, "password": password}, user)
	return user, err
}

// Login exchanges credentials for a session token.
func (a *API) Login(ctx context.Context, username, password string) (*store.User, string, error) {
	response := &loginResponse{}
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, response); err != nil {
		return nil, "", err
	}
	return &response.User, response.SessionToken, nil
}

// TelegramAuth exchanges Telegram Mini-App initData for a session token.
func (a *API) TelegramAuth(ctx context.Context, initData string) (*store.User, string, error) {
	response := &struct {
		User         *store.User `json:"user"`
		SessionToken string      `json:"sessionToken"`
	}{}
	if err := a.do(ctx, http.MethodPost, "/api/auth/telegram", map[string]string{"initData": initData}, response); err != nil {
		return nil, "", err
	}
	if response.User == nil || response.SessionToken == "" {
		return nil, "", apperror.Upstream(http.StatusBadGateway, "incomplete telegram auth response")
	}
	return response.User, response.SessionToken, nil
}

// VerifySession returns the user of the current session token.
func (a *API) VerifySession(ctx context.Context) (*store.User, error) {
	response := &struct {
		Valid bool        `json:"valid"`
		User  *store.User `json:"user"`
	}{}
	if err := a.do(ctx, http.MethodPost, "/api/auth/verify-session", nil, response); err != nil {
		return nil, err
	}
	if !response.Valid || response.User == nil {
		return nil, apperror.Auth("invalid session")
	}
	return response.User, nil
}

// Logout revokes the current session token.
func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// ListChats returns the chats of a user.
func (a *API) ListChats(ctx context.Context, userID string) ([]*store.Chat, error) {
	var chats []*store.Chat
	err := a.do(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(userID), nil, &chats)
	return chats, err
}

// CreateChat creates an empty chat.
func (a *API) CreateChat(ctx context.Context, userID, title, model string) (*store.Chat, error) {
	chat := &store.Chat{}
	body := map[string]string{"userId": userID, "title": title, "model": model}
	err := a.do(ctx, http.MethodPost, "/api/chats", body, chat)
	return chat, err
}

// SaveChat stores the full record of a chat.
func (a *API) SaveChat(ctx context.Context, chat *store.Chat) (*store.Chat, error) {
	body := map[string]any{"title": chat.Title, "model": chat.Model, "messages": chat.Messages}
	saved := &store.Chat{}
	err := a.do(ctx, http.MethodPut, "/api/chats/"+url.PathEscape(chat.ID), body, saved)
	return saved, err
}

// DeleteChat deletes a chat.
func (a *API) DeleteChat(ctx context.Context, chatID string) error {
	return a.do(ctx, http.MethodDelete, "/api/chats/"+url.PathEscape(chatID), nil, nil)
}

// GenerateImage generates an image server side.
func (a *API) GenerateImage(ctx context.Context, req *generation.ImageRequest) (*generation.ImageResult, error) {
	result := &generation.ImageResult{}
	err := a.do(ctx, http.MethodPost, "/api/generate/image", req, result)
	return result, err
}

// GenerateVideo generates a video placeholder server side.
func (a *API) GenerateVideo(ctx context.Context, req *generation.ImageRequest) (*generation.VideoResult, error) {
	result := &generation.VideoResult{}
	err := a.do(ctx, http.MethodPost, "/api/generate/video", req, result)
	return result, err
}

// APIKeys returns the shared third-party credentials.
func (a *API) APIKeys(ctx context.Context) (store.APIKeys, error) {
	keys := store.APIKeys{}
	err := a.do(ctx, http.MethodGet, "/api/keys", nil, &keys)
	return keys, err
}

// UserAPIKey returns the API key of a user.
func (a *API) UserAPIKey(ctx context.Context, username string) (string, error) {
	response := &struct {
		APIKey string `json:"apiKey"`
	}{}
	err := a.do(ctx, http.MethodGet, "/api/user/"+url.PathEscape(username)+"/apikey", nil, response)
	return response.APIKey, err
}

// RegenerateUserAPIKey rotates the API key of a user.
func (a *API) RegenerateUserAPIKey(ctx context.Context, username string) (string, error) {
	response := &struct {
		APIKey string `json:"apiKey"`
	}{}
	err := a.do(ctx, http.MethodPost, "/api/user/"+url.PathEscape(username)+"/apikey/regenerate", nil, response)
	return response.APIKey, err
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		content, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshaling request")
		}
		body = bytes.NewReader(content)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token := a.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s %s response", method, path)
	}
	return nil
}

// statusError converts an error response back into an apperror kind.
func statusError(resp *http.Response) error {
	payload := &struct {
		Error string `json:"error"`
	}{}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(payload)
	message := payload.Error
	if message == "" {
		message = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return apperror.Validation("%s", message)
	case http.StatusUnauthorized:
		return apperror.Auth("%s", message)
	case http.StatusNotFound:
		return apperror.NotFound("%s", message)
	case http.StatusTooManyRequests:
		return apperror.RateLimited("%s", message)
	default:
		return apperror.Upstream(resp.StatusCode, "%s", message)
	}
}
