package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malonaz/multichat/internal/configuration"
	"github.com/malonaz/multichat/store"
)

type testServer struct {
	*httptest.Server
	store *store.Store
}

func newTestServer(t *testing.T, mutate func(config *configuration.Config)) *testServer {
	t.Helper()
	config := configuration.Default()
	config.Database.Path = filepath.Join(t.TempDir(), "database.json")
	if mutate != nil {
		mutate(config)
	}
	s, err := store.Open(config.Database.Driver, config.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	server := httptest.NewServer(New(config, s, zerolog.Nop()).Handler())
	t.Cleanup(server.Close)
	return &testServer{Server: server, store: s}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		content, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(content)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, content
}

func (ts *testServer) doJSON(t *testing.T, method, path string, body any, headers map[string]string) (int, map[string]any) {
	t.Helper()
	status, content := ts.do(t, method, path, body, headers)
	result := map[string]any{}
	require.NoError(t, json.Unmarshal(content, &result), string(content))
	return status, result
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// login registers a user and returns its session token.
func (ts *testServer) login(t *testing.T, username string) string {
	t.Helper()
	status, _ := ts.doJSON(t, http.MethodPost, "/api/auth/register", map[string]string{"username": username, "password": "secret"}, nil)
	require.Equal(t, http.StatusCreated, status)
	status, body := ts.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": "secret"}, nil)
	require.Equal(t, http.StatusOK, status)
	return body["sessionToken"].(string)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.doJSON(t, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	_, err := time.Parse(time.RFC3339Nano, body["timestamp"].(string))
	assert.NoError(t, err)
}

func TestRegisterTwiceConflicts(t *testing.T) {
	ts := newTestServer(t, nil)
	credentials := map[string]string{"username": "alice", "password": "secret"}

	status, body := ts.doJSON(t, http.MethodPost, "/api/auth/register", credentials, nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "alice", body["username"])
	assert.NotContains(t, body, "password")
	assert.Regexp(t, `^sk-[0-9a-f]{64}$`, body["apiKey"])

	status, body = ts.doJSON(t, http.MethodPost, "/api/auth/register", credentials, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])

	status, _ = ts.doJSON(t, http.MethodPost, "/api/auth/register", map[string]string{"username": "bob"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "alice")
	assert.Regexp(t, `^sess_\d+_[0-9a-f]{8}_[0-9a-f]{8}$`, token)

	status, _ := ts.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := ts.doJSON(t, http.MethodPost, "/api/auth/verify-session", nil, bearer(token))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "alice", body["user"].(map[string]any)["username"])

	status, _ = ts.doJSON(t, http.MethodPost, "/api/auth/verify-session", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = ts.doJSON(t, http.MethodPost, "/api/auth/logout", nil, bearer(token))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, _ = ts.doJSON(t, http.MethodPost, "/api/auth/verify-session", nil, bearer(token))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTelegramRejectsBadHash(t *testing.T) {
	ts := newTestServer(t, func(config *configuration.Config) {
		config.TelegramBotToken = "123456:ABC-DEF"
	})
	initData := `auth_date=1714564800&hash=deadbeef&user=%7B%22id%22%3A42%7D`
	status, _ := ts.doJSON(t, http.MethodPost, "/api/auth/telegram", map[string]string{"initData": initData}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = ts.doJSON(t, http.MethodPost, "/api/auth/telegram", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestChatLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	status, chat := ts.doJSON(t, http.MethodPost, "/api/chats", map[string]string{"userId": "user_1", "title": "Новый чат"}, nil)
	require.Equal(t, http.StatusCreated, status)
	chatID := chat["id"].(string)
	assert.Regexp(t, `^chat_\d+$`, chatID)
	assert.Equal(t, configuration.Default().DefaultModel, chat["model"])

	status, content := ts.do(t, http.MethodGet, "/api/chats/user_1", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var chats []*store.Chat
	require.NoError(t, json.Unmarshal(content, &chats))
	require.Len(t, chats, 1)
	assert.Equal(t, chatID, chats[0].ID)
	assert.NotNil(t, chats[0].Messages)
	assert.Empty(t, chats[0].Messages)

	update := map[string]any{
		"id":     "chat_hijack",
		"userId": "user_2",
		"messages": []map[string]string{
			{"type": "user", "text": "привет"},
			{"type": "ai", "text": "Здравствуйте!"},
		},
	}
	status, content = ts.do(t, http.MethodPut, "/api/chats/"+chatID, update, nil)
	require.Equal(t, http.StatusOK, status, string(content))
	updated := &store.Chat{}
	require.NoError(t, json.Unmarshal(content, updated))
	assert.Equal(t, chatID, updated.ID)
	assert.Equal(t, "user_1", updated.UserID)
	assert.Equal(t, "Новый чат", updated.Title)
	require.Len(t, updated.Messages, 2)
	assert.Equal(t, "привет", updated.Messages[0].Text)
	assert.Equal(t, "Здравствуйте!", updated.Messages[1].Text)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	status, _ = ts.doJSON(t, http.MethodPut, "/api/chats/chat_missing", map[string]string{"title": "x"}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpdateChatMessagesRoundTrip(t *testing.T) {
	ts := newTestServer(t, nil)
	status, chat := ts.doJSON(t, http.MethodPost, "/api/chats", map[string]string{"userId": "user_1"}, nil)
	require.Equal(t, http.StatusCreated, status)
	chatID := chat["id"].(string)

	messages := `[
		{"type":"user","text":"a"},
		{"type":"ai","text":"b","timestamp":1714564800000},
		{"type":"user","text":"c","timestamp":"2024-05-01T12:00:00.000Z"}
	]`
	update := json.RawMessage(`{"messages":` + messages + `}`)
	status, content := ts.do(t, http.MethodPut, "/api/chats/"+chatID, update, nil)
	require.Equal(t, http.StatusOK, status, string(content))

	status, content = ts.do(t, http.MethodGet, "/api/chats/user_1", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var chats []struct {
		Messages json.RawMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(content, &chats))
	require.Len(t, chats, 1)
	assert.JSONEq(t, messages, string(chats[0].Messages))

	bad := json.RawMessage(`{"messages":[{"type":"user","text":"a","timestamp":true}]}`)
	status, _ = ts.do(t, http.MethodPut, "/api/chats/"+chatID, bad, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDeleteMissingChatLeavesStoreUnchanged(t *testing.T) {
	ts := newTestServer(t, nil)
	status, chat := ts.doJSON(t, http.MethodPost, "/api/chats", map[string]string{"userId": "user_1"}, nil)
	require.Equal(t, http.StatusCreated, status)

	status, _ = ts.doJSON(t, http.MethodDelete, "/api/chats/chat_missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
	chats, err := ts.store.ListChats("user_1")
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	status, body := ts.doJSON(t, http.MethodDelete, "/api/chats/"+chat["id"].(string), nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	chats, err = ts.store.ListChats("user_1")
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestUserAPIKey(t *testing.T) {
	ts := newTestServer(t, nil)
	aliceToken := ts.login(t, "alice")
	bobToken := ts.login(t, "bob")

	status, body := ts.doJSON(t, http.MethodGet, "/api/user/alice/apikey", nil, bearer(aliceToken))
	require.Equal(t, http.StatusOK, status)
	apiKey := body["apiKey"].(string)

	status, _ = ts.doJSON(t, http.MethodGet, "/api/user/alice/apikey", nil, bearer(bobToken))
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = ts.doJSON(t, http.MethodGet, "/api/user/alice/apikey", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = ts.doJSON(t, http.MethodPost, "/api/user/alice/apikey/regenerate", nil, bearer(aliceToken))
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, apiKey, body["apiKey"])

	status, _ = ts.doJSON(t, http.MethodGet, "/api/v1/models", nil, map[string]string{"X-API-Key": apiKey})
	assert.Equal(t, http.StatusUnauthorized, status, "rotated key is revoked")
}

func TestAPIKeysMerge(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "alice")

	status, body := ts.doJSON(t, http.MethodPost, "/api/keys", map[string]string{"huggingface": "hf_1", "openrouter": "or_1"}, bearer(token))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"huggingface": "hf_1", "openrouter": "or_1"}, body)

	status, body = ts.doJSON(t, http.MethodPut, "/api/keys", map[string]string{"openrouter": ""}, bearer(token))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"huggingface": "hf_1"}, body)

	status, body = ts.doJSON(t, http.MethodGet, "/api/keys", nil, bearer(token))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"huggingface": "hf_1"}, body)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, nil)
	status, _ := ts.doJSON(t, http.MethodGet, "/api/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
