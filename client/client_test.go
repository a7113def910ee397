package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malonaz/multichat/internal/apperror"
	"github.com/malonaz/multichat/internal/configuration"
	"github.com/malonaz/multichat/internal/file"
	"github.com/malonaz/multichat/server"
	"github.com/malonaz/multichat/store"
)

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 32)...)

type backend struct {
	*httptest.Server
	store *store.Store
	puts  atomic.Int32
}

func newBackend(t *testing.T, mutate func(config *configuration.Config)) *backend {
	t.Helper()
	config := configuration.Default()
	config.Database.Path = filepath.Join(t.TempDir(), "database.json")
	if mutate != nil {
		mutate(config)
	}
	s, err := store.Open(config.Database.Driver, config.Database.Path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	b := &backend{store: s}
	handler := server.New(config, s, zerolog.Nop()).Handler()
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			b.puts.Add(1)
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(b.Server.Close)
	return b
}

// completionServer is a fake OpenAI-compatible endpoint answering with the next reply.
type completionServer struct {
	*httptest.Server
	mu       sync.Mutex
	replies  []string
	status   int
	requests int
	prompts  []string
	systems  []string
	release  chan struct{}
	received chan struct{}
}

func newCompletionServer(t *testing.T, status int, replies ...string) *completionServer {
	c := &completionServer{status: status, replies: replies}
	c.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		request := struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}{}
		_ = json.NewDecoder(r.Body).Decode(&request)

		c.mu.Lock()
		c.requests++
		if n := len(request.Messages); n > 0 {
			c.prompts = append(c.prompts, request.Messages[n-1].Content)
			if request.Messages[0].Role == "system" {
				c.systems = append(c.systems, request.Messages[0].Content)
			}
		}
		reply := ""
		if len(c.replies) > 0 {
			reply = c.replies[0]
			c.replies = c.replies[1:]
		}
		received, release := c.received, c.release
		c.mu.Unlock()

		if received != nil {
			received <- struct{}{}
			<-release
		}
		if c.status != http.StatusOK {
			w.WriteHeader(c.status)
			w.Write([]byte(`{"error":{"message":"unavailable"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, reply)
	}))
	t.Cleanup(c.Server.Close)
	return c
}

func (c *completionServer) requestCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestClassify(t *testing.T) {
	imageHistory := []*store.Message{
		{Type: store.MessageTypeUser, Text: "нарисуй картинку кота"},
		{Type: store.MessageTypeAI, Text: "Готово", Image: "data:image/png;base64,AAAA"},
	}
	textHistory := []*store.Message{
		{Type: store.MessageTypeUser, Text: "привет"},
		{Type: store.MessageTypeAI, Text: "Здравствуйте!"},
	}
	for _, tc := range []struct {
		text     string
		history  []*store.Message
		expected RequestType
	}{
		{text: "Сгенерируй видео с закатом", expected: RequestVideo},
		{text: "создай видео и картинку", expected: RequestVideo},
		{text: "generate a video of a rocket", expected: RequestVideo},
		{text: "нарисуй картинку кота", expected: RequestImage},
		{text: "Draw a picture of a cat", expected: RequestImage},
		{text: "сделай фото заката", expected: RequestImage},
		{text: "нарисуй кота", expected: RequestText},
		{text: "что такое видео?", expected: RequestText},
		{text: "привет", expected: RequestText},
		{text: "добавь шляпу", history: imageHistory, expected: RequestImage},
		{text: "добавь шляпу", history: textHistory, expected: RequestText},
	} {
		assert.Equal(t, tc.expected, Classify(tc.text, tc.history), tc.text)
	}
}

func TestCannedResponder(t *testing.T) {
	morning := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	responder := NewCannedResponder(fixedClock(morning))

	reply, err := responder.Attempt(context.Background(), &TextRequest{Prompt: "Привет!", UserName: "Иван"})
	require.NoError(t, err)
	assert.Equal(t, "Доброе утро, Иван! Я на связи, хотя основные модели сейчас недоступны. Чем могу помочь?", reply)

	reply, err = responder.Attempt(context.Background(), &TextRequest{Prompt: "что ты умеешь?"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Вот что я умею:\n1. отвечать на вопросы")
	assert.Contains(t, reply, "4. создавать видео")

	reply, err = responder.Attempt(context.Background(), &TextRequest{Prompt: "расскажи про Go"})
	require.NoError(t, err)
	assert.Contains(t, reply, "Извините, друг,")
}

func TestTextChainFallsThrough(t *testing.T) {
	primary := newCompletionServer(t, http.StatusInternalServerError)
	public := newCompletionServer(t, http.StatusOK, "ответ публичной модели")

	chain := NewTextChain(&TextChainOpts{
		PrimaryURL:   primary.URL,
		SecondaryURL: "http://127.0.0.1:1",
		PersonalKey:  func(context.Context) (string, error) { return "", nil },
		PublicURL:    public.URL,
		PublicModel:  "openai",
		Logger:       zerolog.Nop(),
	})
	require.Equal(t, 4, chain.Len())

	reply, strategy, err := chain.Attempt(context.Background(), &TextRequest{Model: "gpt-4o-mini", Prompt: "вопрос"})
	require.NoError(t, err)
	assert.Equal(t, PublicStrategyName, strategy)
	assert.Equal(t, "ответ публичной модели", reply)
	assert.Equal(t, 1, primary.requestCount())
	assert.Equal(t, []string{"вопрос"}, public.prompts)
}

func TestTextChainEmptyContentReachesCanned(t *testing.T) {
	public := newCompletionServer(t, http.StatusOK, "   ")
	chain := NewTextChain(&TextChainOpts{PublicURL: public.URL, Logger: zerolog.Nop()})

	reply, strategy, err := chain.Attempt(context.Background(), &TextRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, CannedStrategyName, strategy)
	assert.NotEmpty(t, reply)
}

func TestCompletionMessages(t *testing.T) {
	messages := completionMessages(&TextRequest{
		Prompt: "и ещё",
		History: []*store.Message{
			{Type: store.MessageTypeUser, Text: "привет"},
			{Type: store.MessageTypeAI, Text: "Здравствуйте!"},
			{Type: store.MessageTypeAI, Image: "data:image/png;base64,AAAA"},
		},
	})
	require.Len(t, messages, 3)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "и ещё", messages[2].Content)
}

func TestAuthControllerSessionReuse(t *testing.T) {
	b := newBackend(t, nil)
	sessionPath := filepath.Join(t.TempDir(), "session.json")

	controller := NewAuthController(NewAPI(b.URL, nil), NewSessionFile(sessionPath), "", zerolog.Nop())
	_, err := controller.Bootstrap(context.Background())
	require.ErrorIs(t, err, ErrLoginRequired)

	user, err := controller.Register(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	info, err := os.Stat(sessionPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	restarted := NewAuthController(NewAPI(b.URL, nil), NewSessionFile(sessionPath), "", zerolog.Nop())
	user, err = restarted.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	require.NoError(t, restarted.Logout(context.Background()))
	_, err = os.Stat(sessionPath)
	assert.True(t, os.IsNotExist(err))

	stale := NewSessionFile(sessionPath)
	require.NoError(t, stale.Save(&Session{Token: "sess_stale"}))
	_, err = NewAuthController(NewAPI(b.URL, nil), stale, "", zerolog.Nop()).Bootstrap(context.Background())
	require.ErrorIs(t, err, ErrLoginRequired)
	session, err := stale.Load()
	require.NoError(t, err)
	assert.Nil(t, session, "rejected session is forgotten")
}

func TestAuthControllerTelegramAutoLogin(t *testing.T) {
	b := newBackend(t, nil)
	initData := `auth_date=1714564800&hash=unchecked&user=%7B%22id%22%3A42%2C%22first_name%22%3A%22Ivan%22%7D`

	controller := NewAuthController(NewAPI(b.URL, nil), NewSessionFile(filepath.Join(t.TempDir(), "session.json")), initData, zerolog.Nop())
	user, err := controller.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tg_42", user.ID)
	assert.Equal(t, "Ivan", user.FirstName)
	assert.Equal(t, user, controller.User())
}

type chatFixture struct {
	backend    *backend
	completion *completionServer
	controller *ChatController
	user       *store.User
}

func newChatFixture(t *testing.T, pollinationsURL string, replies ...string) *chatFixture {
	t.Helper()
	b := newBackend(t, func(config *configuration.Config) {
		if pollinationsURL != "" {
			config.Generation.PollinationsURL = pollinationsURL
		}
	})
	completion := newCompletionServer(t, http.StatusOK, replies...)

	api := NewAPI(b.URL, nil)
	auth := NewAuthController(api, NewSessionFile(filepath.Join(t.TempDir(), "session.json")), "", zerolog.Nop())
	user, err := auth.Register(context.Background(), "alice", "secret")
	require.NoError(t, err)

	text := NewTextChain(&TextChainOpts{PrimaryURL: completion.URL, Logger: zerolog.Nop()})
	controller := NewChatController(api, text, user, &ChatControllerOpts{Model: "gpt-4o-mini", Logger: zerolog.Nop()})
	return &chatFixture{backend: b, completion: completion, controller: controller, user: user}
}

func TestSendPersistsWholeChat(t *testing.T) {
	f := newChatFixture(t, "", "Здравствуйте!")

	reply, err := f.controller.Send(context.Background(), "привет")
	require.NoError(t, err)
	assert.Equal(t, store.MessageTypeAI, reply.Type)
	assert.Equal(t, "Здравствуйте!", reply.Text)

	chats, err := f.backend.store.ListChats(f.user.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "привет", chats[0].Title)
	require.Len(t, chats[0].Messages, 2)
	assert.Equal(t, "привет", chats[0].Messages[0].Text)
	assert.Equal(t, "Здравствуйте!", chats[0].Messages[1].Text)

	_, err = f.controller.Send(context.Background(), "   ")
	assert.Error(t, err)
}

func TestSendRejectsOverlap(t *testing.T) {
	f := newChatFixture(t, "", "первый")
	f.completion.mu.Lock()
	f.completion.received = make(chan struct{})
	f.completion.release = make(chan struct{})
	f.completion.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := f.controller.Send(context.Background(), "первый вопрос")
		done <- err
	}()
	<-f.completion.received

	_, err := f.controller.Send(context.Background(), "второй вопрос")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = f.controller.Regenerate(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(f.completion.release)
	require.NoError(t, <-done)
}

func TestSendImageStitchesFollowUp(t *testing.T) {
	var mu sync.Mutex
	var prompts []string
	pollinations := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		prompts = append(prompts, r.URL.Path)
		mu.Unlock()
		w.Write(pngBytes)
	}))
	defer pollinations.Close()
	f := newChatFixture(t, pollinations.URL)

	reply, err := f.controller.Send(context.Background(), "нарисуй картинку кота")
	require.NoError(t, err)
	assert.Contains(t, reply.Image, "data:image/png;base64,")

	reply, err = f.controller.Send(context.Background(), "добавь шляпу")
	require.NoError(t, err)
	assert.NotEmpty(t, reply.Image)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/нарисуй картинку кота", "/нарисуй картинку кота, добавь шляпу"}, prompts)
	assert.Zero(t, f.completion.requestCount())
}

func TestSendImageFailureBecomesReply(t *testing.T) {
	pollinations := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer pollinations.Close()
	f := newChatFixture(t, pollinations.URL)

	reply, err := f.controller.Send(context.Background(), "нарисуй картинку кота")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Не удалось сгенерировать изображение")
	assert.Empty(t, reply.Image)
}

func TestSwitchChatSavesOnlyNonEmptyChats(t *testing.T) {
	f := newChatFixture(t, "", "ответ")
	ctx := context.Background()

	first, err := f.controller.NewChat(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultChatTitle, first.Title)
	second, err := f.controller.NewChat(ctx, "второй")
	require.NoError(t, err)
	assert.Zero(t, f.backend.puts.Load(), "empty chats are not saved")

	_, err = f.controller.Send(ctx, "вопрос")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.backend.puts.Load())

	active, err := f.controller.SwitchChat(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
	assert.Equal(t, int32(2), f.backend.puts.Load(), "outgoing chat with messages is saved")

	active, err = f.controller.SwitchChat(ctx, second.ID)
	require.NoError(t, err)
	assert.Len(t, active.Messages, 2)
	assert.Equal(t, int32(2), f.backend.puts.Load())

	_, err = f.controller.SwitchChat(ctx, "chat_missing")
	assert.Error(t, err)
}

func TestRegenerate(t *testing.T) {
	f := newChatFixture(t, "", "ответ 1", "ответ 2")
	ctx := context.Background()

	_, err := f.controller.Regenerate(ctx)
	assert.Error(t, err)

	_, err = f.controller.Send(ctx, "вопрос")
	require.NoError(t, err)
	reply, err := f.controller.Regenerate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ответ 2", reply.Text)

	chats, err := f.backend.store.ListChats(f.user.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Len(t, chats[0].Messages, 2)
	assert.Equal(t, "вопрос", chats[0].Messages[0].Text)
	assert.Equal(t, "ответ 2", chats[0].Messages[1].Text)
}

func TestDeleteChat(t *testing.T) {
	f := newChatFixture(t, "", "ответ")
	ctx := context.Background()
	chat, err := f.controller.NewChat(ctx, "")
	require.NoError(t, err)

	require.NoError(t, f.controller.DeleteChat(ctx, chat.ID))
	assert.Nil(t, f.controller.Active())
	assert.Empty(t, f.controller.Chats())
}

func TestCompletionMessagesInjectFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main"), 0644))
	files, err := file.Read([]string{path})
	require.NoError(t, err)
	attachments, err := NewAttachments(files)
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	assert.Equal(t, "main.go", attachments[0].Name)
	assert.Equal(t, "text/plain", attachments[0].Type)
	assert.Equal(t, int64(12), attachments[0].Size)

	messages := completionMessages(&TextRequest{Prompt: "что делает этот код?", Files: attachments})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "file main.go: `package main`", messages[0].Content)
	assert.Equal(t, "что делает этот код?", messages[1].Content)
}

func TestNewAttachmentsEncodesBinary(t *testing.T) {
	attachments, err := NewAttachments([]*file.File{{Path: "/tmp/pixel.png", Content: pngBytes}})
	require.NoError(t, err)
	assert.Equal(t, "image/png", attachments[0].Type)
	assert.True(t, strings.HasPrefix(attachments[0].Content, "data:image/png;base64,"))

	_, err = NewAttachments([]*file.File{{Path: "big.txt", Content: make([]byte, MaxAttachmentBytes+1)}})
	require.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestSystemPrompt(t *testing.T) {
	now := fixedClock(time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC))
	prompt, err := NewSystemPrompt("", now)
	require.NoError(t, err)

	public := newCompletionServer(t, http.StatusOK, "ответ")
	chain := NewTextChain(&TextChainOpts{PublicURL: public.URL, PublicModel: "openai", SystemPrompt: prompt, Logger: zerolog.Nop()})
	_, strategy, err := chain.Attempt(context.Background(), &TextRequest{Prompt: "вопрос", UserName: " Иван "})
	require.NoError(t, err)
	assert.Equal(t, PublicStrategyName, strategy)
	require.Len(t, public.systems, 1)
	assert.Contains(t, public.systems[0], "на модели openai")
	assert.Contains(t, public.systems[0], "Пользователя зовут Иван.")
	assert.Contains(t, public.systems[0], "Сегодня 08.03.2026.")
	assert.Equal(t, []string{"вопрос"}, public.prompts)

	custom, err := NewSystemPrompt("Отвечай кратко, {{ .Name | default \"друг\" }}.", now)
	require.NoError(t, err)
	text, err := custom.Render(&TextRequest{}, "")
	require.NoError(t, err)
	assert.Equal(t, "Отвечай кратко, друг.", text)

	_, err = NewSystemPrompt("{{ .Name", now)
	require.Error(t, err)
}

func TestExportHTML(t *testing.T) {
	chat := &store.Chat{
		ID:        "chat_1",
		Title:     "Код <и> картинки",
		UpdatedAt: time.Date(2026, 3, 8, 12, 30, 0, 0, time.Local),
		Messages: []*store.Message{
			{Type: store.MessageTypeUser, Text: "<b>напиши</b> код", Files: []*store.Attachment{{Name: "main.go"}}},
			{Type: store.MessageTypeAI, Text: "Вот:\n\n```go\nfmt.Println(1)\n```"},
			{Type: store.MessageTypeAI, Text: "Готово", Image: "data:image/png;base64,AAAA"},
		},
	}
	var buffer strings.Builder
	require.NoError(t, ExportHTML(&buffer, chat))
	page := buffer.String()
	assert.Contains(t, page, "<title>Код &lt;и&gt; картинки</title>")
	assert.Contains(t, page, "&lt;b&gt;напиши&lt;/b&gt; код")
	assert.Contains(t, page, `<p class="file">main.go</p>`)
	assert.Contains(t, page, `<code class="language-go">fmt.Println(1)</code>`)
	assert.Contains(t, page, `src="data:image/png;base64,AAAA"`)
	assert.Contains(t, page, "08.03.2026 12:30")
}
