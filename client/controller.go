package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/malonaz/multichat/generation"
	"github.com/malonaz/multichat/internal/apperror"
	"github.com/malonaz/multichat/internal/fallback"
	"github.com/malonaz/multichat/store"
)

const (
	// DefaultChatTitle is the title of a chat until its first message names it.
	DefaultChatTitle = "Новый чат"
	maxTitleRunes    = 40
)

// ErrBusy is returned when a message is sent while a reply is still being produced.
var ErrBusy = errors.New("a reply is already in progress")

// ChatController holds the chat state of a user and produces replies.
type ChatController struct {
	api   *API
	text  *fallback.Chain[*TextRequest, string]
	user  *store.User
	model string
	log   zerolog.Logger
	now   func() time.Time

	mu     sync.Mutex
	typing bool
	chats  []*store.Chat
	active *store.Chat
}

// ChatControllerOpts configures a chat controller.
type ChatControllerOpts struct {
	Model  string
	Logger zerolog.Logger
	Now    func() time.Time
}

// NewChatController instantiates and returns a new controller for user.
func NewChatController(api *API, text *fallback.Chain[*TextRequest, string], user *store.User, opts *ChatControllerOpts) *ChatController {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ChatController{api: api, text: text, user: user, model: opts.Model, log: opts.Logger, now: now}
}

// LoadChats refreshes the chat list.
func (c *ChatController) LoadChats(ctx context.Context) ([]*store.Chat, error) {
	chats, err := c.api.ListChats(ctx, c.user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "listing chats")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = chats
	return chats, nil
}

// Chats returns the loaded chats.
func (c *ChatController) Chats() []*store.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chats
}

// Active returns the active chat, nil if none.
func (c *ChatController) Active() *store.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// NewChat saves the outgoing chat if it has messages, then creates and activates a new one.
func (c *ChatController) NewChat(ctx context.Context, title string) (*store.Chat, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()
	if err := c.saveOutgoing(ctx); err != nil {
		return nil, err
	}
	return c.createChat(ctx, title)
}

// SwitchChat saves the outgoing chat if it has messages, then loads and activates chatID.
func (c *ChatController) SwitchChat(ctx context.Context, chatID string) (*store.Chat, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()
	if err := c.saveOutgoing(ctx); err != nil {
		return nil, err
	}

	chats, err := c.api.ListChats(ctx, c.user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "listing chats")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = chats
	for _, chat := range chats {
		if chat.ID == chatID {
			c.active = chat
			return chat, nil
		}
	}
	return nil, apperror.NotFound("chat %s not found", chatID)
}

// DeleteChat deletes a chat, deactivating it if active.
func (c *ChatController) DeleteChat(ctx context.Context, chatID string) error {
	if err := c.api.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active.ID == chatID {
		c.active = nil
	}
	for i, chat := range c.chats {
		if chat.ID == chatID {
			c.chats = append(c.chats[:i], c.chats[i+1:]...)
			break
		}
	}
	return nil
}

// Send appends a user message to the active chat, creating one if needed, produces the reply
// and saves the whole chat. Overlapping calls fail with ErrBusy.
func (c *ChatController) Send(ctx context.Context, text string, files ...*store.Attachment) (*store.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(files) == 0 {
		return nil, apperror.Validation("message is empty")
	}
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	chat := c.Active()
	if chat == nil {
		var err error
		if chat, err = c.createChat(ctx, ""); err != nil {
			return nil, err
		}
	}
	if title := chatTitle(text); title != "" && len(chat.Messages) == 0 && (chat.Title == "" || chat.Title == DefaultChatTitle) {
		chat.Title = title
	}

	history := chat.Messages
	chat.Messages = append(chat.Messages, &store.Message{
		Type:      store.MessageTypeUser,
		Text:      text,
		Files:     files,
		Timestamp: store.NewTimestamp(c.timestamp()),
	})
	reply, err := c.reply(ctx, chat, text, files, history)
	if err != nil {
		chat.Messages = history
		return nil, err
	}
	chat.Messages = append(chat.Messages, reply)
	return reply, c.save(ctx, chat)
}

// Regenerate replaces the last reply of the active chat with a new one for the same message.
func (c *ChatController) Regenerate(ctx context.Context) (*store.Message, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	chat := c.Active()
	if chat == nil {
		return nil, apperror.Validation("no active chat")
	}
	messages := chat.Messages
	if n := len(messages); n > 0 && messages[n-1].Type == store.MessageTypeAI {
		messages = messages[:n-1]
	}
	n := len(messages)
	if n == 0 || messages[n-1].Type != store.MessageTypeUser {
		return nil, apperror.Validation("nothing to regenerate")
	}

	prompt := messages[n-1].Text
	reply, err := c.reply(ctx, chat, prompt, messages[n-1].Files, messages[:n-1])
	if err != nil {
		return nil, err
	}
	chat.Messages = append(messages[:n:n], reply)
	return reply, c.save(ctx, chat)
}

// reply produces the answer to prompt. Generation failures become an error reply so that the
// conversation carries on.
func (c *ChatController) reply(ctx context.Context, chat *store.Chat, prompt string, files []*store.Attachment, history []*store.Message) (*store.Message, error) {
	reply := &store.Message{Type: store.MessageTypeAI}
	request := &generation.ImageRequest{Prompt: prompt, ChatID: chat.ID, UserID: c.user.ID}

	switch requestType := Classify(prompt, history); requestType {
	case RequestVideo:
		result, err := c.api.GenerateVideo(ctx, request)
		if err != nil {
			reply.Text = generationFailure("видео", err)
			break
		}
		reply.Text = result.Message
		reply.Image = result.ImageURL
		reply.Video = result.VideoURL
	case RequestImage:
		result, err := c.api.GenerateImage(ctx, request)
		if err != nil {
			reply.Text = generationFailure("изображение", err)
			break
		}
		reply.Text = fmt.Sprintf("Изображение по запросу «%s»", result.Prompt)
		reply.Image = result.ImageURL
	default:
		text, strategy, err := c.text.Attempt(ctx, &TextRequest{
			Model:    c.modelFor(chat),
			Prompt:   prompt,
			History:  history,
			Files:    files,
			UserName: c.user.FirstName,
		})
		if err != nil {
			return nil, errors.Wrap(err, "producing reply")
		}
		c.log.Debug().Str("strategy", strategy).Str("chat_id", chat.ID).Msg("text reply")
		reply.Text = text
	}
	reply.Timestamp = store.NewTimestamp(c.timestamp())
	return reply, nil
}

func (c *ChatController) modelFor(chat *store.Chat) string {
	if chat.Model != "" {
		return chat.Model
	}
	return c.model
}

func (c *ChatController) createChat(ctx context.Context, title string) (*store.Chat, error) {
	if title == "" {
		title = DefaultChatTitle
	}
	chat, err := c.api.CreateChat(ctx, c.user.ID, title, c.model)
	if err != nil {
		return nil, errors.Wrap(err, "creating chat")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = append(c.chats, chat)
	c.active = chat
	return chat, nil
}

// saveOutgoing saves the active chat if it has messages.
func (c *ChatController) saveOutgoing(ctx context.Context) error {
	chat := c.Active()
	if chat == nil || len(chat.Messages) == 0 {
		return nil
	}
	return c.save(ctx, chat)
}

func (c *ChatController) save(ctx context.Context, chat *store.Chat) error {
	saved, err := c.api.SaveChat(ctx, chat)
	if err != nil {
		return errors.Wrap(err, "saving chat")
	}
	chat.UpdatedAt = saved.UpdatedAt
	return nil
}

func (c *ChatController) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.typing {
		return ErrBusy
	}
	c.typing = true
	return nil
}

func (c *ChatController) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing = false
}

func (c *ChatController) timestamp() time.Time {
	return c.now().UTC().Truncate(time.Millisecond)
}

func chatTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= maxTitleRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxTitleRunes]) + "…"
}

func generationFailure(kind string, err error) string {
	message := err.Error()
	if appErr := apperror.From(err); appErr.Kind != apperror.KindInternal {
		message = appErr.Message
	}
	return fmt.Sprintf("Не удалось сгенерировать %s: %s", kind, message)
}
