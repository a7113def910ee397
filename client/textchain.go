package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/malonaz/multichat/internal/fallback"
	"github.com/malonaz/multichat/store"
)

const (
	PrimaryStrategyName  = "primary"
	PersonalStrategyName = "personal"
	PublicStrategyName   = "public"

	// Number of trailing chat messages sent as context.
	maxContextMessages = 20
)

// TextRequest asks for a text reply.
type TextRequest struct {
	Model    string
	Prompt   string
	History  []*store.Message
	Files    []*store.Attachment
	UserName string
}

// TextChainOpts configures the text provider chain.
type TextChainOpts struct {
	PrimaryURL    string
	PrimaryAPIKey string
	// SecondaryURL is called with the personal key returned by PersonalKey.
	SecondaryURL string
	PersonalKey  func(ctx context.Context) (string, error)
	PublicURL    string
	PublicModel  string
	// SystemPrompt is sent ahead of every completion when set.
	SystemPrompt *SystemPrompt
	HTTPClient   *http.Client
	Now          func() time.Time
	Logger       zerolog.Logger
}

// NewTextChain returns the text provider chain: the primary proxy, the personal key against the
// secondary proxy, the public endpoint and finally the canned responder. Providers without an
// endpoint are left out.
func NewTextChain(opts *TextChainOpts) *fallback.Chain[*TextRequest, string] {
	var strategies []fallback.Strategy[*TextRequest, string]
	if opts.PrimaryURL != "" {
		primaryKey := opts.PrimaryAPIKey
		strategies = append(strategies, &OpenAIStrategy{
			ID:      PrimaryStrategyName,
			BaseURL: opts.PrimaryURL,
			APIKey:  func(context.Context) (string, error) { return primaryKey, nil },
			System:  opts.SystemPrompt,
			Client:  opts.HTTPClient,
		})
	}
	if opts.SecondaryURL != "" && opts.PersonalKey != nil {
		strategies = append(strategies, &OpenAIStrategy{
			ID:          PersonalStrategyName,
			BaseURL:     opts.SecondaryURL,
			APIKey:      opts.PersonalKey,
			RequiresKey: true,
			System:      opts.SystemPrompt,
			Client:      opts.HTTPClient,
		})
	}
	if opts.PublicURL != "" {
		strategies = append(strategies, &OpenAIStrategy{
			ID:      PublicStrategyName,
			BaseURL: opts.PublicURL,
			Model:   opts.PublicModel,
			System:  opts.SystemPrompt,
			Client:  opts.HTTPClient,
		})
	}
	strategies = append(strategies, NewCannedResponder(opts.Now))
	return fallback.NewChain[*TextRequest, string](opts.Logger, strategies...)
}

// OpenAIStrategy requests a chat completion from an OpenAI-compatible endpoint.
type OpenAIStrategy struct {
	ID      string
	BaseURL string
	// APIKey is resolved on every attempt. Nil means no credential.
	APIKey      func(ctx context.Context) (string, error)
	RequiresKey bool
	// Model overrides the requested model.
	Model  string
	System *SystemPrompt
	Client *http.Client
}

func (s *OpenAIStrategy) Name() string { return s.ID }

func (s *OpenAIStrategy) Attempt(ctx context.Context, req *TextRequest) (string, error) {
	var apiKey string
	if s.APIKey != nil {
		var err error
		if apiKey, err = s.APIKey(ctx); err != nil {
			return "", errors.Wrap(err, "resolving api key")
		}
	}
	if apiKey == "" && s.RequiresKey {
		return "", errors.New("no api key available")
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimSuffix(s.BaseURL, "/")
	if s.Client != nil {
		config.HTTPClient = s.Client
	}
	model := req.Model
	if s.Model != "" {
		model = s.Model
	}

	messages := completionMessages(req)
	if s.System != nil {
		system, err := s.System.Render(req, model)
		if err != nil {
			return "", err
		}
		messages = append([]openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: system}}, messages...)
	}

	response, err := openai.NewClientWithConfig(config).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", errors.Wrapf(err, "requesting %s completion", s.ID)
	}
	if len(response.Choices) == 0 {
		return "", errors.Errorf("%s returned no choice", s.ID)
	}
	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if content == "" {
		return "", errors.Errorf("%s returned empty content", s.ID)
	}
	return content, nil
}

// completionMessages converts the chat history and the prompt into completion messages.
func completionMessages(req *TextRequest) []openai.ChatCompletionMessage {
	history := req.History
	if len(history) > maxContextMessages {
		history = history[len(history)-maxContextMessages:]
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+len(req.Files)+1)
	for _, message := range history {
		if strings.TrimSpace(message.Text) == "" {
			continue
		}
		role := openai.ChatMessageRoleUser
		if message.Type == store.MessageTypeAI {
			role = openai.ChatMessageRoleAssistant
		} else {
			messages = append(messages, fileMessages(message.Files)...)
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: message.Text})
	}
	messages = append(messages, fileMessages(req.Files)...)
	last := len(messages) - 1
	if last < 0 || messages[last].Role != openai.ChatMessageRoleUser || messages[last].Content != req.Prompt {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})
	}
	return messages
}

// fileMessages injects the content of text attachments. Other attachments are only named.
func fileMessages(files []*store.Attachment) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(files))
	for _, f := range files {
		content := fmt.Sprintf("file %s (%s, %d bytes)", f.Name, f.Type, f.Size)
		if f.Type == textContentType {
			content = fmt.Sprintf("file %s: `%s`", f.Name, f.Content)
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: content})
	}
	return messages
}
