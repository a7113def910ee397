// Package generation produces images and video placeholders from prompts, stitching follow-up
// prompts onto the previous generation request of a chat.
package generation

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/scylladb/go-set/strset"

	"github.com/malonaz/multichat/internal/apperror"
	"github.com/malonaz/multichat/internal/fallback"
	"github.com/malonaz/multichat/store"
)

const (
	ProviderPollinations    = "pollinations"
	ProviderStableDiffusion = "stable-diffusion"

	videoWidth  = 1280
	videoHeight = 720

	// VideoPlaceholderMessage tells users a still frame stands in for the video.
	VideoPlaceholderMessage = "Генерация видео пока недоступна: показан кинематографичный кадр по вашему запросу."
)

// Requested provider names served by Stable Diffusion.
var stableDiffusionAliases = strset.New("huggingface", "stable-diffusion", "stablediffusion", "sd")

// Opts for the service.
type Opts struct {
	PollinationsURL    string
	StableDiffusionURL string
	Width              int
	Height             int
	HistoryWindow      int
	HTTPClient         *http.Client
	Logger             zerolog.Logger
}

// Service generates images.
type Service struct {
	store           *store.Store
	pollinations    *Pollinations
	stableDiffusion *StableDiffusion
	opts            *Opts
	log             zerolog.Logger
}

// NewService instantiates and returns a new service.
func NewService(s *store.Store, opts *Opts) *Service {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	huggingFaceKey := func() (string, error) {
		keys, err := s.GetAPIKeys()
		if err != nil {
			return "", err
		}
		return keys[store.APIKeyHuggingFace], nil
	}
	return &Service{
		store:           s,
		pollinations:    NewPollinations(opts.PollinationsURL, client),
		stableDiffusion: NewStableDiffusion(opts.StableDiffusionURL, client, huggingFaceKey),
		opts:            opts,
		log:             opts.Logger,
	}
}

// ImageRequest is a request to generate an image.
type ImageRequest struct {
	Prompt   string `json:"prompt"`
	ChatID   string `json:"chatId,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// ImageResult is a generated image.
type ImageResult struct {
	Success        bool   `json:"success"`
	ImageURL       string `json:"imageUrl"`
	Prompt         string `json:"prompt"`
	OriginalPrompt string `json:"originalPrompt"`
	Provider       string `json:"provider"`
}

// VideoResult is a generated video placeholder.
type VideoResult struct {
	Success       bool   `json:"success"`
	VideoURL      string `json:"videoUrl"`
	ImageURL      string `json:"imageUrl"`
	Prompt        string `json:"prompt"`
	Provider      string `json:"provider"`
	IsPlaceholder bool   `json:"isPlaceholder"`
	Message       string `json:"message"`
}

// GenerateImage generates an image. A requested Stable Diffusion provider falls back to
// Pollinations on failure.
func (s *Service) GenerateImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, apperror.Validation("prompt is required")
	}
	effectivePrompt := s.stitch(req.ChatID, req.UserID, prompt)

	image, provider, err := s.chain(req.Provider).Attempt(ctx, &Request{
		Prompt: effectivePrompt,
		Width:  s.opts.Width,
		Height: s.opts.Height,
	})
	if err != nil {
		return nil, errors.Wrap(err, "generating image")
	}
	s.log.Info().Str("provider", provider).Str("prompt", effectivePrompt).Msg("image generated")
	return &ImageResult{
		Success:        true,
		ImageURL:       image.DataURL(),
		Prompt:         effectivePrompt,
		OriginalPrompt: prompt,
		Provider:       provider,
	}, nil
}

// GenerateVideo produces a single cinematic still standing in for a video.
func (s *Service) GenerateVideo(ctx context.Context, req *ImageRequest) (*VideoResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, apperror.Validation("prompt is required")
	}
	effectivePrompt := s.stitch(req.ChatID, req.UserID, prompt)

	image, err := s.pollinations.Attempt(ctx, videoRequest(effectivePrompt))
	if err != nil {
		return nil, errors.Wrap(err, "generating video frame")
	}
	return &VideoResult{
		Success:       true,
		VideoURL:      s.VideoURL(effectivePrompt),
		ImageURL:      image.DataURL(),
		Prompt:        effectivePrompt,
		Provider:      ProviderPollinations,
		IsPlaceholder: true,
		Message:       VideoPlaceholderMessage,
	}, nil
}

// VideoURL returns a direct provider URL for a video placeholder, without fetching it.
func (s *Service) VideoURL(prompt string) string {
	return s.pollinations.URL(videoRequest(prompt))
}

func videoRequest(prompt string) *Request {
	return &Request{
		Prompt: fmt.Sprintf("cinematic shot, %s, dramatic lighting, film still, 16:9", prompt),
		Width:  videoWidth,
		Height: videoHeight,
	}
}

func (s *Service) chain(provider string) *fallback.Chain[*Request, *Image] {
	if stableDiffusionAliases.Has(strings.ToLower(provider)) {
		return fallback.NewChain[*Request, *Image](s.log, s.stableDiffusion, s.pollinations)
	}
	return fallback.NewChain[*Request, *Image](s.log, s.pollinations)
}

// stitch applies context stitching with the history of a chat owned by userID.
func (s *Service) stitch(chatID, userID, prompt string) string {
	if chatID == "" {
		return prompt
	}
	chat, err := s.store.GetChat(chatID)
	if err != nil {
		if !apperror.Is(err, apperror.KindNotFound) {
			s.log.Warn().Err(err).Str("chat_id", chatID).Msg("loading chat history")
		}
		return prompt
	}
	if userID != "" && chat.UserID != userID {
		return prompt
	}
	stitched := StitchPrompt(chat.Messages, s.opts.HistoryWindow, prompt)
	if stitched != prompt {
		s.log.Debug().Str("chat_id", chatID).Str("prompt", stitched).Msg("stitched prompt with chat history")
	}
	return stitched
}
