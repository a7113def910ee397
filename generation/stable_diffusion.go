package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/malonaz/multichat/internal/apperror"
)

// StableDiffusion generates images through a Hugging Face inference endpoint.
type StableDiffusion struct {
	endpoint string
	client   *http.Client
	// apiKey is resolved on every attempt so that key updates apply immediately.
	apiKey func() (string, error)
}

// NewStableDiffusion instantiates and returns a new provider.
func NewStableDiffusion(endpoint string, client *http.Client, apiKey func() (string, error)) *StableDiffusion {
	return &StableDiffusion{endpoint: endpoint, client: client, apiKey: apiKey}
}

func (p *StableDiffusion) Name() string { return ProviderStableDiffusion }

type stableDiffusionRequest struct {
	Inputs     string                     `json:"inputs"`
	Parameters *stableDiffusionParameters `json:"parameters,omitempty"`
}

type stableDiffusionParameters struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

func (p *StableDiffusion) Attempt(ctx context.Context, req *Request) (*Image, error) {
	apiKey, err := p.apiKey()
	if err != nil {
		return nil, errors.Wrap(err, "resolving huggingface key")
	}
	if apiKey == "" {
		return nil, apperror.Upstream(http.StatusUnauthorized, "no huggingface key configured")
	}

	body, err := json.Marshal(&stableDiffusionRequest{
		Inputs:     req.Prompt,
		Parameters: &stableDiffusionParameters{Width: req.Width, Height: req.Height},
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshaling request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, apperror.Internal(err, "requesting stable diffusion")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.Upstream(resp.StatusCode, "stable diffusion returned %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, apperror.Internal(err, "reading stable diffusion response")
	}
	return newImage(data, "")
}
