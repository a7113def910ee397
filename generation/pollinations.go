package generation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/malonaz/multichat/internal/apperror"
)

const maxImageBytes = 20 << 20

// Pollinations generates images through a GET on '<base>/<prompt>'.
type Pollinations struct {
	baseURL string
	client  *http.Client
}

// NewPollinations instantiates and returns a new provider.
func NewPollinations(baseURL string, client *http.Client) *Pollinations {
	return &Pollinations{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (p *Pollinations) Name() string { return ProviderPollinations }

// URL returns the address serving the image for a request.
func (p *Pollinations) URL(req *Request) string {
	query := url.Values{}
	if req.Width > 0 {
		query.Set("width", fmt.Sprint(req.Width))
	}
	if req.Height > 0 {
		query.Set("height", fmt.Sprint(req.Height))
	}
	query.Set("nologo", "true")
	return p.baseURL + "/" + url.PathEscape(req.Prompt) + "?" + query.Encode()
}

func (p *Pollinations) Attempt(ctx context.Context, req *Request) (*Image, error) {
	imageURL := p.URL(req)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, apperror.Internal(err, "requesting pollinations")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.Upstream(resp.StatusCode, "pollinations returned %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, apperror.Internal(err, "reading pollinations response")
	}
	return newImage(data, imageURL)
}
