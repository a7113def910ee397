package generation

import (
	"encoding/base64"
	"net/http"

	"github.com/h2non/filetype"

	"github.com/malonaz/multichat/internal/apperror"
)

// Request for an image.
type Request struct {
	Prompt string
	Width  int
	Height int
}

// Image produced by a provider.
type Image struct {
	Data        []byte
	ContentType string
	// URL the image was fetched from, empty when the provider returns bytes only.
	SourceURL string
}

// DataURL returns the image as a base64 data URL.
func (i *Image) DataURL() string {
	return "data:" + i.ContentType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// newImage sniffs the content type of data, rejecting anything that is not an image.
func newImage(data []byte, sourceURL string) (*Image, error) {
	if !filetype.IsImage(data) {
		return nil, apperror.Upstream(http.StatusBadGateway, "provider returned non-image content")
	}
	kind, err := filetype.Match(data)
	if err != nil {
		return nil, apperror.Upstream(http.StatusBadGateway, "detecting image type: %v", err)
	}
	return &Image{Data: data, ContentType: kind.MIME.Value, SourceURL: sourceURL}, nil
}
