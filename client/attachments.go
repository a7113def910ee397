package client

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/h2non/filetype"

	"github.com/malonaz/multichat/internal/apperror"
	"github.com/malonaz/multichat/internal/file"
	"github.com/malonaz/multichat/store"
)

const (
	// MaxAttachmentBytes is the largest file accepted as an attachment.
	MaxAttachmentBytes = 1 << 20
	textContentType    = "text/plain"
	binaryContentType  = "application/octet-stream"
)

// NewAttachments converts files read from disk into message attachments. Text files are kept
// as is, anything else becomes a data URL.
func NewAttachments(files []*file.File) ([]*store.Attachment, error) {
	attachments := make([]*store.Attachment, 0, len(files))
	for _, f := range files {
		if len(f.Content) > MaxAttachmentBytes {
			return nil, apperror.Validation("%s is larger than %d bytes", f.Path, MaxAttachmentBytes)
		}
		attachment := &store.Attachment{
			Name: filepath.Base(f.Path),
			Type: contentType(f.Content),
			Size: int64(len(f.Content)),
		}
		if attachment.Type == textContentType {
			attachment.Content = string(f.Content)
		} else {
			attachment.Content = fmt.Sprintf("data:%s;base64,%s", attachment.Type, base64.StdEncoding.EncodeToString(f.Content))
		}
		attachments = append(attachments, attachment)
	}
	return attachments, nil
}

func contentType(content []byte) string {
	if kind, err := filetype.Match(content); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	if utf8.Valid(content) {
		return textContentType
	}
	return binaryContentType
}
