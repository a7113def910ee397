package client

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"
)

//go:embed system_prompt.tmpl
var defaultSystemPrompt string

// SystemPrompt renders the system message sent ahead of every completion.
type SystemPrompt struct {
	template *template.Template
	now      func() time.Time
}

type systemPromptData struct {
	Name  string
	Model string
	Now   time.Time
}

// NewSystemPrompt parses text as a template. An empty text selects the default prompt.
func NewSystemPrompt(text string, now func() time.Time) (*SystemPrompt, error) {
	if strings.TrimSpace(text) == "" {
		text = defaultSystemPrompt
	}
	if now == nil {
		now = time.Now
	}
	tmpl, err := template.New("system_prompt").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "parsing system prompt template")
	}
	return &SystemPrompt{template: tmpl, now: now}, nil
}

// Render the prompt for req.
func (p *SystemPrompt) Render(req *TextRequest, model string) (string, error) {
	data := &systemPromptData{Name: req.UserName, Model: model, Now: p.now()}
	var buffer bytes.Buffer
	if err := p.template.Execute(&buffer, data); err != nil {
		return "", errors.Wrap(err, "executing system prompt template")
	}
	return strings.TrimSpace(buffer.String()), nil
}
