package markdown

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/pkg/errors"
)

// Renderer renders messages for a terminal.
type Renderer struct {
	mu       sync.Mutex
	glamour  *glamour.TermRenderer
	width    int
	rendered map[string]string
}

// NewRenderer creates a renderer wrapping text at width.
func NewRenderer(width int) (*Renderer, error) {
	gr, err := glamour.NewTermRenderer(
		glamour.WithStyles(customStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating glamour renderer")
	}
	return &Renderer{glamour: gr, width: width, rendered: map[string]string{}}, nil
}

// Render renders a message. Code-looking lines are fenced before rendering. Results are
// cached by content.
func (r *Renderer) Render(content string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rendered, ok := r.rendered[content]; ok {
		return rendered
	}

	blocks := ParseBlocks(content)
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		parts = append(parts, r.renderBlock(block.Markdown()))
	}
	rendered := strings.Join(parts, "\n")
	r.rendered[content] = rendered
	return rendered
}

// SetWidth updates the wrapping width, recreating the renderer if needed.
func (r *Renderer) SetWidth(width int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.width == width {
		return nil
	}
	gr, err := glamour.NewTermRenderer(
		glamour.WithStyles(customStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return errors.Wrap(err, "creating glamour renderer")
	}
	r.glamour = gr
	r.width = width
	r.rendered = map[string]string{}
	return nil
}

func (r *Renderer) renderBlock(content string) string {
	rendered, err := r.glamour.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n")
}

// customStyle returns the dracula style without margins.
func customStyle() ansi.StyleConfig {
	style := styles.DraculaStyleConfig
	zero := uint(0)
	style.Document.Margin = &zero
	style.CodeBlock.Margin = &zero
	style.Code.Prefix = ""
	style.Code.Suffix = ""
	style.Paragraph.BlockPrefix = ""
	style.Paragraph.BlockSuffix = ""
	return style
}
