package markdown

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

const codeBlockTemplate = `<div class="code-block"><div class="code-header"><span class="code-language">%s</span>` +
	`<button class="copy-button" type="button" data-copy="code">Copy</button></div>` +
	`<pre><code class="language-%s">%s</code></pre></div>`

// RenderHTML renders a chat message to HTML. Code-looking lines are fenced first, code blocks
// get a language label and a copy button and inline code is escaped.
func RenderHTML(text string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.HardLineBreak)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags:          mdhtml.CommonFlags | mdhtml.HrefTargetBlank | mdhtml.SkipHTML,
		RenderNodeHook: renderCode,
	})
	return string(markdown.ToHTML([]byte(WrapCode(text)), p, renderer))
}

func renderCode(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	switch n := node.(type) {
	case *ast.CodeBlock:
		language := codeLanguage(n.Info)
		label := language
		if label == "" {
			label = "code"
		}
		fmt.Fprintf(w, codeBlockTemplate,
			html.EscapeString(label),
			html.EscapeString(language),
			html.EscapeString(strings.TrimSuffix(string(n.Literal), "\n")),
		)
		return ast.GoToNext, true
	case *ast.Code:
		fmt.Fprintf(w, `<code class="inline-code">%s</code>`, html.EscapeString(string(n.Literal)))
		return ast.GoToNext, true
	}
	return ast.GoToNext, false
}

// codeLanguage returns the first word of a fence info string.
func codeLanguage(info []byte) string {
	fields := strings.Fields(string(info))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
