package client

import (
	"html/template"
	"io"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"

	"github.com/malonaz/multichat/internal/markdown"
	"github.com/malonaz/multichat/store"
)

var exportTemplate = template.Must(template.New("export").Funcs(sprig.FuncMap()).Funcs(template.FuncMap{
	"markdown": func(text string) template.HTML { return template.HTML(markdown.RenderHTML(text)) },
	"media":    func(url string) template.URL { return template.URL(url) },
}).Parse(`<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
</head>
<body>
<h1>{{ .Title }}</h1>
<p class="meta">{{ .Model | default "default model" }}, {{ .UpdatedAt | date "02.01.2006 15:04" }}</p>
{{- range .Messages }}
<div class="message {{ .Type }}">
{{- if eq .Type "user" }}
<p>{{ .Text }}</p>
{{- range .Files }}
<p class="file">{{ .Name }}</p>
{{- end }}
{{- else }}
{{ markdown .Text }}
{{- end }}
{{- with .Image }}
<img src="{{ media . }}" alt="">
{{- end }}
{{- with .Video }}
<video src="{{ media . }}" controls></video>
{{- end }}
</div>
{{- end }}
</body>
</html>
`))

// ExportHTML writes chat as a standalone HTML page. Replies are rendered from markdown, user
// messages are escaped.
func ExportHTML(w io.Writer, chat *store.Chat) error {
	if err := exportTemplate.Execute(w, chat); err != nil {
		return errors.Wrap(err, "executing export template")
	}
	return nil
}
