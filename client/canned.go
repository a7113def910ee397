package client

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"
)

// CannedStrategyName names the offline responder of the text chain.
const CannedStrategyName = "canned"

var (
	greetingRegexp = regexp.MustCompile(`(?i)^\s*(привет|здравствуй|доброе|добрый|hi|hello|hey)([\s!,.?]|$)`)
	helpRegexp     = regexp.MustCompile(`(?i)(помощь|помоги|что ты умеешь|help|what can you do)`)
)

var cannedTemplates = template.Must(template.New("canned").Funcs(sprig.TxtFuncMap()).Parse(`
{{- define "greeting" -}}
{{ .Greeting }}, {{ .Name | default "друг" | trim }}! Я на связи, хотя основные модели сейчас недоступны. Чем могу помочь?
{{- end -}}

{{- define "help" -}}
Вот что я умею:
{{ range $i, $feature := .Features }}{{ add1 $i }}. {{ $feature }}
{{ end }}
{{- end -}}

{{- define "unavailable" -}}
Извините, {{ .Name | default "друг" | trim }}, сейчас не удаётся получить ответ ни от одной модели. Попробуйте ещё раз через минуту.
{{- end -}}
`))

var features = []string{
	"отвечать на вопросы и писать код",
	"рисовать картинки: «нарисуй картинку с котом»",
	"дорабатывать последнюю картинку: «добавь шляпу»",
	"создавать видео: «создай видео с закатом»",
}

type cannedData struct {
	Name     string
	Greeting string
	Features []string
}

// CannedResponder answers greetings and help requests without any network call, and apologizes
// for anything else.
type CannedResponder struct {
	now func() time.Time
}

// NewCannedResponder instantiates and returns a new responder.
func NewCannedResponder(now func() time.Time) *CannedResponder {
	if now == nil {
		now = time.Now
	}
	return &CannedResponder{now: now}
}

func (r *CannedResponder) Name() string { return CannedStrategyName }

func (r *CannedResponder) Attempt(_ context.Context, req *TextRequest) (string, error) {
	name := "unavailable"
	switch {
	case greetingRegexp.MatchString(req.Prompt):
		name = "greeting"
	case helpRegexp.MatchString(req.Prompt):
		name = "help"
	}
	data := &cannedData{Name: req.UserName, Greeting: greeting(r.now()), Features: features}

	var buffer bytes.Buffer
	if err := cannedTemplates.ExecuteTemplate(&buffer, name, data); err != nil {
		return "", errors.Wrapf(err, "executing %s template", name)
	}
	return strings.TrimSpace(buffer.String()), nil
}

func greeting(t time.Time) string {
	switch hour := t.Hour(); {
	case hour >= 5 && hour < 12:
		return "Доброе утро"
	case hour >= 12 && hour < 18:
		return "Добрый день"
	case hour >= 18 && hour < 23:
		return "Добрый вечер"
	default:
		return "Доброй ночи"
	}
}
