package client

import (
	"regexp"

	"github.com/malonaz/multichat/generation"
	"github.com/malonaz/multichat/store"
)

// RequestType is the kind of response a message asks for.
type RequestType int

const (
	RequestText RequestType = iota
	RequestImage
	RequestVideo
)

func (t RequestType) String() string {
	switch t {
	case RequestImage:
		return "image"
	case RequestVideo:
		return "video"
	default:
		return "text"
	}
}

var (
	generationVerbRegexp = regexp.MustCompile(`(?i)(нарису|сгенерир|создай|создать|изобрази|сделай|сними|покажи|draw|generate|create|make|paint|render|show)`)
	videoNounRegexp      = regexp.MustCompile(`(?i)(видео|ролик|анимаци|video|clip|animation)`)
	imageNounRegexp      = regexp.MustCompile(`(?i)(картинк|изображени|рисун|фото|image|picture|drawing|photo)`)
)

// Classify decides what a message asks for. Video phrases win over image phrases, and image
// phrases need an explicit noun. A modification request right after a generated image asks for
// a new image.
func Classify(text string, history []*store.Message) RequestType {
	hasVerb := generationVerbRegexp.MatchString(text)
	switch {
	case hasVerb && videoNounRegexp.MatchString(text):
		return RequestVideo
	case hasVerb && imageNounRegexp.MatchString(text):
		return RequestImage
	case generation.IsModification(text) && lastReplyHasImage(history):
		return RequestImage
	default:
		return RequestText
	}
}

func lastReplyHasImage(history []*store.Message) bool {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Type == store.MessageTypeAI {
			return history[i].Image != ""
		}
	}
	return false
}
