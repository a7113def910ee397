package generation

import (
	"regexp"
	"strings"

	"github.com/malonaz/multichat/store"
)

// DefaultHistoryWindow is the number of trailing chat messages scanned for a prior prompt.
const DefaultHistoryWindow = 10

var (
	generationTriggerRegexp = regexp.MustCompile(`(?i)(нарису|сгенерир|создай|изобрази|картин|изображени|рисун|draw|generate|paint|picture|image)`)
	modificationRegexp      = regexp.MustCompile(`(?i)(оставь|убери|добавь|измени|сделай|только|без)`)
)

// IsModification reports whether a prompt asks to change a previous generation.
func IsModification(prompt string) bool {
	return modificationRegexp.MatchString(prompt)
}

// IsGenerationPrompt reports whether a message text asked for a generation.
func IsGenerationPrompt(text string) bool {
	return generationTriggerRegexp.MatchString(text)
}

// PriorPrompt returns the most recent user message among the last window messages that asked
// for a generation, skipping messages equal to exclude.
func PriorPrompt(messages []*store.Message, window int, exclude string) (string, bool) {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	start := len(messages) - window
	if start < 0 {
		start = 0
	}
	exclude = strings.TrimSpace(exclude)
	for i := len(messages) - 1; i >= start; i-- {
		message := messages[i]
		if message == nil || message.Type != store.MessageTypeUser {
			continue
		}
		text := strings.TrimSpace(message.Text)
		if text == "" || text == exclude {
			continue
		}
		if IsGenerationPrompt(text) {
			return text, true
		}
	}
	return "", false
}

// StitchPrompt joins a modification prompt to the prior generation prompt of the history.
// Other prompts are returned unchanged.
func StitchPrompt(messages []*store.Message, window int, prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if !IsModification(prompt) {
		return prompt
	}
	prior, ok := PriorPrompt(messages, window, prompt)
	if !ok {
		return prompt
	}
	return prior + ", " + prompt
}
