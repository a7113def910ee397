package generation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/malonaz/multichat/store"
)

func userMessage(text string) *store.Message {
	return &store.Message{Type: store.MessageTypeUser, Text: text}
}

func aiMessage(text string) *store.Message {
	return &store.Message{Type: store.MessageTypeAI, Text: text}
}

func TestStitchPrompt(t *testing.T) {
	history := []*store.Message{
		userMessage("нарисуй кота"),
		aiMessage("Вот изображение"),
	}
	assert.Equal(t, "нарисуй кота, добавь шляпу", StitchPrompt(history, 10, "добавь шляпу"))
}

func TestStitchPromptUsesMostRecent(t *testing.T) {
	history := []*store.Message{
		userMessage("нарисуй кота"),
		aiMessage("готово"),
		userMessage("Сгенерируй собаку на пляже"),
		aiMessage("готово"),
		userMessage("спасибо"),
	}
	assert.Equal(t, "Сгенерируй собаку на пляже, УБЕРИ пляж", StitchPrompt(history, 10, "УБЕРИ пляж"))
}

func TestStitchPromptIgnoresOtherPrompts(t *testing.T) {
	history := []*store.Message{userMessage("нарисуй кота")}
	assert.Equal(t, "собака в космосе", StitchPrompt(history, 10, "собака в космосе"))
	assert.Equal(t, "добавь шляпу", StitchPrompt(nil, 10, "добавь шляпу"))
}

func TestStitchPromptWindow(t *testing.T) {
	history := []*store.Message{userMessage("нарисуй кота")}
	for i := 0; i < 10; i++ {
		history = append(history, aiMessage(fmt.Sprint(i)))
	}
	assert.Equal(t, "добавь шляпу", StitchPrompt(history, 10, "добавь шляпу"))
	assert.Equal(t, "нарисуй кота, добавь шляпу", StitchPrompt(history, 11, "добавь шляпу"))
}

func TestPriorPromptSkipsAIAndCurrent(t *testing.T) {
	history := []*store.Message{
		userMessage("draw a red car"),
		aiMessage("Here is your image"),
		userMessage("сделай её синей"),
	}
	prior, ok := PriorPrompt(history, 10, "сделай её синей")
	assert.True(t, ok)
	assert.Equal(t, "draw a red car", prior)
}
