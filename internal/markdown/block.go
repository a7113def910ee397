package markdown

import (
	"regexp"
	"strings"
)

// Group 1 is the fence info, group 2 the code.
var fencedBlockRegexp = regexp.MustCompile("(?sm)^```([^\\n`]*)\\n(.*?)^```[ \\t]*$")

// Block is a segment of a message.
type Block interface {
	// Markdown returns the block as markdown source.
	Markdown() string
	Content() string
	// Extension returns a file extension for the content.
	Extension() string
}

// TextBlock is prose.
type TextBlock struct {
	Text string
}

func (b *TextBlock) Markdown() string  { return b.Text }
func (b *TextBlock) Content() string   { return b.Text }
func (b *TextBlock) Extension() string { return "txt" }

// CodeBlock is a fenced code block.
type CodeBlock struct {
	Language string
	Code     string
}

func (b *CodeBlock) Markdown() string {
	return "```" + b.Language + "\n" + b.Code + "\n```"
}

func (b *CodeBlock) Content() string { return b.Code }

func (b *CodeBlock) Extension() string {
	if b.Language == "" {
		return "txt"
	}
	return b.Language
}

// ParseBlocks splits a message into text and code blocks. Code-looking lines outside fences
// are detected with WrapCode first.
func ParseBlocks(content string) []Block {
	content = WrapCode(content)
	var blocks []Block
	appendText := func(text string) {
		if strings.TrimSpace(text) != "" {
			blocks = append(blocks, &TextBlock{Text: text})
		}
	}

	lastEnd := 0
	for _, match := range fencedBlockRegexp.FindAllStringSubmatchIndex(content, -1) {
		appendText(content[lastEnd:match[0]])
		blocks = append(blocks, &CodeBlock{
			Language: codeLanguage([]byte(content[match[2]:match[3]])),
			Code:     strings.Trim(content[match[4]:match[5]], "\n"),
		})
		lastEnd = match[1]
	}
	appendText(content[lastEnd:])
	return blocks
}

// CodeBlocks returns the code blocks of a message, in order.
func CodeBlocks(content string) []*CodeBlock {
	var codeBlocks []*CodeBlock
	for _, block := range ParseBlocks(content) {
		if codeBlock, ok := block.(*CodeBlock); ok {
			codeBlocks = append(codeBlocks, codeBlock)
		}
	}
	return codeBlocks
}
