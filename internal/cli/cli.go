// Package cli holds terminal input and output helpers.
package cli

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/buger/goterm"
	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
)

var (
	userColor      = color.New(color.FgWhite, color.Bold)
	aiColor        = color.New(color.FgCyan)
	systemColor    = color.New(color.FgGreen)
	errorColor     = color.New(color.FgRed)
	titleColor     = color.New(color.FgMagenta, color.Bold)
	separatorColor = color.New(color.FgHiBlack)
	promptColor    = color.New(color.FgHiBlue)

	mediaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9FAFB")).
			Background(lipgloss.Color("#7C3AED")).
			Padding(0, 1)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

// Width of the terminal.
func Width() int {
	if width := goterm.Width(); width > 0 {
		return width
	}
	return 80
}

// Separator printed to cli.
func Separator() {
	separatorColor.Println(strings.Repeat("-", Width()))
}

// Title printed to cli.
func Title(text string, args ...any) {
	width := Width()
	title := "      " + fmt.Sprintf(text, args...) + "      "
	leftWidth := (width - len([]rune(title))) / 2
	if leftWidth < 0 {
		leftWidth = 0
	}
	rightWidth := width - len([]rune(title)) - leftWidth
	if rightWidth < 0 {
		rightWidth = 0
	}
	titleColor.Println(strings.Repeat("-", leftWidth) + title + strings.Repeat("-", rightWidth))
}

// UserMessage printed to cli.
func UserMessage(text string) {
	userColor.Printf("-> %s\n", text)
}

// AIMessage printed to cli. text is printed as is, it may carry rendered markdown.
func AIMessage(text string) {
	aiColor.Println(text)
}

// System message printed to cli.
func System(text string, args ...any) {
	systemColor.Printf(text+"\n", args...)
}

// Error printed to cli.
func Error(err error) {
	errorColor.Printf("error: %v\n", err)
}

// Media prints a badge for an attached image or video.
func Media(kind, location string) {
	if len(location) > 64 {
		location = location[:61] + "..."
	}
	fmt.Println(mediaStyle.Render(kind) + " " + mutedStyle.Render(location))
}

// Muted prints secondary information.
func Muted(text string, args ...any) {
	fmt.Println(mutedStyle.Render(fmt.Sprintf(text, args...)))
}

// PromptUser for input. Ctrl+J submits a multi-line message.
func PromptUser(historyFile string) (string, error) {
	submit := false
	config := &readline.Config{
		Prompt:            promptColor.Sprint("> "),
		InterruptPrompt:   "^C",
		HistoryFile:       historyFile,
		HistorySearchFold: true,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			if r == '\x0A' { // Ctrl + J
				submit = true
			}
			return r, true
		},
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return "", err
	}
	defer rl.Close()
	var lines []string
	for {
		line, err := rl.Readline()
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
		// A single line submits right away, unless it ends with '\'.
		if submit || !strings.HasSuffix(line, "\\") {
			break
		}
		lines[len(lines)-1] = strings.TrimSuffix(line, "\\")
		rl.SetPrompt(promptColor.Sprint(". "))
	}
	return strings.Join(lines, "\n"), nil
}

// QueryUser a yes/no question.
func QueryUser(question string) bool {
	confirm := false
	survey.AskOne(&survey.Confirm{Message: question}, &confirm)
	return confirm
}

// AskCredentials prompts for a username and a password.
func AskCredentials() (string, string, error) {
	answers := struct {
		Username string
		Password string
	}{}
	questions := []*survey.Question{
		{Name: "username", Prompt: &survey.Input{Message: "Username:"}, Validate: survey.Required},
		{Name: "password", Prompt: &survey.Password{Message: "Password:"}, Validate: survey.Required},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(answers.Username), answers.Password, nil
}

// Select one of options, returning its index.
func Select(message string, options []string) (int, error) {
	index := 0
	err := survey.AskOne(&survey.Select{Message: message, Options: options}, &index)
	return index, err
}
