package cli

import (
	"strconv"
	"strings"
)

const helpText = `Commands:
  /new [title]    start a new chat
  /chats          list chats
  /switch [n]     switch to chat n, or pick one
  /delete         delete the active chat
  /regen          regenerate the last reply
  /copy [n]       copy code block n of the last reply
  /attach <path>  attach files to the next message, 'dir/...' recurses
  /export [path]  save the active chat as an HTML page
  /apikey [new]   show or regenerate your API key
  /logout         forget the session
  /quit           exit`

// command is a parsed slash command.
type command struct {
	name string
	arg  string
}

// parseCommand parses a '/name arg' line. ok is false for regular messages.
func parseCommand(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || strings.HasPrefix(line, "//") {
		return command{}, false
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

// index parses a 1-based index argument, defaulting to 1.
func (c command) index(count int) (int, bool) {
	if c.arg == "" {
		return 0, count > 0
	}
	n, err := strconv.Atoi(c.arg)
	if err != nil || n < 1 || n > count {
		return 0, false
	}
	return n - 1, true
}
