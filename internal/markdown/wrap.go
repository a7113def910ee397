package markdown

import (
	"regexp"
	"strings"
)

// Minimum number of contiguous code-looking lines wrapped in a fence.
const minCodeLines = 2

var (
	codeKeywordRegexp    = regexp.MustCompile(`^(def|class|function|const|let|var|import|from|return|elif|else|for|while|package|func|type|public|private|static|async|await|try|except|catch|switch|case)\b`)
	codeAssignmentRegexp = regexp.MustCompile(`^[A-Za-z_][\w.\[\]]*\s*(=|\+=|-=|:=)\s*\S`)
	codeCallRegexp       = regexp.MustCompile(`^[A-Za-z_][\w.]*\(.*\)\s*;?$`)
	codeSymbols          = []string{"=>", "();", "==", "!=", "&&", "||", "->", "#include"}

	pythonRegexp     = regexp.MustCompile(`(?m)^\s*(def |elif |from \S+ import|print\(|class \w+(\(.*\))?:)`)
	goRegexp         = regexp.MustCompile(`(?m)(^\s*(package |func )|:=)`)
	javascriptRegexp = regexp.MustCompile(`(?m)(function|^\s*(const|let|var) |=>|console\.)`)
	cRegexp          = regexp.MustCompile(`(?m)^\s*#include`)
	sqlRegexp        = regexp.MustCompile(`(?im)^\s*(select|insert|update|create|delete)\s`)
)

// WrapCode wraps runs of code-looking lines that sit outside fenced blocks in fences, guessing
// their language. Text already inside fences is left as is.
func WrapCode(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	var run []string
	inFence := false

	flush := func() {
		trailing := 0
		for len(run) > 0 && strings.TrimSpace(run[len(run)-1]) == "" {
			run = run[:len(run)-1]
			trailing++
		}
		if len(run) >= minCodeLines {
			out = append(out, "```"+guessLanguage(run))
			out = append(out, run...)
			out = append(out, "```")
		} else {
			out = append(out, run...)
		}
		for ; trailing > 0; trailing-- {
			out = append(out, "")
		}
		run = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "```"):
			flush()
			inFence = !inFence
			out = append(out, line)
		case inFence:
			out = append(out, line)
		case looksLikeCode(line, len(run) > 0):
			run = append(run, line)
		case trimmed == "" && len(run) > 0:
			run = append(run, line)
		default:
			flush()
			out = append(out, line)
		}
	}
	flush()
	return strings.Join(out, "\n")
}

// looksLikeCode reports whether a line reads as source code. Indented lines count as code
// when they continue a run.
func looksLikeCode(line string, continuing bool) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if continuing && (strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")) {
		return true
	}
	switch trimmed {
	case "}", ")", "]", "};", "});", "end":
		return true
	}
	if strings.HasSuffix(trimmed, "{") || strings.HasSuffix(trimmed, ";") || strings.HasPrefix(trimmed, "//") {
		return true
	}
	if codeKeywordRegexp.MatchString(trimmed) || codeAssignmentRegexp.MatchString(trimmed) || codeCallRegexp.MatchString(trimmed) {
		return true
	}
	for _, symbol := range codeSymbols {
		if strings.Contains(trimmed, symbol) {
			return true
		}
	}
	return false
}

func guessLanguage(lines []string) string {
	code := strings.Join(lines, "\n")
	switch {
	case cRegexp.MatchString(code):
		return "c"
	case pythonRegexp.MatchString(code):
		return "python"
	case goRegexp.MatchString(code):
		return "go"
	case javascriptRegexp.MatchString(code):
		return "javascript"
	case sqlRegexp.MatchString(code):
		return "sql"
	default:
		return ""
	}
}
