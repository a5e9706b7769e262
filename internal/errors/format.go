package errors

import (
	"io"
	"os"
	"strings"
)

type style string

const (
	styleReset style = "\033[0m"
	styleError style = "\033[1;31m"
	styleCode  style = "\033[1;37m"
	styleHint  style = "\033[33m"
	styleMuted style = "\033[90m"
)

// Colors reports whether Format emits ANSI escapes. It starts false when
// NO_COLOR is set in the environment.
var Colors = os.Getenv("NO_COLOR") == ""

func paint(s style, text string) string {
	if !Colors {
		return text
	}
	return string(s) + text + string(styleReset)
}

// Format returns the error laid out for a terminal: a header with the
// code, then the detail, cause and hint, each on its own indented line.
func (e *Error) Format() string {
	var b strings.Builder
	_ = e.FormatTo(&b)
	return b.String()
}

// FormatTo writes Format's output to w.
func (e *Error) FormatTo(w io.Writer) error {
	header := paint(styleError, "ERROR:") + " "
	if e.Code != "" {
		header = paint(styleError, "ERROR") + " " + paint(styleCode, e.Code+":") + " "
	}
	lines := []string{header + e.Message}

	if e.Detail != "" {
		lines = append(lines, "  "+e.Detail)
	}
	if e.Wrapped != nil {
		lines = append(lines, "  "+paint(styleMuted, "cause: "+e.Wrapped.Error()))
	}
	if e.Suggestion != "" {
		lines = append(lines, "  "+paint(styleHint, "Hint:")+" "+e.Suggestion)
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n\n")+"\n")
	return err
}
