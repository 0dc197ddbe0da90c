package ucdriver

import (
	"regexp"
	"strings"
)

// Pattern is what a caller waits for after sending a command: either a
// literal substring or a regular expression.
type Pattern struct {
	literal string
	re      *regexp.Regexp
}

// QuestionPrompt matches an interactive question waiting for an answer,
// e.g. "Enter host IP address::" or "Continue (y/n)?".
var QuestionPrompt = Regex(`[:?]\s*$`)

func Literal(s string) Pattern {
	return Pattern{literal: s}
}

// Regex compiles expr and panics if it is invalid. Use CompilePattern for
// expressions that come from configuration.
func Regex(expr string) Pattern {
	return Pattern{re: regexp.MustCompile(expr)}
}

func CompilePattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{re: re}, nil
}

func (p Pattern) IsZero() bool {
	return p.literal == "" && p.re == nil
}

func (p Pattern) String() string {
	if p.re != nil {
		return p.re.String()
	}
	return p.literal
}

func (p Pattern) Match(text string) bool {
	return p.end(text) >= 0
}

// end returns the index just past the first match, or -1.
func (p Pattern) end(text string) int {
	if p.re != nil {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			return -1
		}
		return loc[1]
	}
	if p.literal == "" {
		return -1
	}
	i := strings.Index(text, p.literal)
	if i < 0 {
		return -1
	}
	return i + len(p.literal)
}
