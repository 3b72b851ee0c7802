package feed

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultSoldPatterns are checked in order against the tail of a post body.
var DefaultSoldPatterns = []string{
	`sold\s*out`,
	`all\s*gone`,
	`gone\s*in\s*a\s*flash`,
	`these\s+are\s+sold\s+out`,
	`thank\s+you`,
}

// tailLines is the number of trailing non-empty lines inspected. Sale
// announcements are appended at the end of a post.
const tailLines = 2

type Classifier struct {
	patterns []*regexp.Regexp
}

func NewClassifier(patterns []string) (*Classifier, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for i, pattern := range patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid sold pattern at index %d: %w", i, err)
		}
		compiled = append(compiled, re)
	}
	return &Classifier{patterns: compiled}, nil
}

// IsSold reports whether any pattern matches the last two non-empty lines
// of text.
func (c *Classifier) IsSold(text string) bool {
	tail := strings.ToLower(strings.Join(lastLines(norm.NFKC.String(text), tailLines), " "))
	if tail == "" {
		return false
	}

	for _, re := range c.patterns {
		if re.MatchString(tail) {
			return true
		}
	}
	return false
}

func lastLines(text string, n int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
