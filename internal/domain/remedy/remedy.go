// Package remedy holds the textual transformations behind safe fixes. Every
// function is pure: it takes file content and returns new content.
package remedy

import (
	"regexp"
	"strings"
)

// excessBlankLines matches a newline followed by two or more blank lines.
var excessBlankLines = regexp.MustCompile(`\n([ \t]*\r?\n){2,}`)

// CollapseBlankLines reduces every run of two or more blank lines to a single
// blank line. CRLF runs keep their line ending.
func CollapseBlankLines(content string) string {
	return excessBlankLines.ReplaceAllStringFunc(content, func(run string) string {
		if strings.Contains(run, "\r\n") {
			return "\n\r\n"
		}
		return "\n\n"
	})
}

// DropLines removes the zero-based line numbers in drop. Line endings of the
// remaining lines are untouched.
func DropLines(content string, drop map[int]bool) string {
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		if !drop[i] {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
