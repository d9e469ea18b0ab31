package remedy

import (
	"regexp"
	"strings"
)

// Single-name import forms. Multi-name lists and namespace imports are never
// touched.
var (
	defaultImportPattern = regexp.MustCompile(`^\s*import\s+(?:type\s+)?([A-Za-z_$][\w$]*)\s+from\s+['"][^'"]+['"]\s*;?\s*$`)
	namedImportPattern   = regexp.MustCompile(`^\s*import\s+(?:type\s+)?\{\s*(?:type\s+)?([A-Za-z_$][\w$]*)(?:\s+as\s+([A-Za-z_$][\w$]*))?\s*,?\s*\}\s+from\s+['"][^'"]+['"]\s*;?\s*$`)
)

// ImportedName returns the local name bound by a single-name import line.
func ImportedName(line string) (string, bool) {
	if m := defaultImportPattern.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if m := namedImportPattern.FindStringSubmatch(line); m != nil {
		if m[2] != "" {
			return m[2], true
		}
		return m[1], true
	}
	return "", false
}

// UnusedImportLines returns the indexes of single-name import lines whose
// name does not appear as a whole word anywhere else in the content. This is
// a textual heuristic: re-exports, shadowing and names that only occur in
// comments or strings are not distinguished.
func UnusedImportLines(content string) []int {
	lines := strings.Split(content, "\n")
	var unused []int
	for i, line := range lines {
		name, ok := ImportedName(line)
		if !ok {
			continue
		}
		rest := strings.Join(lines[:i], "\n") + "\n" + strings.Join(lines[i+1:], "\n")
		if !containsWord(rest, name) {
			unused = append(unused, i)
		}
	}
	return unused
}

// CountUnusedImports counts the import lines StripUnusedImports would remove.
func CountUnusedImports(content string) int {
	return len(UnusedImportLines(content))
}

// StripUnusedImports removes unused single-name import lines.
func StripUnusedImports(content string) (string, int) {
	drop := UnusedImportLines(content)
	if len(drop) == 0 {
		return content, 0
	}

	skip := make(map[int]bool, len(drop))
	for _, i := range drop {
		skip[i] = true
	}
	return CollapseBlankLines(DropLines(content, skip)), len(drop)
}

// containsWord reports whether name occurs in text delimited by non-identifier
// characters. `$` counts as an identifier character, which \b does not handle.
func containsWord(text, name string) bool {
	for offset := 0; ; {
		idx := strings.Index(text[offset:], name)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(name)
		if (start == 0 || !isIdentChar(text[start-1])) && (end == len(text) || !isIdentChar(text[end])) {
			return true
		}
		offset = start + 1
	}
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
