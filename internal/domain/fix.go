package domain

// FixKindError marks a synthetic fix entry recording a failed fix category.
const FixKindError = "error"

// Fix records one remediation applied to one file.
type Fix struct {
	File  string `json:"file,omitempty"`
	Kind  string `json:"kind"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// IsError reports whether the entry records a failure instead of a change.
func (f Fix) IsError() bool { return f.Kind == FixKindError }

// ErrorFix builds the entry surfaced when a fix category fails.
func ErrorFix(kind IssueKind, err error) Fix {
	return Fix{Kind: FixKindError, Error: string(kind) + ": " + err.Error()}
}

// RealFixes filters out error entries.
func RealFixes(fixes []Fix) []Fix {
	var out []Fix
	for _, f := range fixes {
		if !f.IsError() {
			out = append(out, f)
		}
	}
	return out
}

// TotalRemoved sums the occurrence counts of real fixes.
func TotalRemoved(fixes []Fix) int {
	n := 0
	for _, f := range fixes {
		if !f.IsError() {
			n += f.Count
		}
	}
	return n
}
