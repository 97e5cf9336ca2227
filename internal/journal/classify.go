package journal

import "strings"

// Role is the visual and semantic part a buffer line plays
type Role int

const (
	RoleBlank Role = iota
	RoleBody
	RoleCategory
	RoleTitle
)

func (r Role) String() string {
	switch r {
	case RoleTitle:
		return "title"
	case RoleCategory:
		return "category"
	case RoleBody:
		return "body"
	default:
		return "blank"
	}
}

// MarshalText lets roles travel as their names in JSON
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Weight is the font weight a renderer should use for the role.
// Blank lines are styled like body text.
func (r Role) Weight() string {
	if r == RoleTitle {
		return "bold"
	}
	return "regular"
}

// Classify assigns a role to every line. cursor is a byte offset into the
// buffer the lines were split from; titleMode is the edit-mode flag.
//
// The result depends only on its arguments and is recomputed from scratch on
// every keystroke, which is linear in the number of lines.
func Classify(lines []string, cursor int, titleMode bool) []Role {
	roles := make([]Role, len(lines))
	cursorLine := LineAt(lines, cursor)

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		switch {
		case titleMode && i == cursorLine && trimmed == "":
			roles[i] = RoleTitle
		case IsCategoryLine(line):
			roles[i] = RoleCategory
		case trimmed != "" && startsEntry(lines, i):
			roles[i] = RoleTitle
		case trimmed != "":
			roles[i] = RoleBody
		default:
			roles[i] = RoleBlank
		}
	}
	return roles
}

// ClassifyText splits text into lines and classifies them
func ClassifyText(text string, cursor int, titleMode bool) []Role {
	return Classify(SplitLines(text), cursor, titleMode)
}

// startsEntry reports whether line i sits directly above a category line and
// is either the first line or follows a blank or category line.
func startsEntry(lines []string, i int) bool {
	if i+1 >= len(lines) || !IsCategoryLine(lines[i+1]) {
		return false
	}
	if i == 0 {
		return true
	}
	prev := lines[i-1]
	return strings.TrimSpace(prev) == "" || IsCategoryLine(prev)
}

// LineAt returns the index of the line holding byte offset cursor. A cursor
// sitting right after a line's last character belongs to that line. Offsets
// past the end map to the last line; with no lines the result is -1.
func LineAt(lines []string, cursor int) int {
	if len(lines) == 0 {
		return -1
	}
	start := 0
	for i, l := range lines {
		end := start + len(l)
		if cursor <= end {
			return i
		}
		start = end + 1
	}
	return len(lines) - 1
}

// lineBounds returns the [start, end) byte range of the line containing cursor
func lineBounds(text string, cursor int) (int, int) {
	cursor = clamp(cursor, len(text))
	start := strings.LastIndexByte(text[:cursor], '\n') + 1
	end := strings.IndexByte(text[cursor:], '\n')
	if end < 0 {
		return start, len(text)
	}
	return start, cursor + end
}

// CurrentLine returns the text of the line holding cursor
func CurrentLine(text string, cursor int) string {
	start, end := lineBounds(text, cursor)
	return text[start:end]
}

func clamp(cursor, n int) int {
	if cursor < 0 {
		return 0
	}
	if cursor > n {
		return n
	}
	return cursor
}
