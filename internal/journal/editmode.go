package journal

// Key is a keystroke the edit-mode machine may intercept
type Key rune

const (
	KeyEnter Key = '\n'
	KeyComma Key = ','
)

// Edit is the buffer and cursor after a keystroke. Intercepted is true when
// the keystroke was replaced by an input-assistance insertion rather than its
// plain character.
type Edit struct {
	Text        string `json:"text"`
	Cursor      int    `json:"cursor"`
	Intercepted bool   `json:"intercepted"`
}

// EditMode tracks the title-mode flag. The zero value has title-mode off.
type EditMode struct {
	TitleMode bool `json:"title_mode"`
}

// StartEntry is the explicit "new entry" action: the next Enter scaffolds a
// category line instead of a plain newline.
func (m *EditMode) StartEntry() {
	m.TitleMode = true
}

// Key applies keystroke k at byte offset cursor in text.
func (m *EditMode) Key(text string, cursor int, k Key) Edit {
	cursor = clamp(cursor, len(text))

	switch k {
	case KeyEnter:
		if m.TitleMode {
			m.TitleMode = false
			return insert(text, cursor, "\n#", true)
		}
		// Enter on a category line moves on to the body; like any other
		// line it is a plain newline and title-mode stays off.
		return insert(text, cursor, "\n", false)

	case KeyComma:
		if IsCategoryLine(CurrentLine(text, cursor)) {
			return insert(text, cursor, ", #", true)
		}
	}

	return insert(text, cursor, string(rune(k)), false)
}

func insert(text string, at int, s string, intercepted bool) Edit {
	return Edit{
		Text:        text[:at] + s + text[at:],
		Cursor:      at + len(s),
		Intercepted: intercepted,
	}
}
