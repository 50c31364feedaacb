// Package input owns the analyzer's single text buffer.
package input

// Manager serializes writes from typing, the virtual keyboard and speech.
// It is not safe for concurrent use; callers run it on the UI loop.
type Manager struct {
	buf     []rune
	onFocus func()
}

// New returns an empty manager. onFocus, if set, runs after every mutation.
func New(onFocus func()) *Manager {
	return &Manager{onFocus: onFocus}
}

// Text returns the current buffer.
func (m *Manager) Text() string {
	return string(m.buf)
}

// SetText replaces the buffer wholesale.
func (m *Manager) SetText(text string) {
	m.buf = []rune(text)
	m.focus()
}

// AppendChar appends one rune.
func (m *Manager) AppendChar(r rune) {
	m.buf = append(m.buf, r)
	m.focus()
}

// Backspace removes the last rune. It is a no-op on an empty buffer.
func (m *Manager) Backspace() {
	if len(m.buf) > 0 {
		m.buf = m.buf[:len(m.buf)-1]
	}
	m.focus()
}

// Clear empties the buffer.
func (m *Manager) Clear() {
	m.buf = m.buf[:0]
	m.focus()
}

func (m *Manager) focus() {
	if m.onFocus != nil {
		m.onFocus()
	}
}
