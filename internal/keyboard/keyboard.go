// Package keyboard derives on-screen keyboard layouts from script blocks.
package keyboard

import (
	"unicode"

	"github.com/verte-zerg/tuimeta/internal/lang"
)

const (
	// Columns is the grid width used by the analyzer.
	Columns = 12

	backspaceLabel = "⌫"
	dottedCircle   = '◌'
)

// Key emits one rune, or deletes one when Backspace is set.
type Key struct {
	Rune      rune
	Backspace bool
}

// Label is the text drawn on the key. Combining marks sit on a dotted circle.
func (k Key) Label() string {
	if k.Backspace {
		return backspaceLabel
	}
	if unicode.Is(unicode.Mn, k.Rune) || unicode.Is(unicode.Mc, k.Rune) {
		return string([]rune{dottedCircle, k.Rune})
	}
	return string(k.Rune)
}

// Layout is the ordered key set for one language.
type Layout struct {
	Language lang.Language
	Keys     []Key
}

// For builds the layout for l: every letter and mark of its script block in
// code point order, followed by backspace.
func For(l lang.Language) Layout {
	script := unicode.Scripts[l.Script]
	keys := make([]Key, 0, 96)
	for r := l.First; r <= l.Last; r++ {
		if script != nil && !unicode.Is(script, r) {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsMark(r) {
			keys = append(keys, Key{Rune: r})
		}
	}
	keys = append(keys, Key{Backspace: true})
	return Layout{Language: l, Keys: keys}
}

// Rows returns the keys split into rows of the given width.
func (l Layout) Rows(width int) [][]Key {
	if width <= 0 {
		width = Columns
	}
	var rows [][]Key
	for i := 0; i < len(l.Keys); i += width {
		end := i + width
		if end > len(l.Keys) {
			end = len(l.Keys)
		}
		rows = append(rows, l.Keys[i:end])
	}
	return rows
}

// Grid tracks the selected key of a layout.
type Grid struct {
	Layout Layout
	Width  int
	pos    int
}

// NewGrid selects the first key.
func NewGrid(layout Layout, width int) *Grid {
	if width <= 0 {
		width = Columns
	}
	return &Grid{Layout: layout, Width: width}
}

func (g *Grid) Pos() int {
	return g.pos
}

// Selected returns the highlighted key.
func (g *Grid) Selected() Key {
	return g.Layout.Keys[g.pos]
}

// Move shifts the selection, clamped to the layout.
func (g *Grid) Move(dx, dy int) {
	next := g.pos + dx + dy*g.Width
	if next < 0 {
		next = 0
	}
	if last := len(g.Layout.Keys) - 1; next > last {
		next = last
	}
	g.pos = next
}
