// Package tui provides the Bubble Tea analyzer interface.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/tuimeta/internal/app"
	"github.com/verte-zerg/tuimeta/internal/historyui"
	"github.com/verte-zerg/tuimeta/internal/keyboard"
	"github.com/verte-zerg/tuimeta/internal/lang"
	"github.com/verte-zerg/tuimeta/internal/present"
	"github.com/verte-zerg/tuimeta/internal/speech"
)

const maxContentWidth = 100

var (
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	subtitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	recordingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	metaphorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	normalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	keyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0")).Padding(0, 1)
	activeKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1E1E1E")).Background(lipgloss.Color("#C89A3A")).Padding(0, 1)
	panelStyle     = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	metaphorPanelStyle = panelStyle.BorderForeground(lipgloss.Color("#C89A3A"))
	normalPanelStyle   = panelStyle.BorderForeground(lipgloss.Color("#52C41A"))
)

type predictionMsg struct {
	outcome app.Outcome
}

type speechMsg struct {
	event speech.Event
}

// Model implements the Bubble Tea analyzer UI.
type Model struct {
	ctrl    *app.Controller
	history *historyui.Model

	textarea textarea.Model
	spinner  spinner.Model
	grid     *keyboard.Grid
	// keyboardFocus routes arrows and enter to the virtual keyboard.
	keyboardFocus bool
	refocus       bool
	language      lang.Language

	width  int
	height int
}

// NewModel constructs the analyzer. ctrl is created by build so the focus
// signal of its input buffer reaches the text area.
func NewModel(build func(onFocus func()) *app.Controller, history *historyui.Model, language lang.Language) *Model {
	ta := textarea.New()
	ta.Placeholder = "Enter text in Hindi, Tamil, Telugu, or Kannada..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(4)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = footerStyle

	m := &Model{
		history:  history,
		textarea: ta,
		spinner:  sp,
		language: language,
	}
	m.ctrl = build(func() { m.refocus = true })
	m.ctrl.SetSpeechLanguage(language)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textarea.SetWidth(m.contentWidth())
		m.history.SetSize(msg.Width, msg.Height)
		return m, nil
	case predictionMsg:
		m.ctrl.Resolve(msg.outcome)
		return m, nil
	case speechMsg:
		m.ctrl.ResolveSpeech(msg.event)
		return m, m.afterBufferChange()
	case spinner.TickMsg:
		var cmds []tea.Cmd
		if m.ctrl.Loading() || m.ctrl.Speech.Listening() {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		_, cmd = m.history.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	case historyui.ClosedMsg:
		m.ctrl.CloseHistory()
		m.refocus = true
		return m, m.afterBufferChange()
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.ctrl.Speech.Cancel()
			return m, tea.Quit
		}
		if m.ctrl.HistoryOpen() {
			_, cmd = m.history.Update(msg)
			return m, cmd
		}
		return m.updateKeys(msg)
	}
	// History fetch results and other internal messages.
	_, cmd = m.history.Update(msg)
	if !m.ctrl.HistoryOpen() {
		var taCmd tea.Cmd
		m.textarea, taCmd = m.textarea.Update(msg)
		cmd = tea.Batch(cmd, taCmd)
	}
	return m, cmd
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+s":
		return m, m.submit()
	case "ctrl+r":
		m.ctrl.Reset()
		return m, m.afterBufferChange()
	case "ctrl+t":
		return m, m.toggleSpeech()
	case "ctrl+k":
		m.toggleKeyboard()
		return m, nil
	case "ctrl+l":
		m.cycleLanguage()
		return m, nil
	case "ctrl+o":
		m.ctrl.OpenHistory()
		m.textarea.Blur()
		return m, m.history.Open()
	}

	if _, open := m.ctrl.KeyboardOpen(); open {
		switch msg.String() {
		case "tab":
			m.keyboardFocus = !m.keyboardFocus
			return m, nil
		case "esc":
			m.ctrl.CloseKeyboard()
			m.keyboardFocus = false
			return m, nil
		}
		if m.keyboardFocus {
			switch msg.String() {
			case "left":
				m.grid.Move(-1, 0)
				return m, nil
			case "right":
				m.grid.Move(1, 0)
				return m, nil
			case "up":
				m.grid.Move(0, -1)
				return m, nil
			case "down":
				m.grid.Move(0, 1)
				return m, nil
			case "enter":
				m.ctrl.PressKey(m.grid.Selected())
				return m, m.afterBufferChange()
			}
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	if value := m.textarea.Value(); value != m.ctrl.Input.Text() {
		m.ctrl.SetText(value)
	}
	return m, tea.Batch(cmd, m.afterBufferChange())
}

func (m *Model) submit() tea.Cmd {
	sub, ok := m.ctrl.Submit()
	if !ok {
		return nil
	}
	ctrl := m.ctrl
	run := func() tea.Msg {
		return predictionMsg{outcome: ctrl.Run(context.Background(), sub)}
	}
	return tea.Batch(m.spinner.Tick, run)
}

func (m *Model) toggleSpeech() tea.Cmd {
	capture := m.ctrl.ToggleSpeech(context.Background())
	if capture == nil {
		return nil
	}
	await := func() tea.Msg {
		return speechMsg{event: capture.Await()}
	}
	return tea.Batch(m.spinner.Tick, await)
}

func (m *Model) toggleKeyboard() {
	current, _ := m.ctrl.KeyboardOpen()
	m.ctrl.ToggleKeyboard(current)
	if l, open := m.ctrl.KeyboardOpen(); open {
		m.grid = keyboard.NewGrid(keyboard.For(l), m.keyboardColumns())
		m.keyboardFocus = true
		return
	}
	m.keyboardFocus = false
}

func (m *Model) cycleLanguage() {
	all := lang.All()
	next := all[0]
	for i, l := range all {
		if l.Name == m.language.Name {
			next = all[(i+1)%len(all)]
			break
		}
	}
	m.language = next
	m.ctrl.SetSpeechLanguage(next)
	m.ctrl.SetKeyboardLanguage(next)
	if _, open := m.ctrl.KeyboardOpen(); open {
		m.grid = keyboard.NewGrid(keyboard.For(next), m.keyboardColumns())
	}
}

// afterBufferChange mirrors the buffer into the text area and restores its focus.
func (m *Model) afterBufferChange() tea.Cmd {
	if text := m.ctrl.Input.Text(); m.textarea.Value() != text {
		m.textarea.SetValue(text)
		m.textarea.CursorEnd()
	}
	if !m.refocus || m.ctrl.HistoryOpen() {
		return nil
	}
	m.refocus = false
	return m.textarea.Focus()
}

func (m *Model) contentWidth() int {
	w := m.width - 4
	if w > maxContentWidth {
		w = maxContentWidth
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m *Model) keyboardColumns() int {
	// Each key renders two cells of padding plus the glyph.
	cols := m.contentWidth() / 5
	if cols > keyboard.Columns {
		cols = keyboard.Columns
	}
	if cols < 4 {
		cols = 4
	}
	return cols
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.ctrl.HistoryOpen() {
		return m.history.View()
	}
	width := m.contentWidth()
	sections := []string{
		titleStyle.Render("🌐 Multilingual Metaphor Detector"),
		subtitleStyle.Render("Metaphor detection for Hindi, Tamil, Telugu, and Kannada"),
		m.renderStatus(),
		m.textarea.View(),
	}
	if m.ctrl.Speech.Listening() {
		sections = append(sections, recordingStyle.Render(m.spinner.View()+" Recording... press ctrl+t to stop"))
	}
	if m.ctrl.Loading() {
		sections = append(sections, m.spinner.View()+" Analyzing...")
	}
	if msg := m.ctrl.ErrMessage(); msg != "" {
		sections = append(sections, errorStyle.Render(wrapText("⚠ "+msg, width)))
	}
	if l, open := m.ctrl.KeyboardOpen(); open && m.grid != nil {
		sections = append(sections, m.renderKeyboard(l))
	}
	if res := m.ctrl.Result(); res != nil {
		sections = append(sections, renderResult(res, width))
	}
	sections = append(sections, m.renderFooter())
	content := strings.Join(sections, "\n\n")
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Top, lipgloss.NewStyle().Width(width).Render(content))
}

func (m *Model) renderStatus() string {
	speechState := "mic: idle"
	if !m.ctrl.Speech.Available() {
		speechState = "mic: unavailable"
	} else if m.ctrl.Speech.Listening() {
		speechState = "mic: listening"
	}
	l, open := m.ctrl.KeyboardOpen()
	keyboardState := "keyboard: " + l.Name + " (off)"
	if open {
		keyboardState = "keyboard: " + l.Name
	}
	status := fmt.Sprintf("Language: %s (%s, %s)  %s  %s", m.language.Native, m.language.Name, m.language.SpeechTag, speechState, keyboardState)
	if detected, ok := lang.Detect(m.ctrl.Input.Text()); ok {
		status += "  detected: " + detected.Name
	}
	return labelStyle.Render(status)
}

func (m *Model) renderKeyboard(l lang.Language) string {
	rows := m.grid.Layout.Rows(m.grid.Width)
	lines := make([]string, 0, len(rows)+1)
	title := fmt.Sprintf("%s Keyboard", strings.ToUpper(l.Name[:1])+l.Name[1:])
	if m.keyboardFocus {
		title += "  (arrows: move  enter: type  tab: text  esc: close)"
	} else {
		title += "  (tab: keyboard  esc: close)"
	}
	lines = append(lines, labelStyle.Render(title))
	for r, row := range rows {
		keys := make([]string, len(row))
		for c, k := range row {
			style := keyStyle
			if m.keyboardFocus && r*m.grid.Width+c == m.grid.Pos() {
				style = activeKeyStyle
			}
			keys[c] = style.Render(k.Label())
		}
		lines = append(lines, strings.Join(keys, ""))
	}
	return strings.Join(lines, "\n")
}

func renderResult(res *present.Result, width int) string {
	inner := width - 4
	if inner < 10 {
		inner = 10
	}
	badge := normalStyle.Render(res.Category.Badge())
	style := normalPanelStyle
	if res.Category == present.CategoryMetaphor {
		badge = metaphorStyle.Render(res.Category.Badge())
		style = metaphorPanelStyle
	}
	lines := []string{
		valueStyle.Render("📊 Analysis Results"),
		labelStyle.Render("Language: ") + valueStyle.Render(res.Language),
		labelStyle.Render("Classification: ") + badge,
		labelStyle.Render("Confidence: ") + valueStyle.Render(res.Confidence),
		"",
		labelStyle.Render("Input Text:"),
		wrapText(res.Text, inner),
	}
	if res.HasTranslation {
		lines = append(lines, "", labelStyle.Render("🌍 English Translation"), wrapText(res.Translation, inner))
	}
	if res.HasExplanation {
		lines = append(lines, "", labelStyle.Render("💡 Metaphor Explanation"), wrapText(res.Explanation, inner))
	}
	return style.Width(width).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderFooter() string {
	segments := []string{"Analyze: ctrl+s", "Reset: ctrl+r", "Mic: ctrl+t", "Keyboard: ctrl+k", "Language: ctrl+l", "History: ctrl+o", "Quit: ctrl+c"}
	if m.ctrl.Loading() {
		segments[0] = "Analyzing..."
	}
	return footerStyle.Render(wrapText(strings.Join(segments, "  "), m.contentWidth()))
}
