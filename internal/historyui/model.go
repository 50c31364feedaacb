// Package historyui provides the Bubble Tea prediction history interface.
package historyui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/tuimeta/internal/apperrors"
	"github.com/verte-zerg/tuimeta/internal/history"
	"github.com/verte-zerg/tuimeta/internal/model"
	"github.com/verte-zerg/tuimeta/internal/present"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	metaphorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	normalStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	modalStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

// ClosedMsg reports that an embedded history view asked to close.
type ClosedMsg struct{}

type responseMsg struct {
	resp history.Response
}

// Model implements the Bubble Tea history UI.
type Model struct {
	store      *history.Store
	ctrl       *history.Controller
	standalone bool
	loc        *time.Location

	viewport viewport.Model
	spinner  spinner.Model
	cursor   int
	// itemLines maps item index to its first line in the list viewport.
	itemLines []int

	width  int
	height int
}

// NewModel constructs a history UI. A standalone model quits on q; an
// embedded one emits ClosedMsg instead.
func NewModel(st *history.Store, filter model.FilterCriteria, standalone bool) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = headerStyle
	return &Model{
		store:      st,
		ctrl:       history.NewController(filter),
		standalone: standalone,
		loc:        time.Local,
		viewport:   viewport.New(0, 0),
		spinner:    sp,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.Open()
}

// Open issues the initial fetch. Embedding models call it each time the view is shown.
func (m *Model) Open() tea.Cmd {
	m.cursor = 0
	return tea.Batch(m.spinner.Tick, m.fetch(m.ctrl.Open()))
}

// SetSize sets the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.updateLayout()
}

func (m *Model) fetch(req history.Request) tea.Cmd {
	st := m.store
	return func() tea.Msg {
		return responseMsg{resp: history.Execute(context.Background(), st, req)}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case spinner.TickMsg:
		if !m.ctrl.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case responseMsg:
		_, refetch := m.ctrl.Apply(msg.resp)
		m.clampCursor()
		m.updateLayout()
		if refetch != nil {
			return m, tea.Batch(m.spinner.Tick, m.fetch(*refetch))
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.ctrl.Pending() != nil {
			return m.updateConfirm(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m *Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		req, ok := m.ctrl.Confirm()
		if !ok {
			return m, nil
		}
		return m, tea.Batch(m.spinner.Tick, m.fetch(req))
	case "n", "N", "esc", "q":
		m.ctrl.Cancel()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.ctrl.Close()
		if m.standalone {
			return m, tea.Quit
		}
		return m, func() tea.Msg { return ClosedMsg{} }
	case "up", "k":
		m.moveCursor(-1)
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		return m, nil
	case "g", "home":
		m.cursor = 0
		m.renderList()
		m.viewport.GotoTop()
		return m, nil
	case "G", "end":
		m.cursor = len(m.ctrl.Items()) - 1
		m.clampCursor()
		m.renderList()
		m.viewport.GotoBottom()
		return m, nil
	case "enter", " ":
		if item, ok := m.current(); ok {
			m.ctrl.Toggle(item.ID)
			m.renderList()
		}
		return m, nil
	case "l":
		return m.refetch(m.ctrl.CycleLanguage())
	case "t":
		return m.refetch(m.ctrl.CycleLabel())
	case "r":
		return m.refetch(m.ctrl.Refresh())
	case "d", "delete":
		if item, ok := m.current(); ok {
			m.ctrl.RequestDelete(item.ID)
		}
		return m, nil
	case "D":
		m.ctrl.RequestClearAll()
		return m, nil
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
}

func (m *Model) refetch(req history.Request) (tea.Model, tea.Cmd) {
	m.cursor = 0
	m.renderList()
	return m, tea.Batch(m.spinner.Tick, m.fetch(req))
}

func (m *Model) current() (model.HistoryItem, bool) {
	items := m.ctrl.Items()
	if m.cursor < 0 || m.cursor >= len(items) {
		return model.HistoryItem{}, false
	}
	return items[m.cursor], true
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
	m.renderList()
	m.ensureCursorVisible()
}

func (m *Model) clampCursor() {
	last := len(m.ctrl.Items()) - 1
	if m.cursor > last {
		m.cursor = last
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) ensureCursorVisible() {
	if m.cursor >= len(m.itemLines) {
		return
	}
	line := m.itemLines[m.cursor]
	if line < m.viewport.YOffset {
		m.viewport.SetYOffset(line)
		return
	}
	if bottom := m.viewport.YOffset + m.viewport.Height - 2; line > bottom {
		m.viewport.SetYOffset(line - m.viewport.Height + 2)
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if pending := m.ctrl.Pending(); pending != nil {
		return fitLines(m.renderConfirmModal(pending), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = lipgloss.Height(m.renderHeader())
	footerHeight = 1
	if m.ctrl.Err() != nil && m.ctrl.Phase() != history.PhaseFailed {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width > 0 && m.height > 0 {
		_, bodyHeight, _ := m.layoutHeights()
		m.viewport.Width = m.width
		m.viewport.Height = bodyHeight
	}
	m.renderList()
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render("📜 Prediction History")
	lines := []string{title, renderStatistics(m.ctrl, m.width), headerStyle.Render(truncateLine(filterSummary(m.ctrl.Filter()), m.width))}
	return strings.Join(lines, "\n")
}

func renderStatistics(ctrl *history.Controller, width int) string {
	stats, ok := ctrl.Statistics()
	if !ok {
		return headerStyle.Render("Statistics unavailable")
	}
	cards := make([]string, 0, 3)
	for _, kv := range present.StatisticsLines(stats) {
		cards = append(cards, metricCard(kv[0], kv[1]))
	}
	if width > 0 && width < 48 {
		parts := make([]string, 0, 3)
		for _, kv := range present.StatisticsLines(stats) {
			parts = append(parts, kv[0]+": "+kv[1])
		}
		return cardValueStyle.Render(strings.Join(parts, "  "))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func filterSummary(f model.FilterCriteria) string {
	language := f.Language
	if language == "" {
		language = "all"
	}
	label := string(f.Label)
	if label == "" {
		label = "all"
	}
	return fmt.Sprintf("Filters: language=%s  type=%s", language, label)
}

func (m *Model) helpText() string {
	if len(m.ctrl.Items()) > 0 {
		return "Move: up/down  Expand: enter  Language: l  Type: t  Refresh: r  Delete: d  Clear all: D  Close: esc"
	}
	return "Language: l  Type: t  Refresh: r  Close: esc"
}

func (m *Model) renderFooter() string {
	help := headerStyle.Render(truncateLine(m.helpText(), m.width))
	if err := m.ctrl.Err(); err != nil && m.ctrl.Phase() != history.PhaseFailed {
		return help + "\n" + errorStyle.Render("⚠ "+apperrors.PublicMessage(err))
	}
	return help
}

func (m *Model) renderBody() string {
	switch m.ctrl.Phase() {
	case history.PhaseLoading:
		return m.spinner.View() + " Loading history..."
	case history.PhaseFailed:
		return errorStyle.Render("⚠ "+apperrors.PublicMessage(m.ctrl.Err())) + "\n" + headerStyle.Render("Press r to retry.")
	}
	if len(m.ctrl.Items()) == 0 {
		if !m.ctrl.Filter().IsZero() {
			return "📭 No predictions match these filters\n" + headerStyle.Render("Press l or t to change them")
		}
		return "📭 No predictions in history yet\n" + headerStyle.Render("Start analyzing text to build your history")
	}
	body := m.viewport.View()
	if m.ctrl.Busy() {
		body = m.spinner.View() + " Updating...\n" + body
	}
	return body
}

func (m *Model) renderList() {
	items := m.ctrl.Items()
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.itemLines = make([]int, len(items))
	var lines []string
	for i, item := range items {
		m.itemLines[i] = len(lines)
		block := renderItem(item, i == m.cursor, item.ID == m.ctrl.Expanded(), width, m.loc)
		lines = append(lines, strings.Split(block, "\n")...)
		lines = append(lines, "")
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
}

func renderItem(item model.HistoryItem, selected, expanded bool, width int, loc *time.Location) string {
	row, err := present.HistoryRow(item, loc)
	marker := "  "
	if selected {
		marker = "▸ "
	}
	if err != nil {
		return marker + errorStyle.Render(truncateLine(fmt.Sprintf("%s: %s", item.ID, err), width-2))
	}
	preview := truncateLine(row.Preview, width-2)
	if selected {
		preview = selectedStyle.Render(preview)
	}
	badge := categoryStyle(row.Category).Render(row.Category.Badge())
	meta := fmt.Sprintf("%s  %s  🕐 %s  %s confidence", badge, row.Language, row.Date, row.Confidence)
	lines := []string{marker + preview, "  " + meta}
	if !expanded {
		return strings.Join(lines, "\n")
	}
	inner := width - 4
	if inner < 10 {
		inner = 10
	}
	wrap := lipgloss.NewStyle().Width(inner)
	lines = append(lines, "    "+cardTitleStyle.Render("Full Text:"))
	lines = append(lines, indent(wrap.Render(row.Text), "    "))
	if row.Translation != "" {
		lines = append(lines, "    "+cardTitleStyle.Render("🌍 Translation:"))
		lines = append(lines, indent(mutedStyle.Render(wrap.Render(row.Translation)), "    "))
	}
	if row.Explanation != "" {
		lines = append(lines, "    "+cardTitleStyle.Render("💡 Explanation:"))
		lines = append(lines, indent(mutedStyle.Render(wrap.Render(row.Explanation)), "    "))
	}
	lines = append(lines, "    "+headerStyle.Render("d: delete"))
	return strings.Join(lines, "\n")
}

func categoryStyle(c present.Category) lipgloss.Style {
	if c == present.CategoryMetaphor {
		return metaphorStyle
	}
	return normalStyle
}

func (m *Model) renderConfirmModal(p *history.Confirmation) string {
	body := []string{
		titleStyle.Render("Confirm"),
		p.Prompt,
		headerStyle.Render("y / enter to confirm, n / esc to cancel"),
	}
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func modalWidth(width int) int {
	return maxInt(40, minInt(width-4, 72))
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}
