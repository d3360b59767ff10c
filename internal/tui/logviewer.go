// Package tui provides the bubbletea-based log pager for `tforge logs`,
// adapted from the teacher's Claude execution log viewer onto taskforge's
// per-task transcript/output model.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskforge/taskforge/pkg/models"
)

var (
	primaryColor = lipgloss.Color("#0EA5E9")
	successColor = lipgloss.Color("#22C55E")
	errorColor   = lipgloss.Color("#EF4444")
	warningColor = lipgloss.Color("#F59E0B")
	mutedColor   = lipgloss.Color("#64748B")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true).
			Padding(1, 0).
			MarginBottom(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1).
			MarginBottom(1)

	statusRunningStyle   = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	statusCompletedStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	statusFailedStyle    = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	statusAbortedStyle   = lipgloss.NewStyle().Foreground(warningColor).Bold(true)

	sectionTitleStyle = lipgloss.NewStyle().
				Foreground(primaryColor).
				Bold(true).
				Underline(true).
				MarginTop(1).
				MarginBottom(1)

	sectionContentStyle = lipgloss.NewStyle().Padding(0, 2).MarginBottom(1)

	helpStyle       = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	scrollInfoStyle = lipgloss.NewStyle().Foreground(mutedColor).Bold(true)

	footerStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(mutedColor).
			Padding(1, 0).
			MarginTop(1)
)

// LogSection is one titled region of a task's rendered log (stdout,
// stderr, transition history).
type LogSection struct {
	Title   string
	Content string
}

// TaskLogMeta is the header info shown above a task's log.
type TaskLogMeta struct {
	TaskID    string
	State     models.TaskState
	StartedAt string
	Duration  string
}

// LogViewerModel is the TUI model for viewing one task's log.
type LogViewerModel struct {
	meta         TaskLogMeta
	rawContent   string
	sections     []LogSection
	scrollY      int
	maxScrollY   int
	width        int
	height       int
	contentArea  int
	renderedView string
}

// NewLogViewerModel builds a log viewer over logContent, a pre-rendered
// string split into sections at the sectionMarkers lines; cmd's logs
// command writes a single "=== TRANSITIONS ===" section.
func NewLogViewerModel(meta TaskLogMeta, logContent string) LogViewerModel {
	m := LogViewerModel{meta: meta, rawContent: logContent}
	m.sections = parseLogContent(logContent)
	return m
}

func (m LogViewerModel) Init() tea.Cmd {
	return nil
}

func (m LogViewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.contentArea = m.height - 8
		m.renderSections()
		m.updateMaxScroll()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.scrollY > 0 {
				m.scrollY--
			}
		case "down", "j":
			if m.scrollY < m.maxScrollY {
				m.scrollY++
			}
		case "pgup":
			m.scrollY -= m.contentArea
			if m.scrollY < 0 {
				m.scrollY = 0
			}
		case "pgdown":
			m.scrollY += m.contentArea
			if m.scrollY > m.maxScrollY {
				m.scrollY = m.maxScrollY
			}
		case "home":
			m.scrollY = 0
		case "end":
			m.scrollY = m.maxScrollY
		}
	}

	return m, nil
}

func (m LogViewerModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.renderedView == "" {
		m.renderSections()
	}

	sections := []string{m.renderHeader(), m.renderContent(), m.renderFooter()}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m LogViewerModel) renderHeader() string {
	title := fmt.Sprintf("Task: %s", m.meta.TaskID)
	header := headerStyle.Render(title)

	var infoLines []string
	infoLines = append(infoLines, fmt.Sprintf("State: %s", m.getStyledState()))
	if m.meta.StartedAt != "" {
		infoLines = append(infoLines, fmt.Sprintf("Started: %s", m.meta.StartedAt))
	}
	if m.meta.Duration != "" {
		infoLines = append(infoLines, fmt.Sprintf("Duration: %s", m.meta.Duration))
	}
	info := infoStyle.Render(strings.Join(infoLines, " • "))

	return lipgloss.JoinVertical(lipgloss.Left, header, info)
}

func (m LogViewerModel) renderContent() string {
	if m.renderedView == "" {
		return "No content to display"
	}

	lines := strings.Split(m.renderedView, "\n")
	start := m.scrollY
	end := start + m.contentArea
	if end > len(lines) {
		end = len(lines)
	}

	var visibleLines []string
	if start < len(lines) {
		visibleLines = lines[start:end]
	}
	return strings.Join(visibleLines, "\n")
}

func (m LogViewerModel) renderFooter() string {
	totalLines := len(strings.Split(m.renderedView, "\n"))
	currentEnd := min(m.scrollY+m.contentArea, totalLines)

	scrollInfo := scrollInfoStyle.Render(fmt.Sprintf("Line %d-%d of %d", m.scrollY+1, currentEnd, totalLines))
	help := helpStyle.Render("↑/k: up • ↓/j: down • PgUp/PgDn: page • Home/End: start/end • q/Esc: quit")

	footerContent := lipgloss.JoinHorizontal(lipgloss.Left,
		scrollInfo,
		strings.Repeat(" ", max(0, m.width-lipgloss.Width(scrollInfo)-lipgloss.Width(help)-4)),
		help)

	return footerStyle.Width(m.width).Render(footerContent)
}

func (m LogViewerModel) getStyledState() string {
	switch m.meta.State {
	case models.StateRunning:
		return statusRunningStyle.Render("🔄 " + string(m.meta.State))
	case models.StateCompleted:
		return statusCompletedStyle.Render("✅ " + string(m.meta.State))
	case models.StateFailed:
		return statusFailedStyle.Render("❌ " + string(m.meta.State))
	case models.StateSkipped:
		return statusAbortedStyle.Render("⚠️  " + string(m.meta.State))
	default:
		return "⚪ " + string(m.meta.State)
	}
}

func (m *LogViewerModel) updateMaxScroll() {
	totalLines := len(strings.Split(m.renderedView, "\n"))
	m.maxScrollY = max(0, totalLines-m.contentArea)
}

func (m *LogViewerModel) renderSections() {
	if m.width == 0 {
		return
	}

	var renderedSections []string
	for _, section := range m.sections {
		if section.Content == "" {
			continue
		}
		title := sectionTitleStyle.Render(section.Title)
		content := sectionContentStyle.Render(section.Content)
		renderedSections = append(renderedSections, lipgloss.JoinVertical(lipgloss.Left, title, content))
	}
	m.renderedView = strings.Join(renderedSections, "\n")
}

// sectionMarkers are the section headers cmd's logs command writes into the
// content it hands to NewLogViewerModel.
var sectionMarkers = []string{"=== STDOUT ===", "=== STDERR ===", "=== TRANSITIONS ==="}

// parseLogContent splits content into titled sections at sectionMarkers,
// falling back to one section titled "Log" when none are present.
func parseLogContent(content string) []LogSection {
	var sections []LogSection
	lines := strings.Split(content, "\n")
	var current LogSection
	var buf []string

	flush := func() {
		if current.Title != "" && len(buf) > 0 {
			current.Content = strings.TrimSpace(strings.Join(buf, "\n"))
			sections = append(sections, current)
		}
		buf = nil
	}

	for _, line := range lines {
		if marker := matchMarker(line); marker != "" {
			flush()
			current = LogSection{Title: marker}
			continue
		}
		if current.Title != "" {
			buf = append(buf, line)
		} else {
			buf = append(buf, line)
		}
	}
	flush()

	if len(sections) == 0 {
		sections = append(sections, LogSection{Title: "Log", Content: content})
	}
	return sections
}

func matchMarker(line string) string {
	trimmed := strings.TrimSpace(line)
	for _, marker := range sectionMarkers {
		if trimmed == marker {
			return strings.Trim(marker, "= ")
		}
	}
	return ""
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// RunLogViewer starts the interactive pager over one task's log.
func RunLogViewer(meta TaskLogMeta, logContent string) error {
	model := NewLogViewerModel(meta, logContent)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
