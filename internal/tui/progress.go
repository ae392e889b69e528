package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const tickInterval = 120 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type tickMsg time.Time

// Column defines a single column in the progress table.
type Column struct {
	Header string
	Width  int
}

type row struct {
	key    string
	fields []string
}

// ProgressModel renders one table row per core and a spinner footer until
// the run finishes.
type ProgressModel struct {
	title     string
	columns   []Column
	rows      []row
	index     map[string]int
	statusCol int
	tick      int
	done      bool
	err       error
}

// NewProgressModel creates a progress model with the given title and columns.
func NewProgressModel(title string, columns []Column) ProgressModel {
	statusCol := -1
	for i, c := range columns {
		if c.Header == ColStatus {
			statusCol = i
			break
		}
	}
	return ProgressModel{
		title:     title,
		columns:   columns,
		index:     make(map[string]int),
		statusCol: statusCol,
	}
}

// AddRow seeds a row before the program starts.
func (m *ProgressModel) AddRow(key string, fields []string) {
	padded := make([]string, len(m.columns))
	copy(padded, fields)
	m.index[key] = len(m.rows)
	m.rows = append(m.rows, row{key: key, fields: padded})
}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init satisfies the tea.Model interface.
func (m ProgressModel) Init() tea.Cmd {
	return scheduleTick()
}

// Update satisfies the tea.Model interface.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.tick++
		return m, scheduleTick()

	case RowUpdateMsg:
		m.apply(msg)
		return m, nil

	case WorkDoneMsg:
		m.done = true
		return m, tea.Quit

	case ErrorMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *ProgressModel) apply(msg RowUpdateMsg) {
	i, ok := m.index[msg.Key]
	if !ok {
		return
	}
	for j, col := range m.columns {
		if val, ok := msg.Fields[col.Header]; ok {
			m.rows[i].fields[j] = val
		}
	}
}

// View satisfies the tea.Model interface.
func (m ProgressModel) View() string {
	if m.done && m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}

	widths := make([]int, len(m.columns))
	for i, col := range m.columns {
		widths[i] = max(len(col.Header), col.Width)
	}

	var b strings.Builder
	if m.title != "" {
		b.WriteString(TitleStyle.Render(m.title))
		b.WriteString("\n\n")
	}

	header := make([]string, len(m.columns))
	for i, col := range m.columns {
		header[i] = HeaderStyle.Render(pad(col.Header, widths[i]))
	}
	b.WriteString(strings.Join(header, "  "))
	b.WriteByte('\n')

	for _, r := range m.rows {
		cells := make([]string, len(m.columns))
		for i := range m.columns {
			val := TruncateWithEllipsis(r.fields[i], widths[i])
			if i == m.statusCol {
				cells[i] = StatusStyle(val).Render(pad(val, widths[i]))
				continue
			}
			cells[i] = pad(val, widths[i])
		}
		b.WriteString(strings.Join(cells, "  "))
		b.WriteByte('\n')
	}

	if !m.done {
		finished, total := m.progress()
		fmt.Fprintf(&b, "\n%s %d/%d cores\n", spinnerFrames[m.tick%len(spinnerFrames)], finished, total)
	}
	return b.String()
}

// progress counts rows whose status is terminal.
func (m ProgressModel) progress() (int, int) {
	if m.statusCol < 0 {
		return 0, len(m.rows)
	}
	n := 0
	for _, r := range m.rows {
		if IsFinal(r.fields[m.statusCol]) {
			n++
		}
	}
	return n, len(m.rows)
}

// Done reports whether the program has finished.
func (m ProgressModel) Done() bool {
	return m.done
}

// Err returns the fatal error the program stopped on, if any.
func (m ProgressModel) Err() error {
	return m.err
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// NonEmptyOrDash returns "-" for empty or blank strings.
func NonEmptyOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

// TruncateWithEllipsis shortens value to max bytes, marking the cut with "...".
func TruncateWithEllipsis(value string, max int) string {
	if max <= 0 {
		return ""
	}
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
