package tui

import (
	"github.com/charmbracelet/lipgloss"

	"pocketup/internal/updater"
)

const statusPending = "pending"

var (
	// TitleStyle styles the table title.
	TitleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	blue   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	statusStyles = map[string]lipgloss.Style{
		string(updater.StateInstalled): green,
		string(updater.StateUpToDate):  green,

		statusChecking:        blue,
		updater.StageDownload: blue,
		updater.StageInstall:  blue,
		updater.StageReplace:  blue,
		updater.StageRename:   blue,
		updater.StageAssets:   blue,

		string(updater.StateSkipped):        yellow,
		string(updater.StateNoRelease):      yellow,
		string(updater.StateLicenseBlocked): yellow,

		string(updater.StateFailed): red,

		statusPending: lipgloss.NewStyle().Faint(true),
	}

	finalStatuses = map[string]bool{
		string(updater.StateInstalled):      true,
		string(updater.StateUpToDate):       true,
		string(updater.StateSkipped):        true,
		string(updater.StateNoRelease):      true,
		string(updater.StateLicenseBlocked): true,
		string(updater.StateFailed):         true,
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}

// IsFinal reports whether status ends a core's row.
func IsFinal(status string) bool {
	return finalStatuses[status]
}
