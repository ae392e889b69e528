package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"pocketup/internal/updater"
	"pocketup/pkg/corespec"
)

// Column headers of the core table.
const (
	ColCore     = "CORE"
	ColPlatform = "PLATFORM"
	ColVersion  = "VERSION"
	ColStatus   = "STATUS"
	ColDetail   = "DETAIL"
)

const statusChecking = "checking"

// CoreColumns is the layout of the core table.
func CoreColumns() []Column {
	return []Column{
		{Header: ColCore, Width: 28},
		{Header: ColPlatform, Width: 12},
		{Header: ColVersion, Width: 10},
		{Header: ColStatus, Width: 15},
		{Header: ColDetail, Width: 40},
	}
}

// CoreRow is the initial row of a core.
func CoreRow(core *corespec.Core) []string {
	return []string{core.Identifier, core.PlatformID, NonEmptyOrDash(core.Version), statusPending, ""}
}

// ReportRow renders a finished core in column order.
func ReportRow(r updater.Report) []string {
	fields := ReportFields(r)
	cols := CoreColumns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = fields[c.Header]
	}
	return out
}

// ReportFields maps a finished core to column values.
func ReportFields(r updater.Report) map[string]string {
	return map[string]string{
		ColCore:     r.Identifier,
		ColPlatform: r.Platform,
		ColVersion:  NonEmptyOrDash(r.Version),
		ColStatus:   string(r.State),
		ColDetail:   detail(r),
	}
}

func detail(r updater.Report) string {
	if r.Err != nil {
		return r.Err.Error()
	}
	var parts []string
	if r.Replaced != "" {
		parts = append(parts, "replaced "+r.Replaced)
	}
	if n := len(r.Assets.Installed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d assets", n))
	}
	if n := len(r.Assets.Skipped); n > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", n))
	}
	if r.Assets.MissingBetaKey {
		parts = append(parts, "beta key missing")
	}
	return strings.Join(parts, ", ")
}

// CoreReporter forwards engine progress into a running program.
type CoreReporter struct {
	send func(tea.Msg)
}

// NewCoreReporter wraps send, usually tea.Program.Send.
func NewCoreReporter(send func(tea.Msg)) *CoreReporter {
	return &CoreReporter{send: send}
}

// Start implements updater.ProgressReporter.
func (r *CoreReporter) Start(core *corespec.Core) {
	r.send(RowUpdateMsg{Key: core.Identifier, Fields: map[string]string{ColStatus: statusChecking}})
}

// Stage implements updater.ProgressReporter.
func (r *CoreReporter) Stage(core *corespec.Core, stage string) {
	r.send(RowUpdateMsg{Key: core.Identifier, Fields: map[string]string{
		ColStatus:  stage,
		ColVersion: NonEmptyOrDash(core.Version),
	}})
}

// Complete implements updater.ProgressReporter.
func (r *CoreReporter) Complete(rep updater.Report) {
	r.send(RowUpdateMsg{Key: rep.Identifier, Fields: ReportFields(rep)})
}
