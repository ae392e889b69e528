package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"pocketup/internal/tui"
	"pocketup/internal/updater"
)

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printReports(w io.Writer, reports []updater.Report) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "(no cores)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cols := tui.CoreColumns()
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Header
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range reports {
		fmt.Fprintln(tw, strings.Join(tui.ReportRow(r), "\t"))
	}
	tw.Flush()
}

func printSummary(w io.Writer, s updater.Summary) {
	fmt.Fprintln(w)
	if len(s.InstalledCores) == 0 {
		fmt.Fprintln(w, "No cores installed or updated.")
	} else {
		fmt.Fprintln(w, "Installed:")
		for _, c := range s.InstalledCores {
			fmt.Fprintf(w, "  %s %s (%s)\n", c.Identifier, c.Version, c.Platform)
		}
	}
	printList(w, "Assets installed", s.InstalledAssets)
	printList(w, "Assets skipped", s.SkippedAssets)
	printList(w, "Missing license", s.MissingLicenses)
	printList(w, "Missing beta key", s.MissingBetaKeys)
	printList(w, "New cores", s.NewCores)
	if s.FirmwareUpdated != "" {
		fmt.Fprintf(w, "Firmware updated to %s\n", s.FirmwareUpdated)
	}
	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s: %s\n", e.Identifier, e.Message)
		}
	}
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(w, "  %s\n", item)
	}
}

// heldNotes collects messages produced while the progress table owns the
// terminal. Workers write concurrently.
type heldNotes struct {
	mu    sync.Mutex
	lines []string
}

func (h *heldNotes) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, string(p))
	return len(p), nil
}

// flush writes the held messages to w once, in arrival order.
func (h *heldNotes) flush(w io.Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, line := range h.lines {
		fmt.Fprint(w, line)
	}
	h.lines = nil
}
