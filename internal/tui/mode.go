package tui

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// OutputMode describes how progress output is rendered.
type OutputMode int

const (
	// ModeTUI renders a live table.
	ModeTUI OutputMode = iota
	// ModePlain prints a static table when the run completes.
	ModePlain
	// ModeJSON prints the run summary as JSON.
	ModeJSON
)

// DetectMode picks the output mode for out. The live table is only used on
// an interactive terminal outside CI.
func DetectMode(out io.Writer, jsonOutput bool) OutputMode {
	if jsonOutput {
		return ModeJSON
	}
	if os.Getenv("CI") != "" {
		return ModePlain
	}
	if term := os.Getenv("TERM"); term == "" || strings.EqualFold(term, "dumb") {
		return ModePlain
	}
	f, ok := out.(*os.File)
	if !ok {
		return ModePlain
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return ModePlain
	}
	return ModeTUI
}
