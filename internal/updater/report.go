package updater

import (
	"pocketup/internal/assets"
	"pocketup/pkg/corespec"
)

// State is the terminal state a core reached during a run.
type State string

const (
	StateSkipped        State = "skipped"
	StateLicenseBlocked State = "license-blocked"
	StateNoRelease      State = "no-release"
	StateUpToDate       State = "up-to-date"
	StateInstalled      State = "installed"
	StateFailed         State = "failed"
)

// Stages reported while a core is in flight.
const (
	StageDownload = "downloading"
	StageInstall  = "installing"
	StageReplace  = "replacing"
	StageRename   = "renaming"
	StageAssets   = "assets"
)

// Report is the outcome of processing a single core.
type Report struct {
	Identifier string
	Version    string
	Platform   string
	State      State
	Assets     assets.Result
	// Replaced names the predecessor core migrated into this one.
	Replaced string
	Err      error
}

// ProgressReporter receives notifications as cores move through a run.
// Implementations must be safe for concurrent use when workers > 1.
type ProgressReporter interface {
	Start(core *corespec.Core)
	Stage(core *corespec.Core, stage string)
	Complete(report Report)
}

// InstalledCore is a summary entry for a core installed during the run.
type InstalledCore struct {
	Identifier string `json:"identifier"`
	Version    string `json:"version"`
	Platform   string `json:"platform"`
}

// CoreError records a core whose processing was aborted.
type CoreError struct {
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// Summary aggregates a run for the caller.
type Summary struct {
	RunID           string          `json:"run_id"`
	InstalledCores  []InstalledCore `json:"installed_cores"`
	InstalledAssets []string        `json:"installed_assets"`
	SkippedAssets   []string        `json:"skipped_assets"`
	MissingLicenses []string        `json:"missing_licenses"`
	MissingBetaKeys []string        `json:"missing_beta_keys"`
	NewCores        []string        `json:"new_cores"`
	Errors          []CoreError     `json:"errors"`
	FirmwareUpdated string          `json:"firmware_updated,omitempty"`
	Reports         []Report        `json:"-"`
}

func (s *Summary) add(r Report) {
	s.Reports = append(s.Reports, r)
	switch r.State {
	case StateInstalled:
		s.InstalledCores = append(s.InstalledCores, InstalledCore{
			Identifier: r.Identifier,
			Version:    r.Version,
			Platform:   r.Platform,
		})
	case StateLicenseBlocked:
		s.MissingLicenses = append(s.MissingLicenses, r.Identifier)
	}
	if r.Err != nil {
		s.Errors = append(s.Errors, CoreError{Identifier: r.Identifier, Message: r.Err.Error()})
	}
	s.InstalledAssets = append(s.InstalledAssets, r.Assets.Installed...)
	s.SkippedAssets = append(s.SkippedAssets, r.Assets.Skipped...)
	if r.Assets.MissingBetaKey {
		s.MissingBetaKeys = append(s.MissingBetaKeys, r.Identifier)
	}
}

type nopReporter struct{}

func (nopReporter) Start(*corespec.Core)         {}
func (nopReporter) Stage(*corespec.Core, string) {}
func (nopReporter) Complete(Report)              {}
