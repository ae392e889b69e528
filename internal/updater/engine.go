// Package updater drives installation and refresh of the cores listed in the
// inventory against a local install root.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"pocketup/internal/assets"
	"pocketup/internal/paths"
	"pocketup/internal/remote"
	"pocketup/internal/settings"
	"pocketup/pkg/corespec"
)

var (
	// ErrNotLoaded is returned when Run is called before the inventory and
	// settings were provided.
	ErrNotLoaded = errors.New("inventory and settings are not loaded")
	// ErrUnknownCore is returned when a requested core is not in the inventory.
	ErrUnknownCore = errors.New("unknown core")
)

// Settings is the persisted per-core preference store.
type Settings interface {
	GetCoreSettings(id string) settings.CoreSettings
	EnableCore(id string)
	DisableCore(id string)
	NewCores() []string
	Save() error
}

// Releases resolves core releases and companion files.
type Releases interface {
	LatestRelease(ctx context.Context, owner, repo string) (remote.Release, error)
	ReleaseByTag(ctx context.Context, owner, repo, tag string) (remote.Release, error)
	Contents(ctx context.Context, owner, repo, path string) ([]remote.ContentEntry, error)
}

// Fetcher transfers the body at url into w.
type Fetcher interface {
	Download(ctx context.Context, url string, w io.Writer) error
}

// AssetResolver brings the assets of an installed core up to date.
type AssetResolver interface {
	Resolve(ctx context.Context, core *corespec.Core) (assets.Result, error)
}

// RenameOptions configures the platform display-name fix-up.
type RenameOptions struct {
	Enabled bool
	Prefix  string
	Owner   string
	Repo    string
	Path    string
}

// Options controls engine behaviour.
type Options struct {
	DeleteSkipped     bool
	PreservePlatforms bool
	QueryReleases     bool
	DownloadAssets    bool
	Workers           int
	// LicenseKeyPath is the held license key. Cores requiring a license are
	// not installed while it is missing.
	LicenseKeyPath string
	Rename         RenameOptions
}

// RunOptions selects what a single Run does.
type RunOptions struct {
	// Only restricts the run to one core identifier.
	Only string
	// Clean deletes an installed core before reinstalling it.
	Clean bool
	// AssetsOnly skips the install states and refreshes assets of installed
	// cores.
	AssetsOnly bool
}

// Engine runs the per-core update sequence.
type Engine struct {
	fs       afero.Fs
	settings Settings
	releases Releases
	fetcher  Fetcher
	assets   AssetResolver
	opts     Options
	log      zerolog.Logger
	reporter ProgressReporter

	cores []*corespec.Core

	platformsOnce sync.Once
	platforms     []remote.ContentEntry
	platformsErr  error
}

// New constructs an engine. assets may be nil when asset resolution is off.
func New(fs afero.Fs, store Settings, releases Releases, fetcher Fetcher, resolver AssetResolver, opts Options, log zerolog.Logger) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Engine{
		fs:       fs,
		settings: store,
		releases: releases,
		fetcher:  fetcher,
		assets:   resolver,
		opts:     opts,
		log:      log,
		reporter: nopReporter{},
	}
}

// Load sets the inventory the engine works from.
func (e *Engine) Load(cores []*corespec.Core) {
	e.cores = cores
}

// SetReporter installs a progress reporter.
func (e *Engine) SetReporter(r ProgressReporter) {
	if r == nil {
		r = nopReporter{}
	}
	e.reporter = r
}

// Cores returns the cores a run with opts would process.
func (e *Engine) Cores(opts RunOptions) ([]*corespec.Core, error) {
	if e.cores == nil || e.settings == nil {
		return nil, ErrNotLoaded
	}
	if opts.Only == "" {
		return e.cores, nil
	}
	for _, c := range e.cores {
		if c.Identifier == opts.Only {
			return []*corespec.Core{c}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCore, opts.Only)
}

// Run processes the selected cores and saves the settings store once at the
// end. A failing core never stops the others; its error is recorded in the
// summary.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}

	cores, err := e.Cores(opts)
	if err != nil {
		return summary, err
	}
	// Naming a core to update opts it back in after an uninstall.
	if opts.Only != "" && !opts.AssetsOnly {
		e.settings.EnableCore(opts.Only)
	}

	reports := make([]Report, len(cores))

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i, core := range cores {
		i, core := i, core
		g.Go(func() error {
			e.reporter.Start(core)
			reports[i] = e.processCore(ctx, core, opts)
			e.reporter.Complete(reports[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range reports {
		summary.add(r)
	}
	summary.NewCores = e.settings.NewCores()

	if err := e.settings.Save(); err != nil {
		return summary, fmt.Errorf("save settings: %w", err)
	}
	e.log.Info().
		Str("run", summary.RunID).
		Int("installed", len(summary.InstalledCores)).
		Int("errors", len(summary.Errors)).
		Msg("run complete")
	return summary, nil
}

// processCore isolates a single core: panics are recovered into the report.
// Progress made before the panic is kept: a core already swapped into place
// stays installed.
func (e *Engine) processCore(ctx context.Context, core *corespec.Core, opts RunOptions) (rep Report) {
	rep = Report{Identifier: core.Identifier, Platform: core.PlatformID}
	defer func() {
		if r := recover(); r != nil {
			if rep.State == "" {
				rep.State = StateFailed
			}
			rep.Err = fmt.Errorf("panic: %v", r)
			e.log.Error().Str("core", core.Identifier).Interface("panic", r).Msg("core aborted")
		}
	}()

	e.process(ctx, core, opts, &rep)
	if rep.Err != nil {
		e.log.Error().Err(rep.Err).Str("core", core.Identifier).Msg("core failed")
	}
	return rep
}

func (e *Engine) process(ctx context.Context, core *corespec.Core, opts RunOptions, rep *Report) {
	log := e.log.With().Str("core", core.Identifier).Logger()
	cs := e.settings.GetCoreSettings(core.Identifier)

	if cs.Skip {
		rep.State = StateSkipped
		if e.opts.DeleteSkipped {
			if err := e.removeCore(core.Identifier, false); err != nil {
				rep.Err = err
			}
		}
		return
	}

	if opts.AssetsOnly {
		installed, err := paths.DirExists(e.fs, paths.CoreDir(core.Identifier))
		if err != nil {
			failed(rep, err)
			return
		}
		if !installed {
			rep.State = StateNoRelease
			return
		}
		rep.State = StateUpToDate
		e.refresh(ctx, core, cs, rep)
		return
	}

	if core.RequiresLicense && !e.licenseHeld() {
		log.Warn().Msg("license required")
		rep.State = StateLicenseBlocked
		return
	}

	if err := e.resolveRelease(ctx, core); err != nil {
		failed(rep, err)
		return
	}
	if !core.HasRelease() {
		log.Info().Msg("no release")
		rep.State = StateNoRelease
		e.refresh(ctx, core, cs, rep)
		return
	}

	local := e.installedVersion(core.Identifier)
	rep.Version = core.Version
	if local != "" && local == core.Version && !opts.Clean {
		log.Debug().Str("version", local).Msg("up to date")
		rep.State = StateUpToDate
		e.refresh(ctx, core, cs, rep)
		return
	}

	if err := e.install(ctx, core, opts.Clean); err != nil {
		failed(rep, err)
		return
	}
	rep.State = StateInstalled
	if rep.Version == "" {
		rep.Version = e.installedVersion(core.Identifier)
	}
	log.Info().Str("version", rep.Version).Msg("installed")

	e.reporter.Stage(core, StageReplace)
	replaced, err := e.replaceCheck(core)
	if err != nil {
		rep.Err = err
		return
	}
	rep.Replaced = replaced

	e.refresh(ctx, core, cs, rep)
}

// refresh runs the steps every installed core gets: platform rename and
// asset resolution.
func (e *Engine) refresh(ctx context.Context, core *corespec.Core, cs settings.CoreSettings, rep *Report) {
	if e.opts.Rename.Enabled && cs.RenameEnabled() {
		e.reporter.Stage(core, StageRename)
		if err := e.renamePlatform(ctx, core); err != nil {
			rep.Err = err
			return
		}
	}

	if e.assets == nil || !e.opts.DownloadAssets || !cs.AssetsEnabled() {
		return
	}
	if ok, err := paths.DirExists(e.fs, paths.CoreDir(core.Identifier)); err != nil || !ok {
		return
	}

	e.reporter.Stage(core, StageAssets)
	res, err := e.assets.Resolve(ctx, core)
	rep.Assets = res
	if err != nil {
		rep.Err = err
	}
}

func (e *Engine) licenseHeld() bool {
	if e.opts.LicenseKeyPath == "" {
		return false
	}
	ok, err := paths.FileExists(e.fs, e.opts.LicenseKeyPath)
	return err == nil && ok
}

// installedVersion reads the version of the installed core, or "" when the
// core is missing or unreadable.
func (e *Engine) installedVersion(id string) string {
	info, err := corespec.LoadCoreInfo(e.fs, paths.CoreDir(id))
	if err != nil {
		return ""
	}
	return info.Version
}

// resolveRelease fills in the download URL from the release source when the
// inventory left it empty.
func (e *Engine) resolveRelease(ctx context.Context, core *corespec.Core) error {
	if core.HasRelease() || !e.opts.QueryReleases || core.Repository.Owner == "" || core.Repository.Name == "" {
		return nil
	}

	owner, repo := core.Repository.Owner, core.Repository.Name
	var (
		rel remote.Release
		err error
	)
	if core.Version != "" {
		rel, err = e.releases.ReleaseByTag(ctx, owner, repo, core.Version)
	}
	if core.Version == "" || errors.Is(err, remote.ErrNotFound) {
		rel, err = e.releases.LatestRelease(ctx, owner, repo)
	}
	if errors.Is(err, remote.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	asset, ok := rel.ZipAsset()
	if !ok {
		return nil
	}
	core.DownloadURL = asset.BrowserDownloadURL
	core.Version = rel.Version()
	return nil
}

func failed(rep *Report, err error) {
	rep.State = StateFailed
	rep.Err = err
}
