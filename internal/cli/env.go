package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"pocketup/internal/archive"
	"pocketup/internal/assets"
	"pocketup/internal/config"
	"pocketup/internal/instance"
	"pocketup/internal/logx"
	"pocketup/internal/paths"
	"pocketup/internal/remote"
	"pocketup/internal/settings"
	"pocketup/internal/tui"
	"pocketup/internal/updater"
)

// runEnv holds what every command needs once the install root is known.
type runEnv struct {
	paths  paths.InstallPaths
	cfg    config.Config
	fs     afero.Fs
	log    zerolog.Logger
	closer io.Closer
	store  *settings.Store
	client *remote.Client
	notes  io.Writer
}

// openEnv resolves the install root, loads configuration and settings and
// opens the log. console receives log output at the configured level; pass
// nil to keep the terminal free for the progress table.
func openEnv(console, notes io.Writer) (*runEnv, error) {
	pp, err := paths.Resolve(rootPath)
	if err != nil {
		return nil, err
	}
	if err := pp.EnsureMetaDirs(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(pp.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(pp.Root); err != nil {
		return nil, err
	}
	if errs := config.Errors(cfg.Validate()); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Message
		}
		return nil, fmt.Errorf("invalid %s: %s", config.FileName, strings.Join(msgs, "; "))
	}

	log, closer, err := logx.New(pp, cfg.Log.Level, console)
	if err != nil {
		return nil, err
	}

	fs := pp.Fs()
	store, err := settings.Load(fs, pp.SettingsFile)
	if err != nil {
		closer.Close()
		return nil, err
	}

	client := remote.New(remote.Options{
		Timeout:   cfg.Timeout(),
		GitHubAPI: cfg.Network.GitHubAPI,
	})
	client.SetGitHubToken(cfg.Network.GitHubToken)

	return &runEnv{
		paths:  pp,
		cfg:    cfg,
		fs:     fs,
		log:    log,
		closer: closer,
		store:  store,
		client: client,
		notes:  notes,
	}, nil
}

func (e *runEnv) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// synthesizer builds instance files and prints the packager's slot limit
// message to the notes writer.
func (e *runEnv) synthesizer() *instance.Synthesizer {
	return instance.New(e.fs, e.log, func(msg string) {
		if e.notes != nil {
			fmt.Fprintln(e.notes, msg)
		}
	})
}

// engine loads the remote inventory, blacklist and archive index and wires
// an update engine over them. status may be nil.
func (e *runEnv) engine(ctx context.Context, status *tui.StatusWriter) (*updater.Engine, error) {
	phase := func(msg string) {
		if status != nil {
			status.Update(msg)
		}
	}

	phase("Loading core inventory...")
	cores, err := e.client.Inventory(ctx, e.cfg.Inventory.URL)
	if err != nil {
		return nil, err
	}
	e.log.Info().Int("cores", len(cores)).Msg("inventory loaded")

	var resolver updater.AssetResolver
	if e.cfg.DownloadAssets() {
		var blacklist []string
		if e.cfg.Inventory.BlacklistURL != "" {
			phase("Loading blacklist...")
			blacklist, err = e.client.Blacklist(ctx, e.cfg.Inventory.BlacklistURL)
			if err != nil {
				e.log.Warn().Err(err).Msg("blacklist unavailable")
			}
		}

		phase("Loading archive index...")
		idx, err := e.client.ArchiveIndex(ctx, e.cfg.Archive.Name, e.cfg.MetadataURL(), e.cfg.ArchiveBaseURL())
		if err != nil {
			if !errors.Is(err, remote.ErrNotFound) && !errors.Is(err, remote.ErrTransport) {
				return nil, err
			}
			// Without an index every file is accepted unverified.
			e.log.Warn().Err(err).Msg("archive index unavailable")
			idx = archive.New(e.cfg.Archive.Name, e.cfg.ArchiveBaseURL(), nil)
		}
		idx.Template = e.cfg.Archive.URLTemplate

		resolver = assets.New(e.fs, idx, blacklist, e.client, e.synthesizer(), assets.Options{
			VerifyChecksums: e.cfg.VerifyChecksums(),
			BuildInstances:  e.cfg.BuildInstances(),
			SkipAlternates:  e.cfg.Assets.SkipAlternates,
			LicenseSlotFile: e.cfg.License.KeyFile,
			LicenseKeyPath:  e.cfg.License.KeyFile,
		}, e.log)
	}

	eng := updater.New(e.fs, e.store, e.client, e.client, resolver, updater.Options{
		DeleteSkipped:     e.cfg.Update.DeleteSkipped,
		PreservePlatforms: e.cfg.Update.PreservePlatforms,
		QueryReleases:     e.cfg.Update.QueryReleases,
		DownloadAssets:    e.cfg.DownloadAssets(),
		Workers:           e.cfg.Update.Workers,
		LicenseKeyPath:    e.cfg.License.KeyFile,
		Rename: updater.RenameOptions{
			Enabled: e.cfg.RenameEnabled(),
			Prefix:  e.cfg.Rename.Prefix,
			Owner:   e.cfg.Rename.Owner,
			Repo:    e.cfg.Rename.Repo,
			Path:    e.cfg.Rename.Path,
		},
	}, e.log)
	eng.Load(cores)
	return eng, nil
}
