package updater

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"pocketup/internal/paths"
	"pocketup/pkg/corespec"
)

// Names removed from a release before it is moved into place.
var junkNames = map[string]bool{
	"__MACOSX":  true,
	".DS_Store": true,
	"Thumbs.db": true,
}

// install downloads the core's release archive, unpacks it into a private
// staging directory and moves the result into the install root.
func (e *Engine) install(ctx context.Context, core *corespec.Core, clean bool) error {
	if clean {
		if err := removeIfExists(e.fs, paths.CoreDir(core.Identifier)); err != nil {
			return fmt.Errorf("clean %s: %w", core.Identifier, err)
		}
	}

	if err := e.fs.MkdirAll(paths.StagingDir, 0o755); err != nil {
		return fmt.Errorf("prepare staging: %w", err)
	}
	stage, err := afero.TempDir(e.fs, paths.StagingDir, core.Identifier+"-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer func() { _ = removeIfExists(e.fs, stage) }()

	e.reporter.Stage(core, StageDownload)
	archivePath := filepath.Join(stage, "release.zip")
	if err := e.downloadRelease(ctx, core.DownloadURL, archivePath); err != nil {
		return err
	}

	e.reporter.Stage(core, StageInstall)
	contents := filepath.Join(stage, "contents")
	if err := extractZip(e.fs, archivePath, contents); err != nil {
		return err
	}
	if err := stripJunk(e.fs, contents); err != nil {
		return fmt.Errorf("clean release: %w", err)
	}
	if e.opts.PreservePlatforms {
		if err := e.dropCustomizedPlatforms(contents); err != nil {
			return err
		}
	}
	return e.commit(stage, contents)
}

func (e *Engine) downloadRelease(ctx context.Context, url, dest string) error {
	f, err := e.fs.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if err := e.fetcher.Download(ctx, url, f); err != nil {
		f.Close()
		return fmt.Errorf("download release: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	return nil
}

// stripJunk deletes operating system metadata from an unpacked release.
func stripJunk(fs afero.Fs, root string) error {
	var doomed []string
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := info.Name()
		if junkNames[name] || strings.HasPrefix(name, "._") {
			doomed = append(doomed, p)
			if info.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, p := range doomed {
		if err := removeIfExists(fs, p); err != nil {
			return err
		}
	}
	return nil
}

// dropCustomizedPlatforms keeps local platform files: a staged
// Platforms/*.json is discarded when the install root already has one.
func (e *Engine) dropCustomizedPlatforms(contents string) error {
	staged := filepath.Join(contents, paths.PlatformsDir)
	entries, err := afero.ReadDir(e.fs, staged)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read staged platforms: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		local, err := paths.FileExists(e.fs, filepath.Join(paths.PlatformsDir, entry.Name()))
		if err != nil {
			return err
		}
		if local {
			if err := e.fs.Remove(filepath.Join(staged, entry.Name())); err != nil {
				return fmt.Errorf("keep local %s: %w", entry.Name(), err)
			}
		}
	}
	return nil
}

// commit moves the staged release into place. Core directories are swapped
// whole by rename; every other top-level directory is merged.
func (e *Engine) commit(stage, contents string) error {
	entries, err := afero.ReadDir(e.fs, contents)
	if err != nil {
		return fmt.Errorf("read release: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			e.log.Debug().Str("file", entry.Name()).Msg("ignoring top-level release file")
			continue
		}
		src := filepath.Join(contents, entry.Name())
		if entry.Name() == paths.CoresDir {
			if err := e.swapCores(stage, src); err != nil {
				return err
			}
			continue
		}
		if err := copyTree(e.fs, src, entry.Name()); err != nil {
			return fmt.Errorf("install %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (e *Engine) swapCores(stage, stagedCores string) error {
	cores, err := afero.ReadDir(e.fs, stagedCores)
	if err != nil {
		return fmt.Errorf("read staged cores: %w", err)
	}
	if err := e.fs.MkdirAll(paths.CoresDir, 0o755); err != nil {
		return fmt.Errorf("prepare %s: %w", paths.CoresDir, err)
	}

	for _, c := range cores {
		if !c.IsDir() {
			continue
		}
		live := paths.CoreDir(c.Name())
		previous := filepath.Join(stage, "previous", c.Name())

		hadPrevious, err := afero.DirExists(e.fs, live)
		if err != nil {
			return err
		}
		if hadPrevious {
			if err := e.fs.MkdirAll(filepath.Dir(previous), 0o755); err != nil {
				return err
			}
			if err := e.fs.Rename(live, previous); err != nil {
				return fmt.Errorf("move aside %s: %w", live, err)
			}
		}
		if err := e.fs.Rename(filepath.Join(stagedCores, c.Name()), live); err != nil {
			if hadPrevious {
				_ = e.fs.Rename(previous, live)
			}
			return fmt.Errorf("move %s into place: %w", live, err)
		}
	}
	return nil
}
