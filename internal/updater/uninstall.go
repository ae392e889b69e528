package updater

import (
	"fmt"

	"pocketup/internal/paths"
	"pocketup/pkg/corespec"
)

// Uninstall removes an installed core and marks it skipped in the settings
// store so later runs leave it alone. With withAssets its core-specific
// asset directories are removed as well; common assets are shared and kept.
func (e *Engine) Uninstall(id string, withAssets bool) error {
	if err := e.removeCore(id, withAssets); err != nil {
		return err
	}
	e.settings.DisableCore(id)
	if err := e.settings.Save(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// removeCore deletes the core directory and, with withAssets, the core's own
// asset directories. A core that is not installed is left as is.
func (e *Engine) removeCore(id string, withAssets bool) error {
	coreDir := paths.CoreDir(id)
	installed, err := paths.DirExists(e.fs, coreDir)
	if err != nil {
		return err
	}
	if !installed {
		return nil
	}

	var platforms []string
	if withAssets {
		if info, err := corespec.LoadCoreInfo(e.fs, coreDir); err == nil {
			platforms = info.PlatformIDs
		}
	}

	if err := removeIfExists(e.fs, coreDir); err != nil {
		return fmt.Errorf("uninstall %s: %w", id, err)
	}
	for _, p := range platforms {
		if err := removeIfExists(e.fs, paths.AssetDir(p, id)); err != nil {
			return fmt.Errorf("remove assets of %s: %w", id, err)
		}
	}
	e.log.Info().Str("core", id).Bool("assets", withAssets).Msg("uninstalled")
	return nil
}
