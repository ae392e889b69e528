package updater

import (
	"fmt"

	"github.com/spf13/afero"

	"pocketup/internal/paths"
	"pocketup/pkg/corespec"
)

// replaceCheck migrates a predecessor named in updaters.json into core and
// removes it. It returns the predecessor identifier, or "" when nothing was
// replaced.
func (e *Engine) replaceCheck(core *corespec.Core) (string, error) {
	upd, err := corespec.LoadUpdaters(e.fs, paths.CoreDir(core.Identifier))
	if err != nil {
		return "", err
	}

	for _, pred := range upd.Previous {
		id := pred.Identifier()
		if pred.Author == "" || pred.Shortname == "" || id == core.Identifier {
			continue
		}
		installed, err := paths.DirExists(e.fs, paths.CoreDir(id))
		if err != nil {
			return "", err
		}
		if !installed {
			continue
		}

		platform := pred.PlatformID
		if platform == "" {
			platform = core.PlatformID
		}
		moves := [][2]string{
			{paths.AssetDir(platform, id), paths.AssetDir(core.PlatformID, core.Identifier)},
			{paths.SaveDir(platform, id), paths.SaveDir(core.PlatformID, core.Identifier)},
			{paths.CoreSettingsDir(id), paths.CoreSettingsDir(core.Identifier)},
		}
		for _, m := range moves {
			ok, err := afero.DirExists(e.fs, m[0])
			if err != nil {
				return "", err
			}
			if !ok {
				continue
			}
			if err := moveTree(e.fs, m[0], m[1]); err != nil {
				return "", fmt.Errorf("migrate %s: %w", m[0], err)
			}
		}

		if err := removeIfExists(e.fs, paths.CoreDir(id)); err != nil {
			return "", fmt.Errorf("remove %s: %w", id, err)
		}
		e.settings.DisableCore(id)
		e.log.Info().Str("core", core.Identifier).Str("replaced", id).Msg("replaced predecessor")
		return id, nil
	}
	return "", nil
}
