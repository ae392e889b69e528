package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"pocketup/internal/config"
)

// Top-level directories of an install root.
const (
	CoresDir     = "Cores"
	AssetsDir    = "Assets"
	PlatformsDir = "Platforms"
	SavesDir     = "Saves"
	SettingsDir  = "Settings"

	// CommonScope is the asset directory shared by all cores of a platform.
	CommonScope = "common"

	metaDirName      = ".pocketup"
	settingsFileName = "pocketup_settings.json"
)

// StagingDir is where release archives are unpacked before being moved into
// place, relative to the install root.
var StagingDir = filepath.Join(metaDirName, "staging")

// InstallPaths captures canonical locations for an install root.
type InstallPaths struct {
	Root         string
	ConfigFile   string
	SettingsFile string
	MetaDir      string
	LogsDir      string
}

// Resolve determines the install root using the optional --path flag or the
// current working directory when the flag is empty.
func Resolve(rootFlag string) (InstallPaths, error) {
	var (
		root string
		err  error
	)

	if rootFlag != "" {
		root, err = filepath.Abs(rootFlag)
	} else {
		root, err = os.Getwd()
	}
	if err != nil {
		return InstallPaths{}, fmt.Errorf("resolve install root: %w", err)
	}

	return newInstallPaths(root), nil
}

func newInstallPaths(root string) InstallPaths {
	metaDir := filepath.Join(root, metaDirName)
	return InstallPaths{
		Root:         root,
		ConfigFile:   filepath.Join(root, config.FileName),
		SettingsFile: settingsFileName,
		MetaDir:      metaDir,
		LogsDir:      filepath.Join(metaDir, "logs"),
	}
}

// Fs returns a filesystem rooted at the install root. All relative paths
// produced by this package are resolved against it.
func (p InstallPaths) Fs() afero.Fs {
	return afero.NewBasePathFs(afero.NewOsFs(), p.Root)
}

// EnsureMetaDirs creates the hidden metadata and logs directories.
func (p InstallPaths) EnsureMetaDirs() error {
	for _, dir := range []string{p.MetaDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// CoreDir is the install directory of a core.
func CoreDir(identifier string) string {
	return filepath.Join(CoresDir, identifier)
}

// AssetDir is the asset directory for platform; scope is either CommonScope
// or a core identifier.
func AssetDir(platform, scope string) string {
	return filepath.Join(AssetsDir, platform, scope)
}

// CommonDir is the shared asset directory of platform.
func CommonDir(platform string) string {
	return AssetDir(platform, CommonScope)
}

// PlatformFile is the display metadata file of platform.
func PlatformFile(platform string) string {
	return filepath.Join(PlatformsDir, platform+".json")
}

// SaveDir is the save directory of a core on platform.
func SaveDir(platform, identifier string) string {
	return filepath.Join(SavesDir, platform, identifier)
}

// CoreSettingsDir is the per-core settings directory written by the device.
func CoreSettingsDir(identifier string) string {
	return filepath.Join(SettingsDir, identifier)
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(fs afero.Fs, path string) (bool, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(fs afero.Fs, path string) (bool, error) {
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
