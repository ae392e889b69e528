package corespec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// File names inside an installed core directory.
const (
	CoreFile             = "core.json"
	DataFile             = "data.json"
	InstancePackagerFile = "instance-packager.json"
	UpdatersFile         = "updaters.json"
)

// LoadCoreInfo reads core.json from a core directory.
func LoadCoreInfo(fs afero.Fs, coreDir string) (CoreInfo, error) {
	contents, err := afero.ReadFile(fs, filepath.Join(coreDir, CoreFile))
	if err != nil {
		return CoreInfo{}, fmt.Errorf("read core.json: %w", err)
	}
	return ParseCoreInfo(contents)
}

// LoadData reads data.json from a core directory.
func LoadData(fs afero.Fs, coreDir string) (Data, error) {
	contents, err := afero.ReadFile(fs, filepath.Join(coreDir, DataFile))
	if err != nil {
		return Data{}, fmt.Errorf("read data.json: %w", err)
	}
	return ParseData(contents)
}

// LoadInstancePackager reads instance-packager.json from a core directory. The
// boolean result is false when the core declares no packager.
func LoadInstancePackager(fs afero.Fs, coreDir string) (InstancePackager, bool, error) {
	contents, err := afero.ReadFile(fs, filepath.Join(coreDir, InstancePackagerFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return InstancePackager{}, false, nil
		}
		return InstancePackager{}, false, fmt.Errorf("read instance-packager.json: %w", err)
	}
	p, err := ParseInstancePackager(contents)
	if err != nil {
		return InstancePackager{}, false, err
	}
	return p, true, nil
}

// LoadUpdaters reads updaters.json from a core directory. A missing file yields
// an empty value.
func LoadUpdaters(fs afero.Fs, coreDir string) (Updaters, error) {
	contents, err := afero.ReadFile(fs, filepath.Join(coreDir, UpdatersFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Updaters{}, nil
		}
		return Updaters{}, fmt.Errorf("read updaters.json: %w", err)
	}
	return ParseUpdaters(contents)
}

// LoadInstance reads a single instance file.
func LoadInstance(fs afero.Fs, path string) (Instance, error) {
	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		return Instance{}, fmt.Errorf("read instance: %w", err)
	}
	return ParseInstance(contents)
}
