// Package settings persists per-core preferences at the install root.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

const fileVersion = 1

// CoreSettings holds the persisted preferences of a single core. Fields added
// later must default to their zero value or be filled in by normalize.
type CoreSettings struct {
	Skip                bool   `json:"skip"`
	DownloadAssets      *bool  `json:"download_assets,omitempty"`
	PlatformRename      *bool  `json:"platform_rename,omitempty"`
	PocketExtras        bool   `json:"pocket_extras"`
	PocketExtrasVersion string `json:"pocket_extras_version,omitempty"`
}

// AssetsEnabled reports whether assets are downloaded for the core.
func (c CoreSettings) AssetsEnabled() bool {
	return c.DownloadAssets == nil || *c.DownloadAssets
}

// RenameEnabled reports whether platform rename applies to the core.
func (c CoreSettings) RenameEnabled() bool {
	return c.PlatformRename == nil || *c.PlatformRename
}

func defaultCoreSettings() CoreSettings {
	return CoreSettings{
		DownloadAssets: boolPtr(true),
		PlatformRename: boolPtr(true),
	}
}

type document struct {
	Version int                     `json:"version"`
	Cores   map[string]CoreSettings `json:"cores"`
}

// Store is the persisted settings file. It is safe for concurrent use; Save
// writes the whole document.
type Store struct {
	fs   afero.Fs
	path string

	mu      sync.Mutex
	doc     document
	created map[string]bool
}

// Load reads the settings file at path, returning an empty store when the
// file does not exist yet.
func Load(fs afero.Fs, path string) (*Store, error) {
	s := &Store{
		fs:      fs,
		path:    path,
		doc:     document{Version: fileVersion, Cores: map[string]CoreSettings{}},
		created: map[string]bool{},
	}

	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(contents, &s.doc); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	s.normalize()
	return s, nil
}

func (s *Store) normalize() {
	if s.doc.Version == 0 {
		s.doc.Version = fileVersion
	}
	if s.doc.Cores == nil {
		s.doc.Cores = map[string]CoreSettings{}
	}
	for id, cs := range s.doc.Cores {
		if cs.DownloadAssets == nil {
			cs.DownloadAssets = boolPtr(true)
		}
		if cs.PlatformRename == nil {
			cs.PlatformRename = boolPtr(true)
		}
		s.doc.Cores[id] = cs
	}
}

// GetCoreSettings returns the settings of a core, creating a default entry
// on first sight.
func (s *Store) GetCoreSettings(id string) CoreSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.doc.Cores[id]
	if !ok {
		cs = defaultCoreSettings()
		s.doc.Cores[id] = cs
		s.created[id] = true
	}
	return cs
}

// UpdateCore replaces the settings of a core.
func (s *Store) UpdateCore(id string, cs CoreSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Cores[id] = cs
}

// EnableCore clears the skip flag of a core.
func (s *Store) EnableCore(id string) {
	s.setSkip(id, false)
}

// DisableCore sets the skip flag of a core.
func (s *Store) DisableCore(id string) {
	s.setSkip(id, true)
}

func (s *Store) setSkip(id string, skip bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.doc.Cores[id]
	if !ok {
		cs = defaultCoreSettings()
		s.created[id] = true
	}
	cs.Skip = skip
	s.doc.Cores[id] = cs
}

// NewCores returns the identifiers first seen during this process, sorted.
func (s *Store) NewCores() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.created))
	for id := range s.created {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Save writes the settings file atomically as indented JSON.
func (s *Store) Save() error {
	s.mu.Lock()
	buf, err := json.MarshalIndent(s.doc, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare settings directory: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer func() { _ = s.fs.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings temp: %w", err)
	}

	if err := s.fs.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func boolPtr(v bool) *bool {
	return &v
}
