// Package instance generates instance files from an instance packager
// description and the common asset tree of a platform.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"pocketup/pkg/corespec"
)

// ErrMissingRequiredFiles marks a directory that lacks a file for a required
// slot. Such directories are skipped, not reported as failures.
var ErrMissingRequiredFiles = errors.New("missing required files")

// Notifier receives the packager's slot limit message.
type Notifier func(message string)

// Result lists the outcome of one Build call. Paths are relative to the
// filesystem the synthesizer was created with.
type Result struct {
	Written    []string
	Existing   []string
	Incomplete []string
	Warnings   []string
}

// Synthesizer writes instance files.
type Synthesizer struct {
	fs     afero.Fs
	log    zerolog.Logger
	notify Notifier
}

// New returns a synthesizer over fs. notify may be nil.
func New(fs afero.Fs, log zerolog.Logger, notify Notifier) *Synthesizer {
	return &Synthesizer{fs: fs, log: log, notify: notify}
}

// Build walks every directory below commonDir and writes one instance file
// per directory that satisfies the packager's slot templates.
func (s *Synthesizer) Build(spec corespec.InstancePackager, commonDir string) (Result, error) {
	var res Result

	dirs, err := s.directories(commonDir)
	if err != nil {
		return res, err
	}

	for _, dir := range dirs {
		inst, name, err := s.collect(spec, commonDir, dir)
		if err != nil {
			if errors.Is(err, ErrMissingRequiredFiles) {
				s.log.Debug().Str("dir", dir).Msg("unable to build instance")
				res.Incomplete = append(res.Incomplete, dir)
				continue
			}
			return res, err
		}

		parent, err := filepath.Rel(commonDir, filepath.Dir(dir))
		if err != nil {
			return res, fmt.Errorf("relative path of %s: %w", dir, err)
		}
		target := filepath.Join(spec.Output, parent, name+".json")

		count := len(inst.Instance.DataSlots)
		if count == 0 || (spec.SlotLimit != nil && spec.SlotLimit.Count > 0 && count > spec.SlotLimit.Count) {
			s.log.Warn().Str("instance", target).Int("slots", count).Msg("slot limit exceeded")
			res.Warnings = append(res.Warnings, target)
			continue
		}

		wrote, err := s.write(target, inst, spec.OverwriteValue())
		if err != nil {
			return res, err
		}
		if wrote {
			res.Written = append(res.Written, target)
		} else {
			res.Existing = append(res.Existing, target)
		}
	}

	if len(res.Warnings) > 0 && spec.SlotLimit != nil && spec.SlotLimit.Message != "" && s.notify != nil {
		s.notify(spec.SlotLimit.Message)
	}
	return res, nil
}

// directories lists every non-hidden directory below root in lexical walk
// order, excluding root itself.
func (s *Synthesizer) directories(root string) ([]string, error) {
	ok, err := afero.DirExists(s.fs, root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !ok {
		return nil, nil
	}

	var dirs []string
	err = afero.Walk(s.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() || p == root {
			return nil
		}
		if hidden(info.Name()) {
			return filepath.SkipDir
		}
		dirs = append(dirs, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return dirs, nil
}

func (s *Synthesizer) collect(spec corespec.InstancePackager, commonDir, dir string) (corespec.Instance, string, error) {
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return corespec.Instance{}, "", fmt.Errorf("read %s: %w", dir, err)
	}

	rel, err := filepath.Rel(commonDir, dir)
	if err != nil {
		return corespec.Instance{}, "", fmt.Errorf("relative path of %s: %w", dir, err)
	}
	dataPath := filepath.ToSlash(rel) + "/"
	name := filepath.Base(dir)

	var slots []corespec.InstanceSlot
	for _, tmpl := range spec.DataSlots {
		files, err := match(entries, tmpl.Filename)
		if err != nil {
			return corespec.Instance{}, "", err
		}
		if tmpl.Required && len(files) == 0 {
			return corespec.Instance{}, "", fmt.Errorf("%s: slot %d: %w", dir, tmpl.ID, ErrMissingRequiredFiles)
		}
		sortFiles(files, tmpl.Sort)

		id := tmpl.ID
		for i, file := range files {
			if tmpl.AsFilename && i == 0 {
				name = strings.TrimSuffix(file, path.Ext(file))
			}
			slots = append(slots, corespec.InstanceSlot{
				ID:       corespec.SlotID(fmt.Sprint(id)),
				Filename: file,
			})
			id++
		}
	}

	return corespec.NewInstance(dataPath, slots), name, nil
}

// match returns the non-hidden regular files of a directory whose names
// match pattern.
func match(entries []os.FileInfo, pattern string) ([]string, error) {
	var out []string
	for _, e := range entries {
		if e.IsDir() || hidden(e.Name()) {
			continue
		}
		ok, err := filepath.Match(pattern, e.Name())
		if err != nil {
			return nil, fmt.Errorf("slot pattern %q: %w", pattern, err)
		}
		if ok {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func sortFiles(files []string, policy string) {
	less := func(a, b string) bool {
		la, lb := strings.ToLower(a), strings.ToLower(b)
		if la == lb {
			return a < b
		}
		return la < lb
	}
	if policy == corespec.SortDescending {
		sort.SliceStable(files, func(i, j int) bool { return less(files[j], files[i]) })
		return
	}
	sort.SliceStable(files, func(i, j int) bool { return less(files[i], files[j]) })
}

func (s *Synthesizer) write(target string, inst corespec.Instance, overwrite bool) (bool, error) {
	if !overwrite {
		exists, err := afero.Exists(s.fs, target)
		if err != nil {
			return false, fmt.Errorf("stat %s: %w", target, err)
		}
		if exists {
			return false, nil
		}
	}

	buf, err := inst.Marshal()
	if err != nil {
		return false, err
	}
	if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}
	if err := afero.WriteFile(s.fs, target, buf, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", target, err)
	}
	return true, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
