// Package assets resolves the data files a core needs and downloads the ones
// that are missing or fail verification.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"pocketup/internal/archive"
	"pocketup/internal/checksum"
	"pocketup/internal/instance"
	"pocketup/internal/paths"
	"pocketup/pkg/corespec"
)

// MaxAttempts bounds the transfers made for a single file.
const MaxAttempts = 3

const saveExt = ".sav"

// ErrNotInstalled is returned when resolving assets for a core with no
// install directory.
var ErrNotInstalled = errors.New("core is not installed")

// Cores whose assets are managed outside of data.json.
var excludedCores = map[string]bool{
	"Mazamars312.NeoGeo":           true,
	"Mazamars312.NeoGeo_Overdrive": true,
}

// Downloader transfers the body at url into w.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) error
}

// Builder synthesizes instance files for a packager description.
type Builder interface {
	Build(spec corespec.InstancePackager, commonDir string) (instance.Result, error)
}

// Options tunes resolution.
type Options struct {
	VerifyChecksums bool
	BuildInstances  bool
	SkipAlternates  bool
	// LicenseSlotFile is the data slot filename that carries the license key.
	LicenseSlotFile string
	// LicenseKeyPath is the held key file, relative to the filesystem root.
	LicenseKeyPath string
}

// Result is the per-core outcome. Installed lists files transferred during
// this call; files already present and valid are not listed.
type Result struct {
	Installed      []string
	Skipped        []string
	MissingBetaKey bool
}

func (r *Result) merge(o Result) {
	r.Installed = append(r.Installed, o.Installed...)
	r.Skipped = append(r.Skipped, o.Skipped...)
	r.MissingBetaKey = r.MissingBetaKey || o.MissingBetaKey
}

// Resolver satisfies the asset obligations of installed cores.
type Resolver struct {
	fs        afero.Fs
	index     *archive.Index
	blacklist map[string]bool
	dl        Downloader
	builder   Builder
	verifier  checksum.Verifier
	opts      Options
	log       zerolog.Logger
}

// New returns a resolver. index may be nil, in which case no file has a
// reference checksum. builder may be nil when instance synthesis is off.
func New(fs afero.Fs, index *archive.Index, blacklist []string, dl Downloader, builder Builder, opts Options, log zerolog.Logger) *Resolver {
	bl := make(map[string]bool, len(blacklist))
	for _, name := range blacklist {
		bl[name] = true
	}
	return &Resolver{
		fs:        fs,
		index:     index,
		blacklist: bl,
		dl:        dl,
		builder:   builder,
		verifier:  checksum.Verifier{Fs: fs, Enabled: opts.VerifyChecksums},
		opts:      opts,
		log:       log,
	}
}

// Resolve brings the assets of core up to date. Transfer failures never fail
// the call; they are reported in Result.Skipped. Errors are returned for
// unreadable or malformed manifests only.
func (r *Resolver) Resolve(ctx context.Context, core *corespec.Core) (Result, error) {
	var res Result
	log := r.log.With().Str("core", core.Identifier).Logger()

	if excludedCores[core.Identifier] {
		log.Info().Msg("no further assets")
		return res, nil
	}

	coreDir := paths.CoreDir(core.Identifier)
	installed, err := paths.DirExists(r.fs, coreDir)
	if err != nil {
		return res, fmt.Errorf("stat %s: %w", coreDir, err)
	}
	if !installed {
		return res, fmt.Errorf("%s: %w", core.Identifier, ErrNotInstalled)
	}

	spec, ok, err := corespec.LoadInstancePackager(r.fs, coreDir)
	if err != nil {
		return res, err
	}
	if ok {
		if r.opts.BuildInstances && r.builder != nil {
			built, err := r.builder.Build(spec, paths.CommonDir(spec.PlatformID))
			if err != nil {
				return res, fmt.Errorf("build instances: %w", err)
			}
			log.Info().
				Int("written", len(built.Written)).
				Int("existing", len(built.Existing)).
				Int("incomplete", len(built.Incomplete)).
				Int("warnings", len(built.Warnings)).
				Msg("instance files built")
		}
		return res, nil
	}

	info, err := corespec.LoadCoreInfo(r.fs, coreDir)
	if err != nil {
		return res, err
	}
	data, err := corespec.LoadData(r.fs, coreDir)
	if err != nil {
		return res, err
	}

	upd, err := corespec.LoadUpdaters(r.fs, coreDir)
	if err != nil {
		return res, err
	}
	licenseFile := r.opts.LicenseSlotFile
	if upd.License != nil && upd.License.Filename != "" {
		licenseFile = upd.License.Filename
	}

	slots, err := r.resolveSlots(ctx, log, core, info, data, licenseFile)
	res.merge(slots)
	if err != nil {
		return res, err
	}

	inst, err := r.resolveInstances(ctx, log, core, info, data)
	res.merge(inst)
	return res, err
}

func (r *Resolver) resolveSlots(ctx context.Context, log zerolog.Logger, core *corespec.Core, info corespec.CoreInfo, data corespec.Data, licenseFile string) (Result, error) {
	var res Result
	for _, slot := range data.DataSlots {
		placement, err := slot.Parameters.Decode()
		if err != nil {
			return res, fmt.Errorf("slot %s: %w", slot.ID, err)
		}
		platform := info.Platform(placement.PlatformIndex, core.PlatformID)
		root := r.assetRoot(platform, core.Identifier, placement)

		if core.RequiresLicense && licenseFile != "" && slot.Filename == licenseFile {
			core.BetaSlotID = slot.ID
			core.BetaSlotPlatformIndex = placement.PlatformIndex
			ok, err := r.placeBetaKey(filepath.Join(root, slot.Filename), slot.MD5)
			if err != nil {
				return res, err
			}
			if !ok {
				res.MissingBetaKey = true
			}
			continue
		}

		if r.skipName(slot.Filename) {
			continue
		}

		candidates := slot.Candidates()
		if r.opts.SkipAlternates {
			candidates = candidates[:1]
		}
		for _, name := range candidates {
			if r.blacklist[name] {
				continue
			}
			r.record(&res, r.fetch(ctx, log, filepath.Join(root, name), name), filepath.Join(root, name))
		}
	}
	return res, nil
}

func (r *Resolver) resolveInstances(ctx context.Context, log zerolog.Logger, core *corespec.Core, info corespec.CoreInfo, data corespec.Data) (Result, error) {
	var res Result

	files, err := r.instanceFiles(paths.AssetDir(core.PlatformID, core.Identifier))
	if err != nil {
		return res, err
	}

	for _, file := range files {
		inst, err := corespec.LoadInstance(r.fs, file)
		if err != nil {
			return res, fmt.Errorf("%s: %w", file, err)
		}

		for _, islot := range inst.Instance.DataSlots {
			name := islot.Filename
			if r.skipName(path.Base(name)) {
				continue
			}

			var placement corespec.Placement
			dslot, found := data.Slot(islot.ID)
			if found {
				if placement, err = dslot.Parameters.Decode(); err != nil {
					return res, fmt.Errorf("slot %s: %w", dslot.ID, err)
				}
			}
			platform := info.Platform(placement.PlatformIndex, core.PlatformID)
			rel := path.Join(inst.Instance.DataPath, name)
			dest := filepath.Join(r.assetRoot(platform, core.Identifier, placement), filepath.FromSlash(rel))

			if core.BetaSlotID != "" && islot.ID == core.BetaSlotID {
				ok, err := r.placeBetaKey(dest, dslot.MD5)
				if err != nil {
					return res, err
				}
				if !ok {
					log.Warn().Str("file", dest).Msg("beta key does not match")
					res.MissingBetaKey = true
				}
				continue
			}

			key := rel
			if _, ok := r.index.Lookup(key); !ok {
				key = path.Base(name)
			}
			r.record(&res, r.fetch(ctx, log, dest, key), dest)
		}
	}
	return res, nil
}

// placeBetaKey makes sure dest holds a key matching md5. A key already in
// place is kept; the held key is only copied over a missing or mismatching
// one. It reports whether dest ends up acceptable, which needs a held key
// when nothing usable was in place.
func (r *Resolver) placeBetaKey(dest, md5 string) (bool, error) {
	exists, err := afero.Exists(r.fs, dest)
	if err != nil {
		return false, err
	}
	if exists {
		if match, err := checksum.Compare(r.fs, dest, md5, checksum.MD5); err == nil && match != checksum.Mismatch {
			return true, nil
		}
	}

	held, err := r.installKey(dest)
	if err != nil || !held {
		return false, err
	}
	match, err := checksum.Compare(r.fs, dest, md5, checksum.MD5)
	return err == nil && match != checksum.Mismatch, nil
}

// instanceFiles lists the instance json files below dir, skipping hidden
// entries.
func (r *Resolver) instanceFiles(dir string) ([]string, error) {
	ok, err := paths.DirExists(r.fs, dir)
	if err != nil || !ok {
		return nil, err
	}

	var files []string
	err = afero.Walk(r.fs, dir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(fi.Name(), ".") {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !fi.IsDir() && strings.EqualFold(filepath.Ext(fi.Name()), ".json") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

func (r *Resolver) assetRoot(platform, identifier string, placement corespec.Placement) string {
	if placement.CoreSpecific {
		return paths.AssetDir(platform, identifier)
	}
	return paths.CommonDir(platform)
}

func (r *Resolver) skipName(name string) bool {
	return name == "" || name == "." ||
		strings.EqualFold(filepath.Ext(name), saveExt) ||
		r.blacklist[name]
}

func (r *Resolver) record(res *Result, o outcome, dest string) {
	switch o {
	case downloaded:
		res.Installed = append(res.Installed, dest)
	case skipped:
		res.Skipped = append(res.Skipped, dest)
	}
}
