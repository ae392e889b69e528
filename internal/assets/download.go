package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"pocketup/internal/checksum"
	"pocketup/internal/remote"
)

type outcome int

const (
	present outcome = iota
	downloaded
	skipped
)

// fetch makes sure dest holds a verified copy of the archive entry name. A
// file that exists and passes verification costs no network I/O. Otherwise
// up to MaxAttempts transfers are made; a 404 ends the attempts early.
func (r *Resolver) fetch(ctx context.Context, log zerolog.Logger, dest, name string) outcome {
	ref, _ := r.index.Lookup(name)

	exists, err := afero.Exists(r.fs, dest)
	if err == nil && exists && r.verifier.Passes(dest, ref.CRC32, checksum.CRC32) {
		return present
	}

	url := r.index.URL(name)
	wrote := false
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		if err := r.transfer(ctx, url, dest); err != nil {
			if errors.Is(err, remote.ErrNotFound) {
				log.Warn().Str("file", name).Msg("not found in archive")
				break
			}
			log.Warn().Err(err).Str("file", name).Int("attempt", attempt).Msg("download failed")
			continue
		}
		wrote = true
		if r.verifier.Passes(dest, ref.CRC32, checksum.CRC32) {
			log.Info().Str("file", dest).Msg("installed")
			return downloaded
		}
		log.Warn().Str("file", name).Int("attempt", attempt).Msg("checksum mismatch")
	}

	// Leave no failed download behind that a later run would mistake for a
	// valid file. A file that was there before and never replaced is kept.
	if wrote {
		if err := r.fs.Remove(dest); err != nil && !os.IsNotExist(err) {
			log.Debug().Err(err).Str("file", dest).Msg("remove failed download")
		}
	}
	log.Error().Str("file", name).Msg("skipped after failed downloads")
	return skipped
}

// transfer downloads url into a temp file next to dest and renames it into
// place once the body is complete.
func (r *Resolver) transfer(ctx context.Context, url, dest string) error {
	dir := filepath.Dir(dest)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(r.fs, dir, "."+filepath.Base(dest)+"-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = r.fs.Remove(tmpName) }()

	if err := r.dl.Download(ctx, url, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := r.fs.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("move %s into place: %w", dest, err)
	}
	return nil
}

// installKey copies the held license key to dest. It reports whether a key
// is held at all.
func (r *Resolver) installKey(dest string) (bool, error) {
	if r.opts.LicenseKeyPath == "" {
		return false, nil
	}
	key, err := afero.ReadFile(r.fs, r.opts.LicenseKeyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read license key: %w", err)
	}
	if err := r.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return true, fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	if err := afero.WriteFile(r.fs, dest, key, 0o644); err != nil {
		return true, fmt.Errorf("install license key: %w", err)
	}
	return true, nil
}
