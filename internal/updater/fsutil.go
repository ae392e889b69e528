package updater

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// ErrNotZip is returned when a downloaded release is not a zip archive.
var ErrNotZip = errors.New("release is not a zip archive")

// sniffZip rejects payloads that are not zip archives, such as an HTML error
// page served with a 200, and rewinds f.
func sniffZip(f afero.File) error {
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return fmt.Errorf("inspect release: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind release: %w", err)
	}
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return nil
		}
	}
	return fmt.Errorf("%w: got %s", ErrNotZip, mtype.String())
}

// extractZip unpacks the archive at archivePath into dest, overwriting files
// that already exist. Entries escaping dest are rejected.
func extractZip(fs afero.Fs, archivePath, dest string) error {
	f, err := fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer f.Close()

	if err := sniffZip(f); err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat zip: %w", err)
	}
	reader, err := zip.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	for _, file := range reader.File {
		name := filepath.FromSlash(file.Name)
		target := filepath.Join(dest, name)
		if !within(dest, target) {
			return fmt.Errorf("zip entry %s escapes destination", file.Name)
		}
		if file.FileInfo().IsDir() {
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", target, err)
			}
			continue
		}
		if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("prepare file %s: %w", target, err)
		}
		if err := extractEntry(fs, file, target); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(fs afero.Fs, file *zip.File, target string) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %s: %w", file.Name, err)
	}
	defer rc.Close()

	out, err := fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("copy file %s: %w", target, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}
	return nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// copyTree merges src into dst, overwriting files that exist in both.
func copyTree(fs afero.Fs, src, dst string) error {
	return afero.Walk(fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return fs.MkdirAll(target, 0o755)
		}
		return copyFile(fs, p, target)
	})
}

func copyFile(fs afero.Fs, src, dst string) error {
	source, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	dest, err := fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		return err
	}
	if err := dest.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

// moveTree renames src to dst when dst does not exist yet and merges it
// otherwise. src is gone afterwards.
func moveTree(fs afero.Fs, src, dst string) error {
	exists, err := afero.Exists(fs, dst)
	if err != nil {
		return err
	}
	if !exists {
		if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := fs.Rename(src, dst); err == nil {
			return nil
		}
	}
	if err := copyTree(fs, src, dst); err != nil {
		return err
	}
	return fs.RemoveAll(src)
}

// removeIfExists deletes path and everything below it. A missing path is
// not an error.
func removeIfExists(fs afero.Fs, path string) error {
	if err := fs.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
