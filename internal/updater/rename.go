package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"pocketup/internal/paths"
	"pocketup/internal/remote"
	"pocketup/pkg/corespec"
)

// renamePlatform replaces a platform file whose display name is still the
// raw platform id with the curated copy from the rename repository.
func (e *Engine) renamePlatform(ctx context.Context, core *corespec.Core) error {
	r := e.opts.Rename
	if r.Prefix == "" || !strings.HasPrefix(core.Identifier, r.Prefix) {
		return nil
	}

	file := paths.PlatformFile(core.PlatformID)
	contents, err := afero.ReadFile(e.fs, file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", file, err)
	}
	if gjson.GetBytes(contents, "platform.name").String() != core.PlatformID {
		return nil
	}

	entries, err := e.platformListing(ctx)
	if err != nil {
		return err
	}
	want := core.PlatformID + ".json"
	for _, entry := range entries {
		if entry.Name != want || entry.DownloadURL == "" {
			continue
		}
		var buf bytes.Buffer
		if err := e.fetcher.Download(ctx, entry.DownloadURL, &buf); err != nil {
			return fmt.Errorf("fetch platform %s: %w", core.PlatformID, err)
		}
		if !gjson.ValidBytes(buf.Bytes()) {
			return fmt.Errorf("fetch platform %s: invalid document", core.PlatformID)
		}
		if err := afero.WriteFile(e.fs, file, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", file, err)
		}
		e.log.Info().Str("platform", core.PlatformID).Msg("platform renamed")
		return nil
	}
	return nil
}

// platformListing fetches the rename directory once per engine.
func (e *Engine) platformListing(ctx context.Context) ([]remote.ContentEntry, error) {
	e.platformsOnce.Do(func() {
		r := e.opts.Rename
		e.platforms, e.platformsErr = e.releases.Contents(ctx, r.Owner, r.Repo, r.Path)
	})
	return e.platforms, e.platformsErr
}
