package remote

import (
	"context"
	"fmt"
	"strings"

	"pocketup/internal/archive"
	"pocketup/pkg/corespec"
)

type inventoryDoc struct {
	Data []inventoryCore `json:"data"`
}

type inventoryCore struct {
	Identifier string              `json:"identifier"`
	PlatformID string              `json:"platform_id"`
	Repository corespec.Repository `json:"repository"`
	Releases   []inventoryRelease  `json:"releases"`
}

type inventoryRelease struct {
	DownloadURL     string `json:"download_url"`
	RequiresLicense bool   `json:"requires_license"`
	Core            struct {
		Metadata struct {
			Version     string   `json:"version"`
			PlatformIDs []string `json:"platform_ids"`
		} `json:"metadata"`
	} `json:"core"`
}

// Inventory downloads the core inventory and returns one Core per entry. The
// newest release (first in the list) is used; entries without releases come
// back with an empty download URL.
func (c *Client) Inventory(ctx context.Context, url string) ([]*corespec.Core, error) {
	var doc inventoryDoc
	if err := c.getJSON(ctx, url, nil, &doc); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}

	cores := make([]*corespec.Core, 0, len(doc.Data))
	for _, entry := range doc.Data {
		if strings.TrimSpace(entry.Identifier) == "" {
			continue
		}
		core := &corespec.Core{
			Identifier: entry.Identifier,
			Repository: entry.Repository,
			PlatformID: entry.PlatformID,
		}
		if len(entry.Releases) > 0 {
			rel := entry.Releases[0]
			core.DownloadURL = rel.DownloadURL
			core.Version = rel.Core.Metadata.Version
			core.RequiresLicense = rel.RequiresLicense
			if core.PlatformID == "" && len(rel.Core.Metadata.PlatformIDs) > 0 {
				core.PlatformID = rel.Core.Metadata.PlatformIDs[0]
			}
		}
		cores = append(cores, core)
	}
	return cores, nil
}

// Blacklist downloads the list of filenames that are never fetched.
func (c *Client) Blacklist(ctx context.Context, url string) ([]string, error) {
	var names []string
	if err := c.getJSON(ctx, url, nil, &names); err != nil {
		return nil, fmt.Errorf("blacklist: %w", err)
	}
	return names, nil
}

// ArchiveIndex downloads and parses the metadata of an asset archive.
// baseURL, when set, is where the archive's files are downloaded from.
func (c *Client) ArchiveIndex(ctx context.Context, name, metadataURL, baseURL string) (*archive.Index, error) {
	body, err := c.getBytes(ctx, metadataURL)
	if err != nil {
		return nil, fmt.Errorf("archive index %s: %w", name, err)
	}
	return archive.Parse(name, baseURL, body)
}
