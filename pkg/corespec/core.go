package corespec

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Repository names the source repository of a core release.
type Repository struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// Core is an installable core as listed by the inventory. Beta slot fields are
// filled in while resolving assets for a core that requires a license.
type Core struct {
	Identifier      string     `json:"identifier"`
	Repository      Repository `json:"repository"`
	PlatformID      string     `json:"platform_id"`
	DownloadURL     string     `json:"download_url,omitempty"`
	Version         string     `json:"version,omitempty"`
	RequiresLicense bool       `json:"requires_license,omitempty"`

	BetaSlotID            SlotID `json:"-"`
	BetaSlotPlatformIndex int    `json:"-"`
}

// String returns the identifier with version for log output.
func (c *Core) String() string {
	if c.Version == "" {
		return c.Identifier
	}
	return c.Identifier + " " + c.Version
}

// HasRelease reports whether the inventory resolved a downloadable release.
func (c *Core) HasRelease() bool {
	return strings.TrimSpace(c.DownloadURL) != ""
}

// CoreInfo holds the fields of an installed core.json the updater relies on.
type CoreInfo struct {
	Version     string
	PlatformIDs []string
}

// ParseCoreInfo extracts version and platform ids from a core.json document.
func ParseCoreInfo(contents []byte) (CoreInfo, error) {
	if !gjson.ValidBytes(contents) {
		return CoreInfo{}, fmt.Errorf("%w: core.json is not valid JSON", ErrMalformedManifest)
	}
	meta := gjson.GetBytes(contents, "core.metadata")
	if !meta.Exists() {
		return CoreInfo{}, fmt.Errorf("%w: core.json has no core.metadata", ErrMalformedManifest)
	}
	info := CoreInfo{Version: meta.Get("version").String()}
	for _, id := range meta.Get("platform_ids").Array() {
		info.PlatformIDs = append(info.PlatformIDs, id.String())
	}
	return info, nil
}

// Platform returns the platform id at index, falling back to fallback when the
// index is outside the declared list.
func (i CoreInfo) Platform(index int, fallback string) string {
	if index >= 0 && index < len(i.PlatformIDs) && i.PlatformIDs[index] != "" {
		return i.PlatformIDs[index]
	}
	return fallback
}
