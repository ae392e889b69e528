package corespec

import (
	"encoding/json"
	"fmt"
)

// Sort policies understood by the instance packager.
const (
	SortSingle     = "single"
	SortAscending  = "ascending"
	SortDescending = "descending"
)

// PackagerSlot is a slot template of an instance packager.
type PackagerSlot struct {
	ID         int    `json:"id"`
	Filename   string `json:"filename"`
	Required   bool   `json:"required"`
	Sort       string `json:"sort"`
	AsFilename bool   `json:"as_filename"`
}

// SlotLimit caps the number of slots a single instance file may hold.
type SlotLimit struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// InstancePackager describes how instance files are generated for a platform.
type InstancePackager struct {
	PlatformID string         `json:"platform_id"`
	Output     string         `json:"output"`
	Overwrite  *bool          `json:"overwrite,omitempty"`
	SlotLimit  *SlotLimit     `json:"slot_limit,omitempty"`
	DataSlots  []PackagerSlot `json:"data_slots"`
}

// OverwriteValue returns the effective overwrite flag, defaulting to true.
func (p InstancePackager) OverwriteValue() bool {
	if p.Overwrite == nil {
		return true
	}
	return *p.Overwrite
}

// ParseInstancePackager decodes an instance-packager.json document.
func ParseInstancePackager(contents []byte) (InstancePackager, error) {
	var p InstancePackager
	if err := json.Unmarshal(contents, &p); err != nil {
		return InstancePackager{}, fmt.Errorf("%w: instance-packager.json: %v", ErrMalformedManifest, err)
	}
	if p.PlatformID == "" {
		return InstancePackager{}, fmt.Errorf("%w: instance-packager.json: missing platform_id", ErrMalformedManifest)
	}
	return p, nil
}
