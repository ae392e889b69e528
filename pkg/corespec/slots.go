package corespec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// SlotID identifies a data slot. Manifests use either JSON numbers or strings.
type SlotID string

// UnmarshalJSON accepts both numeric and string ids.
func (id *SlotID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SlotID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("slot id: %w", err)
	}
	*id = SlotID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers.
func (id SlotID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Parameters holds the packed placement field of a slot as written in the
// manifest. Null is kept as the empty string.
type Parameters string

// UnmarshalJSON accepts null, JSON numbers and strings.
func (p *Parameters) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Parameters(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("slot parameters: %w", err)
	}
	*p = Parameters(n.String())
	return nil
}

// Decode unpacks the placement field.
func (p Parameters) Decode() (Placement, error) {
	return DecodeParameters(string(p))
}

// DataSlot is a declared data file requirement of a core.
type DataSlot struct {
	ID                 SlotID     `json:"id"`
	Name               string     `json:"name,omitempty"`
	Required           bool       `json:"required,omitempty"`
	Parameters         Parameters `json:"parameters,omitempty"`
	Filename           string     `json:"filename,omitempty"`
	AlternateFilenames []string   `json:"alternate_filenames,omitempty"`
	MD5                string     `json:"md5,omitempty"`
}

// Candidates returns the primary filename followed by the alternates.
func (s DataSlot) Candidates() []string {
	out := make([]string, 0, 1+len(s.AlternateFilenames))
	if s.Filename != "" {
		out = append(out, s.Filename)
	}
	for _, alt := range s.AlternateFilenames {
		if alt != "" {
			out = append(out, alt)
		}
	}
	return out
}

// Data mirrors a core's data.json.
type Data struct {
	Magic     string     `json:"magic,omitempty"`
	DataSlots []DataSlot `json:"data_slots"`
}

type dataFile struct {
	Data Data `json:"data"`
}

// ParseData decodes the contents of a data.json file.
func ParseData(contents []byte) (Data, error) {
	var f dataFile
	if err := json.Unmarshal(contents, &f); err != nil {
		return Data{}, fmt.Errorf("%w: data.json: %v", ErrMalformedManifest, err)
	}
	return f.Data, nil
}

// Slot returns the slot with the given id.
func (d Data) Slot(id SlotID) (DataSlot, bool) {
	for _, slot := range d.DataSlots {
		if slot.ID == id {
			return slot, true
		}
	}
	return DataSlot{}, false
}
