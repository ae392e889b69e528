package corespec

import (
	"encoding/json"
	"fmt"
)

// InstanceMagic is the format tag the device expects in every instance file.
const InstanceMagic = "APF_VER_1"

// InstanceSlot binds a file to a slot id inside an instance file.
type InstanceSlot struct {
	ID       SlotID `json:"id"`
	Filename string `json:"filename"`
}

// InstanceBody is the body of an instance file.
type InstanceBody struct {
	Magic     string         `json:"magic"`
	DataPath  string         `json:"data_path"`
	DataSlots []InstanceSlot `json:"data_slots"`
}

// Instance is a per-game index file consumed by the device.
type Instance struct {
	Instance InstanceBody `json:"instance"`
}

// NewInstance returns an instance with the magic set.
func NewInstance(dataPath string, slots []InstanceSlot) Instance {
	if slots == nil {
		slots = []InstanceSlot{}
	}
	return Instance{Instance: InstanceBody{
		Magic:     InstanceMagic,
		DataPath:  dataPath,
		DataSlots: slots,
	}}
}

// ParseInstance decodes an instance file.
func ParseInstance(contents []byte) (Instance, error) {
	var inst Instance
	if err := json.Unmarshal(contents, &inst); err != nil {
		return Instance{}, fmt.Errorf("%w: instance: %v", ErrMalformedManifest, err)
	}
	return inst, nil
}

// Marshal encodes the instance with the indentation used on device.
func (i Instance) Marshal() ([]byte, error) {
	buf, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode instance: %w", err)
	}
	return buf, nil
}
