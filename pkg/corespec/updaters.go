package corespec

import (
	"encoding/json"
	"fmt"
)

// Predecessor names a core the current core replaces.
type Predecessor struct {
	Author     string `json:"author"`
	Shortname  string `json:"shortname"`
	PlatformID string `json:"platform_id"`
}

// Identifier returns the predecessor's core identifier.
func (p Predecessor) Identifier() string {
	return p.Author + "." + p.Shortname
}

// License describes the key file a core requires.
type License struct {
	Filename string `json:"filename"`
}

// Updaters mirrors a core's updaters.json.
type Updaters struct {
	Previous []Predecessor `json:"previous"`
	License  *License      `json:"license,omitempty"`
}

// ParseUpdaters decodes an updaters.json document.
func ParseUpdaters(contents []byte) (Updaters, error) {
	var u Updaters
	if err := json.Unmarshal(contents, &u); err != nil {
		return Updaters{}, fmt.Errorf("%w: updaters.json: %v", ErrMalformedManifest, err)
	}
	return u, nil
}
