package corespec

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	coreSpecificBit   = 1
	platformIndexBit  = 24
	platformIndexMask = 0x3
)

var wordMask = big.NewInt(0xFFFFFFFF)

// Placement is the decoded form of a slot's packed parameter field.
type Placement struct {
	CoreSpecific  bool
	PlatformIndex int
}

// DecodeParameters unpacks a slot parameter value. The empty string stands for
// a null value and decodes to a common slot on platform index 0.
//
// Values are accepted as 0x-prefixed hex or (optionally signed) decimal and are
// reduced to 32 bits with two's complement wraparound before decoding.
func DecodeParameters(raw string) (Placement, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Placement{}, nil
	}
	word, err := parseWord(raw)
	if err != nil {
		return Placement{}, err
	}
	return decodeWord(word), nil
}

func decodeWord(word uint32) Placement {
	// bit 25 is the high bit and bit 24 the low bit of the index.
	return Placement{
		CoreSpecific:  word>>coreSpecificBit&1 == 1,
		PlatformIndex: int(word >> platformIndexBit & platformIndexMask),
	}
}

func parseWord(raw string) (uint32, error) {
	text := raw
	base := 10
	negative := false
	if strings.HasPrefix(text, "-") {
		negative = true
		text = text[1:]
	}
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		text = text[2:]
		base = 16
	}
	n, ok := new(big.Int).SetString(text, base)
	if !ok || text == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidParameters, raw)
	}
	if negative {
		n.Neg(n)
	}
	// And uses two's complement semantics for negative values.
	return uint32(new(big.Int).And(n, wordMask).Uint64()), nil
}
