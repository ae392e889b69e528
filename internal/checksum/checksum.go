// Package checksum compares files on disk against reference checksums.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"strings"

	"github.com/spf13/afero"
)

// Algorithm selects the hash used for a comparison.
type Algorithm int

const (
	CRC32 Algorithm = iota
	MD5
)

func (a Algorithm) String() string {
	switch a {
	case CRC32:
		return "crc32"
	case MD5:
		return "md5"
	default:
		return "unknown"
	}
}

// Result is the outcome of comparing a file against a reference value.
type Result int

const (
	// Unknown means no reference value was available.
	Unknown Result = iota
	Match
	Mismatch
)

func (r Result) String() string {
	switch r {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Sum returns the lowercase hex digest of the file at path.
func Sum(fs afero.Fs, path string, algo Algorithm) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer f.Close()

	var h hash.Hash
	switch algo {
	case MD5:
		h = md5.New()
	default:
		h = crc32.NewIEEE()
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Compare hashes the file and compares it to expected. An empty expected value
// yields Unknown without reading the file.
func Compare(fs afero.Fs, path, expected string, algo Algorithm) (Result, error) {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return Unknown, nil
	}
	sum, err := Sum(fs, path, algo)
	if err != nil {
		return Mismatch, err
	}
	if strings.EqualFold(sum, expected) {
		return Match, nil
	}
	return Mismatch, nil
}

// Verifier applies the install-time checksum rule: a file passes unless
// verification is enabled and a reference exists that it does not match.
type Verifier struct {
	Fs      afero.Fs
	Enabled bool
}

// Passes reports whether the file at path is acceptable. Read errors count as
// a failed verification.
func (v Verifier) Passes(path, expected string, algo Algorithm) bool {
	if !v.Enabled {
		return true
	}
	res, err := Compare(v.Fs, path, expected, algo)
	if err != nil {
		return false
	}
	return res != Mismatch
}
