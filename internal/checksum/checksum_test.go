package checksum

import (
	"fmt"
	"hash/crc32"
	"testing"

	"github.com/spf13/afero"
)

func writeFile(t *testing.T, fs afero.Fs, path, body string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestCompareCRC32(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "a.bin", "hello")
	sum := fmt.Sprintf("%08X", crc32.ChecksumIEEE([]byte("hello")))

	res, err := Compare(fs, "a.bin", sum, CRC32)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res != Match {
		t.Fatalf("expected match for upper-case reference, got %s", res)
	}

	res, err = Compare(fs, "a.bin", "00000000", CRC32)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res != Mismatch {
		t.Fatalf("expected mismatch, got %s", res)
	}
}

func TestCompareMD5(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "key.bin", "hello")

	res, err := Compare(fs, "key.bin", "5d41402abc4b2a76b9719d911017c592", MD5)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res != Match {
		t.Fatalf("expected match, got %s", res)
	}
}

func TestCompareWithoutReference(t *testing.T) {
	fs := afero.NewMemMapFs()
	res, err := Compare(fs, "missing.bin", "", CRC32)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if res != Unknown {
		t.Fatalf("expected unknown, got %s", res)
	}
}

func TestVerifierPasses(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "a.bin", "corrupt")

	enabled := Verifier{Fs: fs, Enabled: true}
	if !enabled.Passes("a.bin", "", CRC32) {
		t.Fatal("expected pass without reference")
	}
	if enabled.Passes("a.bin", "deadbeef", CRC32) {
		t.Fatal("expected failure on mismatch")
	}
	if enabled.Passes("missing.bin", "deadbeef", CRC32) {
		t.Fatal("expected failure on unreadable file")
	}

	disabled := Verifier{Fs: fs}
	if !disabled.Passes("a.bin", "deadbeef", CRC32) {
		t.Fatal("expected pass when verification disabled")
	}
}
