package cli

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"pocketup/internal/instance"
)

const packagerJSON = `{
  "platform_id": "psx",
  "output": "Assets/psx/instances",
  "data_slots": [
    {"id": 100, "filename": "*.cue", "required": true, "sort": "single", "as_filename": true},
    {"id": 101, "filename": "*.bin", "required": true, "sort": "ascending"}
  ]
}`

func writeFile(t *testing.T, fs afero.Fs, path, contents string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildInstances(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "Cores/spiritualized.PSX/instance-packager.json", packagerJSON)
	writeFile(t, fs, "Cores/agg23.NES/core.json", "{}")
	writeFile(t, fs, "Assets/psx/common/Game/Game.cue", "x")
	writeFile(t, fs, "Assets/psx/common/Game/Game.bin", "x")

	syn := instance.New(fs, zerolog.Nop(), nil)

	t.Run("all cores", func(t *testing.T) {
		reports, err := buildInstances(fs, syn, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(reports) != 1 {
			t.Fatalf("got %d reports, want 1: %+v", len(reports), reports)
		}
		r := reports[0]
		if r.Core != "spiritualized.PSX" {
			t.Fatalf("got core %s", r.Core)
		}
		if len(r.Written) != 1 || r.Written[0] != "Assets/psx/instances/Game.json" {
			t.Fatalf("unexpected written list: %v", r.Written)
		}
		if ok, _ := afero.Exists(fs, filepath.Join("Assets", "psx", "instances", "Game.json")); !ok {
			t.Fatal("instance file not written")
		}
	})

	t.Run("single core without packager", func(t *testing.T) {
		reports, err := buildInstances(fs, syn, "agg23.NES")
		if err != nil {
			t.Fatal(err)
		}
		if len(reports) != 0 {
			t.Fatalf("got %d reports, want 0", len(reports))
		}
	})

	t.Run("unknown core", func(t *testing.T) {
		if _, err := buildInstances(fs, syn, "nobody.Nothing"); err == nil {
			t.Fatal("expected error for a core that is not installed")
		}
	})

	t.Run("no cores directory", func(t *testing.T) {
		reports, err := buildInstances(afero.NewMemMapFs(), syn, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(reports) != 0 {
			t.Fatalf("got %d reports, want 0", len(reports))
		}
	})
}

func TestBuildInstancesReportsBrokenPackager(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "Cores/broken.Core/instance-packager.json", "{not json")

	reports, err := buildInstances(fs, instance.New(fs, zerolog.Nop(), nil), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].Error == "" {
		t.Fatalf("expected a single failed report, got %+v", reports)
	}
}
