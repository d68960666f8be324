package remotedisk

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mwantia/remotedisk/data"
)

const testRemoteRoot = "s3://bucket/store"

// TestMetadata_SaveLoadRoundTrip verifies that a saved record reproduces an
// identical state when loaded, including object order.
func TestMetadata_SaveLoadRoundTrip(t *testing.T) {
	diskPath := t.TempDir()

	m := newMetadata(testRemoteRoot, diskPath, "file.bin")
	m.AddObject("obj-1", 100)
	m.AddObject("obj-2", 200)
	m.RefCount = 3
	m.ReadOnly = true

	if err := m.Save(true); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := loadMetadata(testRemoteRoot, diskPath, "file.bin", false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.TotalSize != 300 {
		t.Errorf("Expected total size 300, got %d", loaded.TotalSize)
	}
	if loaded.RefCount != 3 {
		t.Errorf("Expected ref count 3, got %d", loaded.RefCount)
	}
	if !loaded.ReadOnly {
		t.Error("Expected read-only flag to survive the round trip")
	}
	if len(loaded.Objects) != 2 {
		t.Fatalf("Expected 2 objects, got %d", len(loaded.Objects))
	}
	if loaded.Objects[0].Path != "obj-1" || loaded.Objects[0].Size != 100 {
		t.Errorf("First object mismatch: %+v", loaded.Objects[0])
	}
	if loaded.Objects[1].Path != "obj-2" || loaded.Objects[1].Size != 200 {
		t.Errorf("Second object mismatch: %+v", loaded.Objects[1])
	}
}

// TestMetadata_AddObject verifies total size accumulation and append order.
func TestMetadata_AddObject(t *testing.T) {
	m := newMetadata(testRemoteRoot, t.TempDir(), "file.bin")

	m.AddObject("id1", 10)
	m.AddObject("id2", 20)

	if m.TotalSize != 30 {
		t.Errorf("Expected total size 30, got %d", m.TotalSize)
	}
	if len(m.Objects) != 2 {
		t.Fatalf("Expected 2 objects, got %d", len(m.Objects))
	}
	if m.Objects[0].Path != "id1" || m.Objects[1].Path != "id2" {
		t.Errorf("Objects out of order: %+v", m.Objects)
	}
}

// TestMetadata_SaveIdempotent verifies that repeated saves of unchanged
// state yield byte-identical output.
func TestMetadata_SaveIdempotent(t *testing.T) {
	diskPath := t.TempDir()

	m := newMetadata(testRemoteRoot, diskPath, "file.bin")
	m.AddObject("obj-1", 42)

	if err := m.Save(false); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	first, err := os.ReadFile(filepath.Join(diskPath, "file.bin"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if err := m.Save(false); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	second, err := os.ReadFile(filepath.Join(diskPath, "file.bin"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("Save is not idempotent:\nfirst:  %q\nsecond: %q", first, second)
	}
}

// TestMetadata_ParseVersions verifies that all three historical format
// versions load, with version 1 absolute paths converted to relative.
func TestMetadata_ParseVersions(t *testing.T) {
	fixtures := map[string]struct {
		content  string
		readOnly bool
	}{
		"v1_absolute": {
			content: "1\n2\t300\n100\t" + testRemoteRoot + "/obj-1\n200\t" + testRemoteRoot + "/obj-2\n1\n",
		},
		"v2_relative": {
			content: "2\n2\t300\n100\tobj-1\n200\tobj-2\n1\n",
		},
		"v3_read_only": {
			content:  "3\n2\t300\n100\tobj-1\n200\tobj-2\n1\n1\n",
			readOnly: true,
		},
	}

	for name, fixture := range fixtures {
		t.Run(name, func(t *testing.T) {
			diskPath := t.TempDir()
			if err := os.WriteFile(filepath.Join(diskPath, "file.bin"), []byte(fixture.content), 0644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			m, err := loadMetadata(testRemoteRoot, diskPath, "file.bin", false)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}

			if m.TotalSize != 300 {
				t.Errorf("Expected total size 300, got %d", m.TotalSize)
			}
			if len(m.Objects) != 2 {
				t.Fatalf("Expected 2 objects, got %d", len(m.Objects))
			}
			if m.Objects[0].Path != "obj-1" || m.Objects[1].Path != "obj-2" {
				t.Errorf("Expected relative object paths, got %+v", m.Objects)
			}
			if m.RefCount != 1 {
				t.Errorf("Expected ref count 1, got %d", m.RefCount)
			}
			if m.ReadOnly != fixture.readOnly {
				t.Errorf("Expected read-only %v, got %v", fixture.readOnly, m.ReadOnly)
			}
		})
	}
}

// TestMetadata_LoadMissing verifies the NotFound and create behaviours.
func TestMetadata_LoadMissing(t *testing.T) {
	diskPath := t.TempDir()

	if _, err := loadMetadata(testRemoteRoot, diskPath, "absent.bin", false); !errors.Is(err, data.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	m, err := loadMetadata(testRemoteRoot, diskPath, "absent.bin", true)
	if err != nil {
		t.Fatalf("Load with create failed: %v", err)
	}

	if m.TotalSize != 0 || len(m.Objects) != 0 {
		t.Errorf("Expected empty record, got %+v", m)
	}
	if m.RefCount != 1 {
		t.Errorf("Expected fresh ref count 1, got %d", m.RefCount)
	}
}

// TestMetadata_Corrupted verifies that malformed sidecars are rejected with
// the corruption errors.
func TestMetadata_Corrupted(t *testing.T) {
	fixtures := map[string]struct {
		content string
		want    error
	}{
		"bad_version":    {"x\n0\t0\n1\n0\n", data.ErrCorruptedMetadata},
		"future_version": {"9\n0\t0\n1\n0\n", data.ErrUnknownVersion},
		"bad_header":     {"3\nnope\n1\n0\n", data.ErrCorruptedMetadata},
		"truncated":      {"3\n2\t300\n100\tobj-1\n", data.ErrCorruptedMetadata},
		"bad_flag":       {"3\n0\t0\n1\n2\n", data.ErrCorruptedMetadata},
	}

	for name, fixture := range fixtures {
		t.Run(name, func(t *testing.T) {
			diskPath := t.TempDir()
			if err := os.WriteFile(filepath.Join(diskPath, "file.bin"), []byte(fixture.content), 0644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			if _, err := loadMetadata(testRemoteRoot, diskPath, "file.bin", false); !errors.Is(err, fixture.want) {
				t.Errorf("Expected %v, got %v", fixture.want, err)
			}
		})
	}
}
