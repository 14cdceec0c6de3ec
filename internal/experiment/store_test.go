package experiment

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestStoreSaveAndFindCompatible checks the snapshot round trip: a
// saved snapshot is found again by a configuration with matching
// importance fields.
func TestStoreSaveAndFindCompatible(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	cfg := referenceConfig()
	cfg.ID = Identity(cfg, ImportanceFields)

	snap := &Snapshot{
		Config: *cfg,
		Data: &SampleSet{
			X:   [][][]float64{{{0.1, 0.2}, {0.3, 0.4}}},
			Y:   [][]float64{{1, 0}},
			Min: -3.5,
			Max: 7.25,
		},
		History: History{Acc: []float64{0.5, 0.75}},
	}
	if err := store.Save(snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	found, err := store.FindCompatible(referenceConfig())
	if err != nil {
		t.Fatalf("FindCompatible failed: %v", err)
	}
	if found == nil {
		t.Fatal("expected a compatible snapshot")
	}

	if found.Config.NFilt != cfg.NFilt || found.Config.ID != cfg.ID {
		t.Errorf("snapshot config mismatch: %+v", found.Config)
	}
	if found.Data == nil || found.Data.Len() != 1 {
		t.Fatalf("expected attached sample set, got %+v", found.Data)
	}
	if found.Data.Min != -3.5 || found.Data.Max != 7.25 {
		t.Errorf("sample set bounds lost: min %f max %f", found.Data.Min, found.Data.Max)
	}
	if found.VData != nil {
		t.Error("expected no validation data on snapshot")
	}
	if len(found.History.Acc) != 2 {
		t.Errorf("history lost: %+v", found.History)
	}
}

// TestStoreFindCompatibleMiss checks that a single changed importance
// field makes the stored snapshot invisible.
func TestStoreFindCompatibleMiss(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	cfg := referenceConfig()
	cfg.ID = Identity(cfg, ImportanceFields)
	if err := store.Save(&Snapshot{Config: *cfg}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	changed := referenceConfig()
	changed.NFFT = 1024

	found, err := store.FindCompatible(changed)
	if err != nil {
		t.Fatalf("FindCompatible failed: %v", err)
	}
	if found != nil {
		t.Errorf("expected miss, found snapshot with id %d", found.Config.ID)
	}
}

// TestStoreMissingDirectory checks that a fresh run with no snapshot
// directory is a miss, not an error.
func TestStoreMissingDirectory(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "never-created"), nil)

	found, err := store.FindCompatible(referenceConfig())
	if err != nil {
		t.Fatalf("expected clean miss, got error: %v", err)
	}
	if found != nil {
		t.Error("expected no snapshot from missing directory")
	}
}

// TestStoreIgnoresForeignFiles checks that non-snapshot files in the
// store directory are skipped.
func TestStoreIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(dir, nil)
	found, err := store.FindCompatible(referenceConfig())
	if err != nil {
		t.Fatalf("FindCompatible failed: %v", err)
	}
	if found != nil {
		t.Error("expected miss in directory without snapshots")
	}
}

// TestStoreSaveRequiresIdentity checks that saving an unassigned
// configuration is refused.
func TestStoreSaveRequiresIdentity(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	if err := store.Save(&Snapshot{Config: *referenceConfig()}); err == nil {
		t.Error("expected error for unassigned identity")
	}
}

// TestStoreResume checks the two-state resume outcome: Fresh on an
// empty store, Resumed once a compatible snapshot exists.
func TestStoreResume(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	snap, state, err := store.Resume(referenceConfig())
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if state != Fresh || snap != nil {
		t.Fatalf("expected fresh start, got state %v snap %v", state, snap)
	}

	cfg := referenceConfig()
	cfg.ID = Identity(cfg, ImportanceFields)
	if err := store.Save(&Snapshot{Config: *cfg}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	snap, state, err = store.Resume(referenceConfig())
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if state != Resumed || snap == nil {
		t.Fatalf("expected resumed state with snapshot, got %v", state)
	}
	if state.String() != "resumed" {
		t.Errorf("unexpected state string %q", state.String())
	}
}

// TestDatedDir checks the per-date partition layout.
func TestDatedDir(t *testing.T) {
	at := time.Date(2021, time.March, 9, 15, 4, 5, 0, time.UTC)
	got := DatedDir(filepath.Join("var", "snapshots"), at)
	want := filepath.Join("var", "snapshots", "2021-03-09")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

// TestCheckpointProbe checks checkpoint naming and the stat probe.
func TestCheckpointProbe(t *testing.T) {
	dir := t.TempDir()

	if _, ok := FindCheckpoint(dir, 133572); ok {
		t.Error("expected no checkpoint in empty directory")
	}

	path := CheckpointPath(dir, -133572)
	if filepath.Base(path) != "133572.model" {
		t.Errorf("expected abs-named checkpoint, got %s", filepath.Base(path))
	}

	if err := os.WriteFile(path, []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, ok := FindCheckpoint(dir, 133572)
	if !ok {
		t.Fatal("expected checkpoint to be found")
	}
	if found != path {
		t.Errorf("expected %s, got %s", path, found)
	}
}
