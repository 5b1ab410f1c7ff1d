package provenance

import (
	"context"
	"path/filepath"
	"testing"
)

func TestStore_recordAndRecent(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "provenance.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Record(ctx, "chunks.bin", "chunkstore", 1, "abc123", 42, false, ""); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, "dense.bin", "dense", 1, "def456", 0, true, "dense index degraded: checksum mismatch"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	records, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ArtifactName != "dense.bin" {
		t.Errorf("expected most recent first (dense.bin), got %s", records[0].ArtifactName)
	}
	if !records[0].Degraded {
		t.Error("expected dense.bin record to be marked degraded")
	}
	if records[1].ChunkCount != 42 {
		t.Errorf("expected chunk count 42, got %d", records[1].ChunkCount)
	}
}

func TestStore_recentRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "provenance.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := store.Record(ctx, "chunks.bin", "chunkstore", 1, "hash", 1, false, ""); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected limit of 2 records, got %d", len(records))
	}
}
