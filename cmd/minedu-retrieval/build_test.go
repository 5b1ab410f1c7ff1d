package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/artifact"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/embedding"
)

func TestBuildArtifactBundle_producesLoadableBundle(t *testing.T) {
	sourceDir := t.TempDir()
	outDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(sourceDir, "directiva.txt"), []byte("el monto maximo para viaticos nacionales es s/ 320.00 por dia de comision"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sourceDir, "procedimiento.txt"), []byte("el procedimiento de rendicion de cuentas se presenta en mesa de partes"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	err := buildArtifactBundle(buildOptions{
		sourceDir: sourceDir, outDir: outDir,
		windowWords: 50, overlapWords: 10,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("buildArtifactBundle: %v", err)
	}

	result, err := artifact.LoadAll(context.Background(), outDir, embedding.NewMockEmbedder(16))
	if err != nil {
		t.Fatalf("LoadAll on built bundle: %v", err)
	}
	if result.ChunkStore.Len() != 2 {
		t.Errorf("expected 2 chunks, got %d", result.ChunkStore.Len())
	}
	if result.BM25 == nil {
		t.Error("expected BM25 index to load")
	}
	if result.TFIDF == nil {
		t.Error("expected TF-IDF index to load")
	}
}

func TestBuildArtifactBundle_errorsOnEmptySourceDir(t *testing.T) {
	sourceDir := t.TempDir()
	outDir := t.TempDir()
	err := buildArtifactBundle(buildOptions{sourceDir: sourceDir, outDir: outDir, windowWords: 50, overlapWords: 10}, zap.NewNop())
	if err == nil {
		t.Fatal("expected an error when the source directory has no documents")
	}
}
