package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/artifact"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/bm25"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/chunking"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/chunkstore"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/embedding"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/provenance"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/tfidf"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/tokenizer"
)

// runBuild reads every plain-text file in -source, splits each into
// overlapping word windows, fits BM25/TF-IDF over the resulting chunk
// store, optionally embeds every chunk with the ONNX encoder, and writes
// the persisted artifact bundle (C11) to -out.
func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	sourceDir := fs.String("source", "", "directory of plain-text documents to index")
	outDir := fs.String("out", "", "artifact bundle output directory")
	windowWords := fs.Int("window-words", 200, "chunk window size in words")
	overlapWords := fs.Int("overlap-words", 40, "chunk window overlap in words")
	modelPath := fs.String("model-path", "", "ONNX encoder model path (omit to skip the dense index)")
	dimensions := fs.Int("dimensions", 384, "embedding dimensions for the ONNX encoder")
	maxTokens := fs.Int("max-tokens", 256, "max input tokens for the ONNX encoder")
	provenancePath := fs.String("provenance", "", "optional SQLite provenance store path")
	_ = fs.Parse(os.Args[2:])

	if *sourceDir == "" || *outDir == "" {
		fmt.Println("Usage: minedu-retrieval build -source <dir> -out <dir> [flags]")
		os.Exit(1)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := buildArtifactBundle(buildOptions{
		sourceDir: *sourceDir, outDir: *outDir,
		windowWords: *windowWords, overlapWords: *overlapWords,
		modelPath: *modelPath, dimensions: *dimensions, maxTokens: *maxTokens,
		provenancePath: *provenancePath,
	}, logger); err != nil {
		logger.Fatal("build failed", zap.Error(err))
	}
}

type buildOptions struct {
	sourceDir, outDir       string
	windowWords, overlapWords int
	modelPath               string
	dimensions, maxTokens   int
	provenancePath          string
}

func buildArtifactBundle(opts buildOptions, logger *zap.Logger) error {
	entries, err := os.ReadDir(opts.sourceDir)
	if err != nil {
		return fmt.Errorf("read source dir: %w", err)
	}

	splitter := chunking.NewSplitter(opts.windowWords, opts.overlapWords)
	var chunks []chunkstore.Chunk

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(opts.sourceDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("skipping unreadable source file", zap.String("path", path), zap.Error(err))
			continue
		}
		for _, window := range splitter.Split(entry.Name(), string(data)) {
			chunks = append(chunks, chunkstore.Chunk{
				ID:       uint32(len(chunks)),
				Text:     window.Text,
				Title:    entry.Name(),
				Tokens:   tokenizer.Tokenize(window.Text),
				Metadata: map[string]any{"source_id": window.SourceID, "title": entry.Name()},
			})
		}
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks produced from %s", opts.sourceDir)
	}

	store := chunkstore.New(chunks)
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}
	if err := artifact.SaveChunkStore(opts.outDir, store); err != nil {
		return fmt.Errorf("save chunk store: %w", err)
	}

	bmIdx := bm25.Build(store)
	if err := artifact.SaveBM25(opts.outDir, bmIdx); err != nil {
		return fmt.Errorf("save bm25: %w", err)
	}

	tfIdx := tfidf.Build(store)
	if err := artifact.SaveTFIDF(opts.outDir, tfIdx, tfIdx.Rows()); err != nil {
		return fmt.Errorf("save tfidf: %w", err)
	}

	degraded := false
	if opts.modelPath != "" {
		encoder, err := embedding.NewONNXEmbedder(opts.modelPath, opts.dimensions, opts.maxTokens, 0)
		if err != nil {
			logger.Warn("dense encoder unavailable, skipping dense artifact", zap.Error(err))
			degraded = true
		} else {
			defer encoder.Close()
			texts := make([]string, store.Len())
			store.Iter(func(c *chunkstore.Chunk) bool {
				texts[c.ID] = c.Text
				return true
			})
			embeddings, err := encoder.EmbedBatch(context.Background(), texts)
			if err != nil {
				return fmt.Errorf("embed chunks: %w", err)
			}
			if err := artifact.SaveDense(opts.outDir, opts.modelPath, encoder.Dimensions(), embeddings); err != nil {
				return fmt.Errorf("save dense: %w", err)
			}
		}
	} else {
		degraded = true
	}

	if opts.provenancePath != "" {
		prov, err := provenance.Open(opts.provenancePath)
		if err != nil {
			logger.Warn("provenance store unavailable", zap.Error(err))
		} else {
			defer prov.Close()
			if err := prov.Record(context.Background(), "bundle", "retrieval-bundle", 1, "n/a", store.Len(), degraded, ""); err != nil {
				logger.Warn("failed to record build provenance", zap.Error(err))
			}
		}
	}

	logger.Info("artifact bundle built", zap.Int("chunks", store.Len()), zap.String("out", opts.outDir))
	return nil
}
