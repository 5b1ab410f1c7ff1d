// Package main is the retrieval service entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/artifact"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/audit"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/cli"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/config"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/embedding"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/fusion"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/provenance"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/ratelimit"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/retrieval"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/safety"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/server"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/minedu-retrieval/config.yaml"

// loadConfig loads config from path. If path is the default and the file
// does not exist, it tries config.yaml in the current directory (for
// development).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if path == defaultConfigPath {
			if unwrap := errors.Unwrap(err); unwrap != nil && os.IsNotExist(unwrap) {
				if cwd, cwdErr := os.Getwd(); cwdErr == nil {
					fallback := filepath.Join(cwd, "config.yaml")
					if _, statErr := os.Stat(fallback); statErr == nil {
						cfg, loadErr := config.Load(fallback)
						if loadErr != nil {
							return nil, "", loadErr
						}
						return cfg, fallback, nil
					}
				}
			}
		}
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "build":
		runBuild()
	case "version", "--version", "-v":
		fmt.Printf("minedu-retrieval version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: minedu-retrieval <command> [flags]

Commands:
  server    start the HTTP search API
  search    run a single query against the server's search endpoint
  build     build an artifact bundle from a directory of plain-text documents
  version   print the version
  help      print this message`)
}

type components struct {
	orchestrator *retrieval.Orchestrator
	auditLog     *audit.Logger
	securityLog  *audit.Logger
	provenance   *provenance.Store
	logger       *zap.Logger
}

func (c *components) Close() {
	c.auditLog.Close()
	c.securityLog.Close()
	if c.provenance != nil {
		c.provenance.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	auditLog, err := audit.Open(cfg.Audit.AuditLogPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	securityLog, err := audit.Open(cfg.Audit.SecurityLogPath)
	if err != nil {
		auditLog.Close()
		return nil, fmt.Errorf("open security log: %w", err)
	}

	var encoder embedding.Embedder
	onnxEncoder, err := embedding.NewONNXEmbedder(cfg.Embedding.ModelPath, cfg.Embedding.Dimensions, cfg.Embedding.MaxTokens, cfg.Embedding.CacheSize)
	if err != nil {
		logger.Warn("dense encoder unavailable, dense index will run degraded", zap.Error(err))
	} else {
		encoder = onnxEncoder
	}

	prov, err := provenance.Open(cfg.Artifact.ProvenancePath)
	if err != nil {
		logger.Warn("provenance store unavailable", zap.Error(err))
	}

	result, err := artifact.LoadAll(context.Background(), cfg.Artifact.Dir, encoder)
	if err != nil {
		auditLog.Close()
		securityLog.Close()
		if prov != nil {
			prov.Close()
		}
		return nil, fmt.Errorf("load artifact bundle: %w", err)
	}
	for _, warning := range result.Warnings {
		logger.Warn("artifact degraded at load", zap.String("warning", warning))
	}
	if prov != nil {
		degraded := len(result.Warnings) > 0
		warningText := ""
		if degraded {
			warningText = result.Warnings[0]
		}
		if err := prov.Record(context.Background(), "bundle", "retrieval-bundle", 1, "n/a", result.ChunkStore.Len(), degraded, warningText); err != nil {
			logger.Warn("failed to record artifact load provenance", zap.Error(err))
		}
	}

	weights := fusion.Weights{BM25: cfg.Fusion.WeightBM25, TFIDF: cfg.Fusion.WeightTFIDF, Dense: cfg.Fusion.WeightDense}
	orchestrator := retrieval.New(
		result.ChunkStore, result.BM25, result.TFIDF, result.Dense,
		ratelimit.New(), safety.NewMonitor(), auditLog, securityLog,
		weights, cfg.Safety.MaxResultsPerQuery, logger,
	)
	admins := make(map[string]bool, len(cfg.Safety.AdminIdentifiers))
	for _, id := range cfg.Safety.AdminIdentifiers {
		admins[id] = true
	}
	orchestrator.WithAccessHours(retrieval.AccessHoursConfig{
		Enabled: cfg.Safety.AllowedHoursEnabled,
		Start:   cfg.Safety.AllowedHoursStart,
		End:     cfg.Safety.AllowedHoursEnd,
		Admins:  admins,
	})

	return &components{orchestrator: orchestrator, auditLog: auditLog, securityLog: securityLog, provenance: prov, logger: logger}, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	srv := server.NewServer(comps.orchestrator, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

type searchHTTPRequest struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id"`
	IPAddress string `json:"ip_address"`
	SessionID string `json:"session_id"`
	TopK      int    `json:"top_k"`
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	topK := fs.Int("top-k", 5, "number of results")
	userID := fs.String("user-id", "cli-user", "identifier used for rate limiting and audit")
	format := fs.String("format", "text", "output format: text, compact, json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: minedu-retrieval search [flags] <query>")
		os.Exit(1)
	}
	queryStr := fs.Arg(0)

	body, _ := json.Marshal(searchHTTPRequest{Query: queryStr, UserID: *userID, SessionID: "cli", TopK: *topK})
	resp, err := http.Post(*serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var result retrieval.Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Printf("Failed to decode response: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteSearchResults(os.Stdout, &result, cli.SearchOutputFormat(*format))
}
