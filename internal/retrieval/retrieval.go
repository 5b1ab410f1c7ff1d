// Package retrieval implements the Retrieval Orchestrator (C12): the
// single public search operation binding sanitize, rate-limit, domain
// checks, query expansion, the three parallel indexes, fusion, and the
// post-check/audit tail end, grounded on the source system's
// SecureHybridSearch.search ten-step flow.
package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/audit"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/bm25"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/chunkstore"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/dense"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/fusion"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/queryexpand"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/ratelimit"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/safety"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/tfidf"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/tokenizer"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/pkg/utils"
)

// MaxResultsPerQuery is the clamp ceiling for top_k.
const MaxResultsPerQuery = 100

// Request is the public search request shape.
type Request struct {
	RawQuery  string
	UserID    string
	IPAddress string
	SessionID string
	TopK      int
}

// Result is one ranked, safety-sanitized hit in a search response.
type Result struct {
	Text          string
	Score         float64
	Method        string
	SearchVariant string
	Metadata      map[string]any
}

// Response is the public search response shape. Notice carries the
// fixed out-of-domain or no-information text when Results is empty by
// design rather than by absence of matches; it is never set alongside
// a non-empty Results.
type Response struct {
	Results []Result
	Notice  string
}

// Orchestrator is C12: it owns no mutable index state of its own and
// treats the chunk store and the three indexes as immutable, shared,
// read-only collaborators (§5).
type Orchestrator struct {
	store              *chunkstore.Store
	bm25               *bm25.Index
	tfidf              *tfidf.Index
	dense              *dense.Index
	limiter            *ratelimit.Limiter
	monitor            *safety.Monitor
	audit              *audit.Logger
	security           *audit.Logger
	weights            fusion.Weights
	maxResultsPerQuery int
	logger             *zap.Logger

	// AccessHours, when Enabled, restricts Search to the [Start, End)
	// local-hour window unless the caller's UserID is in Admins.
	AccessHours AccessHoursConfig
	now         func() time.Time
}

// AccessHoursConfig is the optional business-hours gate (spec §6's
// ALLOWED_HOURS, from the source system's verify_access_hours). Disabled
// by default; when Enabled, UserIDs in Admins bypass the restriction.
type AccessHoursConfig struct {
	Enabled bool
	Start   int
	End     int
	Admins  map[string]bool
}

// New constructs an Orchestrator. Any of bm25Idx/tfidfIdx/denseIdx may
// be nil, meaning that index degraded at load time (C11); search still
// proceeds against whichever indexes are functional.
func New(
	store *chunkstore.Store,
	bm25Idx *bm25.Index,
	tfidfIdx *tfidf.Index,
	denseIdx *dense.Index,
	limiter *ratelimit.Limiter,
	monitor *safety.Monitor,
	auditLog *audit.Logger,
	securityLog *audit.Logger,
	weights fusion.Weights,
	maxResultsPerQuery int,
	logger *zap.Logger,
) *Orchestrator {
	if maxResultsPerQuery <= 0 {
		maxResultsPerQuery = MaxResultsPerQuery
	}
	return &Orchestrator{
		store: store, bm25: bm25Idx, tfidf: tfidfIdx, dense: denseIdx,
		limiter: limiter, monitor: monitor, audit: auditLog, security: securityLog,
		weights: weights, maxResultsPerQuery: maxResultsPerQuery, logger: logger,
		now: time.Now,
	}
}

// WithAccessHours sets the business-hours gate configuration for o and
// returns o; the gate is active only when cfg.Enabled is true.
func (o *Orchestrator) WithAccessHours(cfg AccessHoursConfig) *Orchestrator {
	o.AccessHours = cfg
	return o
}

// Search executes the nine-stage flow of §4.12. It never returns both
// a non-nil error and a non-nil *Response.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*Response, error) {
	if o.bm25 == nil && o.tfidf == nil && o.dense == nil {
		o.logAccessDenied(req, "index_unavailable")
		return nil, safety.NewError(safety.IndexUnavailable, "no index is available")
	}

	// 0. Business-hours gate (optional, disabled by default).
	if o.AccessHours.Enabled && !o.AccessHours.Admins[req.UserID] && !withinAllowedHours(o.AccessHours, o.now()) {
		o.logAccessDenied(req, "outside_allowed_hours")
		return nil, safety.NewError(safety.Blocked, "outside_allowed_hours")
	}

	// 1. Sanitize (8.a).
	sanitized, err := safety.Sanitize(req.RawQuery)
	if err != nil {
		o.handleSanitizeRejection(req, err)
		return nil, err
	}

	// 2. Rate-limit check (C9).
	decision := o.limiter.Check(req.UserID)
	if !decision.Allowed {
		o.logAccessDenied(req, "rate_limit")
		return nil, safety.NewError(safety.RateLimited, decision.Reason)
	}

	// 3. IP block check (Safety Monitor).
	if o.monitor.IsBlocked(req.IPAddress) {
		o.logAccessDenied(req, "blocked")
		return nil, safety.NewError(safety.Blocked, "ip_blocked")
	}

	// 4. Domain pre-check (8.b).
	domainResult := safety.CheckDomain(sanitized)
	if !domainResult.Valid {
		o.logAccessDenied(req, domainResult.Reason)
		return &Response{Notice: domainNotice(domainResult)}, nil
	}

	// 5. Variant generation (C6); top_k clamp.
	variants := queryexpand.Expand(sanitized)
	topK := clamp(req.TopK, 1, o.maxResultsPerQuery)

	// 6. Parallel per-variant, per-index retrieval.
	hits, err := o.collectHits(ctx, variants, topK)
	if err != nil {
		return nil, err
	}

	// 7. Fusion & rerank (C7).
	fused := fusion.Fuse(hits, o.store, o.weights, sanitized, topK)

	// 8. Domain post-check and result sanitization (8.c).
	texts := make([]string, 0, len(fused))
	for _, f := range fused {
		if chunk, err := o.store.Get(f.ChunkID); err == nil {
			texts = append(texts, chunk.Text)
		}
	}
	if !safety.PostCheck(sanitized, texts) {
		return &Response{Notice: noInformationNotice}, nil
	}

	results := make([]Result, 0, len(fused))
	for _, f := range fused {
		chunk, err := o.store.Get(f.ChunkID)
		if err != nil {
			continue
		}
		variantText := sanitized
		if f.SearchVariant >= 0 && f.SearchVariant < len(variants) {
			variantText = variants[f.SearchVariant]
		}
		methods := make([]string, len(f.ContributingMethods))
		for i, m := range f.ContributingMethods {
			methods[i] = string(m)
		}
		results = append(results, Result{
			Text:          safety.MaskPII(chunk.Text),
			Score:         f.FusedScore,
			Method:        strings.Join(methods, ","),
			SearchVariant: variantText,
			Metadata:      safety.SanitizeMetadata(chunk.Metadata),
		})
	}

	// 9. Emit SEARCH audit event (success).
	o.audit.Log(audit.EventSearch, req.UserID, req.IPAddress, req.SessionID, true, "search", "query", map[string]any{
		"query_type": audit.ClassifyQueryType(sanitized),
		"result_count": len(results),
	})

	return &Response{Results: results}, nil
}

func (o *Orchestrator) handleSanitizeRejection(req Request, err error) {
	var safetyErr *safety.Error
	reason := "invalid_input"
	if errors.As(err, &safetyErr) {
		reason = safetyErr.Reason
	}
	queryHash := utils.HashIdentifier(req.RawQuery, 16)
	userHash := utils.HashIdentifier(req.UserID, 16)
	_, blocked := o.monitor.Observe(userHash, queryHash, req.IPAddress, true)
	o.security.Log(audit.EventSecurityAlert, req.UserID, req.IPAddress, req.SessionID, false, "search", "sanitize_reject", map[string]any{
		"reason":   reason,
		"severity": "WARNING",
		"blocked":  blocked,
	})
	o.logAccessDenied(req, "invalid_input")
}

func (o *Orchestrator) logAccessDenied(req Request, reason string) {
	o.audit.Log(audit.EventAccessDenied, req.UserID, req.IPAddress, req.SessionID, false, "search", reason, map[string]any{
		"reason": reason,
	})
}

// collectHits launches BM25/TF-IDF/Dense queries for every variant
// concurrently (bounded to len(variants)*3 <= 24 tasks, per §5) and
// merges the results, tagged with their originating variant index.
func (o *Orchestrator) collectHits(ctx context.Context, variants []string, topK int) ([]fusion.ScoredHit, error) {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		hits []fusion.ScoredHit
	)

	for variantIndex, variant := range variants {
		variantIndex, variant := variantIndex, variant

		if o.bm25 != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tokens := tokenizer.Tokenize(variant)
				bmHits, err := o.bm25.Search(ctx, tokens, topK)
				if err != nil {
					if o.logger != nil {
						o.logger.Warn("bm25 search abandoned for variant", zap.Int("variant", variantIndex), zap.Error(err))
					}
					return
				}
				mu.Lock()
				for _, h := range bmHits {
					hits = append(hits, fusion.ScoredHit{ChunkID: h.ChunkID, Method: fusion.MethodBM25, RawScore: h.Score, VariantIndex: variantIndex})
				}
				mu.Unlock()
			}()
		}

		if o.tfidf != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tfHits, err := o.tfidf.Search(ctx, variant, topK)
				if err != nil {
					if o.logger != nil {
						o.logger.Warn("tfidf search abandoned for variant", zap.Int("variant", variantIndex), zap.Error(err))
					}
					return
				}
				mu.Lock()
				for _, h := range tfHits {
					hits = append(hits, fusion.ScoredHit{ChunkID: h.ChunkID, Method: fusion.MethodTFIDF, RawScore: h.Score, VariantIndex: variantIndex})
				}
				mu.Unlock()
			}()
		}

		if o.dense != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				denseHits, err := o.dense.Search(ctx, variant, topK)
				if err != nil {
					if o.logger != nil {
						o.logger.Warn("dense search failed for variant", zap.Int("variant", variantIndex), zap.Error(err))
					}
					return
				}
				mu.Lock()
				for _, h := range denseHits {
					hits = append(hits, fusion.ScoredHit{ChunkID: h.ChunkID, Method: fusion.MethodDense, RawScore: h.Score, VariantIndex: variantIndex})
				}
				mu.Unlock()
			}()
		}
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, safety.NewError(safety.Timeout, err.Error())
	}
	return hits, nil
}

// withinAllowedHours reports whether t's local hour falls in [Start, End).
// An End <= Start is treated as an overnight window wrapping past midnight.
func withinAllowedHours(cfg AccessHoursConfig, t time.Time) bool {
	hour := t.Hour()
	if cfg.Start <= cfg.End {
		return hour >= cfg.Start && hour < cfg.End
	}
	return hour >= cfg.Start || hour < cfg.End
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

const noInformationNotice = "No se encontró información suficiente para responder a esta consulta dentro del ámbito administrativo, educativo o financiero del MINEDU."

func domainNotice(result safety.DomainResult) string {
	if len(result.Suggestions) == 0 {
		return noInformationNotice
	}
	return noInformationNotice + " " + strings.Join(result.Suggestions, " ")
}
