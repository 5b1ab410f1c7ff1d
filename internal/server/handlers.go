package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/retrieval"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/internal/safety"
	"github.com/minedu-gob-pe/vm-expedientes-retrieval/pkg/utils"
)

type searchRequest struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id"`
	IPAddress string `json:"ip_address"`
	SessionID string `json:"session_id"`
	TopK      int    `json:"top_k"`
}

type searchResultView struct {
	Text          string         `json:"text"`
	Score         float64        `json:"score"`
	Method        string         `json:"method"`
	SearchVariant string         `json:"search_variant"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type searchResponseView struct {
	Results []searchResultView `json:"results"`
	Notice  string             `json:"notice,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = r.RemoteAddr
	}

	s.logger.Debug("search request", zap.String("user_hash", utils.HashIdentifier(req.UserID, 16)), zap.Int("top_k", req.TopK))
	resp, err := s.orchestrator.Search(r.Context(), retrieval.Request{
		RawQuery:  req.Query,
		UserID:    req.UserID,
		IPAddress: req.IPAddress,
		SessionID: req.SessionID,
		TopK:      req.TopK,
	})
	if err != nil {
		s.writeSearchError(w, err)
		return
	}

	view := searchResponseView{Notice: resp.Notice}
	for _, r := range resp.Results {
		view.Results = append(view.Results, searchResultView{
			Text: r.Text, Score: r.Score, Method: r.Method, SearchVariant: r.SearchVariant, Metadata: r.Metadata,
		})
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *Server) writeSearchError(w http.ResponseWriter, err error) {
	safetyErr, ok := err.(*safety.Error)
	if !ok {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Error en el sistema")
		return
	}
	s.logger.Warn("search rejected", zap.String("kind", string(safetyErr.Kind)))
	status := http.StatusBadRequest
	switch safetyErr.Kind {
	case safety.RateLimited:
		status = http.StatusTooManyRequests
	case safety.Blocked:
		status = http.StatusForbidden
	case safety.IndexUnavailable:
		status = http.StatusServiceUnavailable
	case safety.Timeout:
		status = http.StatusGatewayTimeout
	case safety.Internal:
		status = http.StatusInternalServerError
	}
	s.respondJSON(w, status, map[string]string{"error": safetyErr.Message, "kind": string(safetyErr.Kind)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
