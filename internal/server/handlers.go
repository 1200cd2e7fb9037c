package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/leapstack-labs/askdb/internal/sqlguard"
)

// Outcome values for an ask response.
const (
	outcomeExecuted   = "executed"
	outcomeTranslated = "translated"
	outcomeRejected   = "rejected"
	outcomeNoResult   = "no_result"
)

type askRequest struct {
	Question string `json:"question"`
	Limit    int    `json:"limit"`
	DryRun   bool   `json:"dry_run"`
}

type askResponse struct {
	Outcome    string   `json:"outcome"`
	Question   string   `json:"question"`
	SQL        string   `json:"sql,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Tables     []string `json:"tables,omitempty"`
	Columns    []string `json:"columns,omitempty"`
	Rows       [][]any  `json:"rows,omitempty"`
	RowCount   int      `json:"row_count"`
	DurationMS int64    `json:"duration_ms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	started := time.Now()
	res, err := s.deps.Translator.Translate(r.Context(), req.Question)
	if err != nil {
		s.logger.Error("translation failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "schema is not available")
		return
	}

	resp := askResponse{Question: req.Question, Tables: res.Tables}
	if res.NoResult {
		resp.Outcome = outcomeNoResult
		resp.Reason = res.Reason
		s.writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.SQL = res.SQL

	if verdict := sqlguard.Check(res.SQL); !verdict.Accepted {
		s.logger.Warn("generated SQL rejected", "reason", verdict.Reason)
		resp.Outcome = outcomeRejected
		resp.Reason = verdict.Reason
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	if req.DryRun || s.deps.Provider == nil {
		resp.Outcome = outcomeTranslated
		resp.DurationMS = time.Since(started).Milliseconds()
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.RowLimit
	}
	rows, err := s.deps.Provider.Query(r.Context(), s.deps.Provider.ApplyRowLimit(res.SQL, limit))
	if err != nil {
		s.logger.Warn("query execution failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "query execution failed")
		return
	}
	rs, err := rows.Collect(limit)
	if err != nil {
		s.logger.Warn("query execution failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "query execution failed")
		return
	}

	resp.Outcome = outcomeExecuted
	resp.Columns = rs.Columns
	resp.Rows = rs.Rows
	resp.RowCount = rs.RowCount()
	resp.DurationMS = time.Since(started).Milliseconds()
	s.writeJSON(w, http.StatusOK, resp)
}

type tableInfo struct {
	Name        string   `json:"name"`
	FullName    string   `json:"full_name"`
	Summary     string   `json:"summary,omitempty"`
	Columns     int      `json:"columns"`
	PrimaryKey  []string `json:"primary_key,omitempty"`
	ForeignKeys int      `json:"foreign_keys"`
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	db, err := s.deps.Registry.Ensure(r.Context(), s.deps.Build)
	if err != nil {
		s.logger.Error("schema load failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "schema is not available")
		return
	}

	infos := make([]tableInfo, 0, len(db.Tables))
	for _, t := range db.Tables {
		infos = append(infos, tableInfo{
			Name:        t.Name,
			FullName:    t.FullName(),
			Summary:     t.Summary,
			Columns:     len(t.Columns),
			PrimaryKey:  t.PrimaryKey,
			ForeignKeys: len(t.ForeignKeys),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"database": db.Name,
		"tables":   infos,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
