package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"

	"github.com/chainwatch/chainwatch/constant"
	"github.com/chainwatch/chainwatch/cron"
	"github.com/chainwatch/chainwatch/state"
)

const (
	defaultValidatorLimit = 100
	defaultPriceLimit     = 50
	maxListLimit          = 1000
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleChains handles GET /api/v1/chains
func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	registered := s.registry.Chains()
	snapshots := make([]interface{}, 0, len(registered))
	for _, c := range registered {
		snapshots = append(snapshots, describe(c))
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: snapshots, Timestamp: time.Now().UTC()})
}

// handleChain handles GET /api/v1/chains/{name}
func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: describe(c), Timestamp: time.Now().UTC()})
}

// handleValidators handles GET /api/v1/chains/{name}/validators?limit=<n>&include_removed=<bool>
func (s *Server) handleValidators(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r, defaultValidatorLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	includeRemoved := cast.ToBool(r.URL.Query().Get("include_removed"))

	owner, ok := c.(databaseOwner)
	if !ok || owner.DB() == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s has no validator database", c.Name()))
		return
	}

	validators, err := owner.DB().ListValidators(limit, includeRemoved)
	if err != nil {
		s.logger.Error().Err(err).Str("chain", c.Name()).Msg("failed to list validators")
		writeError(w, http.StatusInternalServerError, "failed to list validators")
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: validators, Timestamp: time.Now().UTC()})
}

// handlePrices handles GET /api/v1/chains/{name}/prices?limit=<n>
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookup(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r, defaultPriceLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner, ok := c.(databaseOwner)
	if !ok || owner.DB() == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s has no price history", c.Name()))
		return
	}

	snapshots, err := owner.DB().ListPriceSnapshots(limit)
	if err != nil {
		s.logger.Error().Err(err).Str("chain", c.Name()).Msg("failed to list price snapshots")
		writeError(w, http.StatusInternalServerError, "failed to list price history")
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: snapshots, Timestamp: time.Now().UTC()})
}

// handleJobs handles GET /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	statuses := make([]cron.JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		statuses = append(statuses, job.Status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Operation < statuses[j].Operation })
	writeJSON(w, http.StatusOK, QueryResponse{Data: statuses, Timestamp: time.Now().UTC()})
}

// handleDatabases handles GET /api/v1/databases
func (s *Server) handleDatabases(w http.ResponseWriter, r *http.Request) {
	statter, ok := s.registry.(databaseStatter)
	if !ok {
		writeError(w, http.StatusNotFound, "databases are not enabled")
		return
	}
	stats, ok := statter.DatabaseStats()
	if !ok {
		writeError(w, http.StatusNotFound, "databases are not enabled")
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: stats, Timestamp: time.Now().UTC()})
}

// handleRefresh handles POST /api/v1/refresh/{operation}?async=<bool>
//
// A synchronous refresh runs one fan-out round and returns its report. An
// async refresh nudges the scheduled job for the operation and returns 202.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	operation := mux.Vars(r)["operation"]
	switch operation {
	case constant.OperationData, constant.OperationPrices, constant.OperationDatabase:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown operation %q", operation))
		return
	}

	if cast.ToBool(r.URL.Query().Get("async")) {
		job, ok := s.jobs[operation]
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no scheduled job for %s", operation))
			return
		}
		job.ForceRun()
		writeJSON(w, http.StatusAccepted, QueryResponse{Data: job.Status(), Timestamp: time.Now().UTC()})
		return
	}

	report, err := s.registry.Run(r.Context(), operation)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, NewRefreshResponse(report))
}

// lookup resolves {name}, answering 404 with the registry's message when it
// is not supported.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (state.Chain, bool) {
	c, err := s.registry.Get(mux.Vars(r)["name"])
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, state.ErrUnsupportedChain) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return nil, false
	}
	return c, true
}

func describe(c state.Chain) interface{} {
	if snap, ok := c.(snapshotter); ok {
		return snap.Snapshot()
	}
	return map[string]string{"name": c.Name()}
}

func parseLimit(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := cast.ToIntE(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

// NewRefreshResponse flattens a fan-out report for JSON output.
func NewRefreshResponse(report state.Report) RefreshResponse {
	resp := RefreshResponse{
		Operation: report.Operation,
		Results:   make([]ChainResult, 0, len(report.Results)),
		Failed:    report.Failed(),
	}
	if resp.Failed == nil {
		resp.Failed = []string{}
	}
	for _, res := range report.Results {
		cr := ChainResult{
			Chain:      res.Chain,
			OK:         res.Err == nil,
			DurationMS: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			cr.Error = res.Err.Error()
		}
		resp.Results = append(resp.Results, cr)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
