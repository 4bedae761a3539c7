package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/shotprogress/internal/hooks"
	"github.com/JakeFAU/shotprogress/internal/metadata"
)

type workEventRequest struct {
	Handle string `json:"handle"`
}

type workItemRequest struct {
	Handle     string `json:"handle"`
	CurrentRun *int   `json:"current_run"`
	TotalRuns  *int   `json:"total_runs"`
}

type callbackResultDTO struct {
	Name      string `json:"name"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// getProgress handles GET /v1/progress. It returns {"snapshot": {...}} or 503
// when no snapshot source is wired.
func (s *Server) getProgress(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Snapshots == nil {
		s.writeError(w, http.StatusServiceUnavailable, "progress state unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"snapshot": s.deps.Snapshots.Latest()})
}

// fire handles POST /v1/work/{starting,ending} with body {"handle": "..."}. The
// callbacks only enqueue commands, so the response reports dispatch results,
// not progress.
func (s *Server) fire(evt hooks.Type) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Hooks == nil {
			s.writeError(w, http.StatusServiceUnavailable, "hook registry unavailable")
			return
		}
		var req workEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		handle := strings.TrimSpace(req.Handle)
		if handle == "" && evt == hooks.WorkStarting {
			s.writeError(w, http.StatusBadRequest, "handle required")
			return
		}
		results := s.deps.Hooks.Fire(r.Context(), evt, handle)
		out := make([]callbackResultDTO, 0, len(results))
		for _, res := range results {
			dto := callbackResultDTO{Name: res.Name, ElapsedMs: res.Elapsed.Milliseconds()}
			if res.Error != nil {
				dto.Error = res.Error.Error()
				s.logger.Warn("callback failed",
					zap.String("event", string(evt)),
					zap.String("callback", res.Name),
					zap.Error(res.Error),
				)
			}
			out = append(out, dto)
		}
		s.writeJSON(w, http.StatusAccepted, map[string]any{
			"event":     evt,
			"handle":    handle,
			"callbacks": out,
		})
	}
}

// putWorkItem handles PUT /v1/work-items. It returns 204 on success, 400 for
// invalid counters and 404 when the metadata backend is not writable.
func (s *Server) putWorkItem(w http.ResponseWriter, r *http.Request) {
	if s.deps.WorkItems == nil {
		s.writeError(w, http.StatusNotFound, "metadata backend is read-only")
		return
	}
	var req workItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Handle) == "" || req.CurrentRun == nil || req.TotalRuns == nil {
		s.writeError(w, http.StatusBadRequest, "handle, current_run and total_runs required")
		return
	}
	runs := metadata.Runs{Current: *req.CurrentRun, Total: *req.TotalRuns}
	if err := s.deps.WorkItems.Set(req.Handle, runs); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("work item stored",
		zap.String("handle", req.Handle),
		zap.Int("current_run", runs.Current),
		zap.Int("total_runs", runs.Total),
	)
	w.WriteHeader(http.StatusNoContent)
}
