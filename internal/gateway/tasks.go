package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/recur/internal/service"
	"github.com/flemzord/recur/internal/store"
	"github.com/flemzord/recur/internal/task"
)

// handleCreate creates a new scheduled task for the calling user.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := s.svc.Create(r.Context(), userID(r), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// handleList returns all of the user's tasks.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.List(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req task.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := s.svc.Update(r.Context(), userID(r), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Pause(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Resume(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleRun executes one occurrence synchronously. The response carries the
// settled execution record, so slow agent turns mean slow responses; the
// write timeout is the effective bound.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	exec, err := s.svc.RunNow(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleTaskExecutions(w http.ResponseWriter, r *http.Request) {
	execs, err := s.svc.ListExecutions(r.Context(), userID(r), chi.URLParam(r, "id"), queryLimit(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if execs == nil {
		execs = []*task.Execution{}
	}
	writeJSON(w, http.StatusOK, execs)
}

func (s *Server) handleUserExecutions(w http.ResponseWriter, r *http.Request) {
	execs, err := s.svc.ListUserExecutions(r.Context(), userID(r), queryLimit(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if execs == nil {
		execs = []*task.Execution{}
	}
	writeJSON(w, http.StatusOK, execs)
}

// queryLimit parses the optional ?limit= parameter. Absent or malformed
// means unlimited.
func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// writeError maps service errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
	case errors.Is(err, service.ErrInvalidTask):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("gateway: request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
