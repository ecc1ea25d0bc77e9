package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/project"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Projects int    `json:"projects"`
}

// InputRequest is the body of POST /api/projects/{id}/input.
type InputRequest struct {
	Text string `json:"text"`
}

// DetectRequest is the body of POST /api/detect.
type DetectRequest struct {
	Path string `json:"path"`
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func (s *Server) view(p project.Project) ProjectView {
	return ProjectView{Project: p, Status: s.svc.Status(p.ID)}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Projects: len(s.svc.Projects())})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects := s.svc.Projects()
	out := make([]ProjectView, len(projects))
	for i, p := range projects {
		out[i] = s.view(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddProject(w http.ResponseWriter, r *http.Request) {
	var p project.Project
	if err := decodeBody(r, &p); err != nil {
		writeError(w, err)
		return
	}
	added, err := s.svc.AddProject(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(added))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Project(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(p))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var p project.Project
	if err := decodeBody(r, &p); err != nil {
		writeError(w, err)
		return
	}
	p.ID = mux.Vars(r)["id"]
	updated, err := s.svc.UpdateProject(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(updated))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteProject(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// lifecycle adapts a start/stop/restart method into a handler that
// responds with the resulting status.
func (s *Server) lifecycle(op func(Service, context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if err := op(s.svc, r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.svc.Status(id))
	}
}

func (s *Server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.svc.SendInterrupt(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status(id))
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.svc.SendInput(id, req.Text); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status(id))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.svc.Project(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status(id))
}

// handleLogs returns the log as a JSON array of lines. With ?format= it
// returns an export in that format instead; ?tail=N keeps the last N lines
// of the JSON array.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := s.svc.Project(id)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	if raw := q.Get("format"); raw != "" {
		format, err := logbuffer.ParseFormat(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", contentType(format))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.Name+"."+string(format)))
		if err := s.svc.ExportLogs(id, w, format); err != nil {
			s.logger.Warn("log export failed", "project_id", id, "error", err)
		}
		return
	}

	if raw := q.Get("tail"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, errors.NewValidationError("must be a non-negative integer").WithField("tail").WithValue(raw))
			return
		}
		writeJSON(w, http.StatusOK, s.svc.LogTail(id, n))
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Logs(id))
}

func contentType(f logbuffer.Format) string {
	switch f {
	case logbuffer.FormatJSON:
		return "application/json"
	case logbuffer.FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.svc.Project(id); err != nil {
		writeError(w, err)
		return
	}
	s.svc.ClearLogs(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Path == "" {
		writeError(w, errors.NewValidationError("must not be empty").WithField("path"))
		return
	}
	res, err := s.svc.Detect(req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "history is disabled", Code: CodeNotFound})
		return
	}
	id := mux.Vars(r)["id"]
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, errors.NewValidationError("must be an integer").WithField("limit").WithValue(raw))
			return
		}
		limit = n
	}
	recs, err := s.history.Recent(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
