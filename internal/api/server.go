// Package api exposes a Supervisor over HTTP and provides the matching
// client used by the CLI.
//
// Routes live under /api. Errors are returned as {"error": "...", "code":
// "..."} with a status derived from the error's category, so clients can
// map them back onto the sentinel errors in internal/errors.
package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Iron-Ham/devboot/internal/detect"
	"github.com/Iron-Ham/devboot/internal/event"
	"github.com/Iron-Ham/devboot/internal/history"
	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/logging"
	"github.com/Iron-Ham/devboot/internal/project"
	"github.com/Iron-Ham/devboot/internal/supervisor"
)

// Service is the supervisor surface the server exposes.
// *supervisor.Supervisor implements it.
type Service interface {
	Projects() []project.Project
	Project(id string) (project.Project, error)
	AddProject(ctx context.Context, p project.Project) (project.Project, error)
	UpdateProject(ctx context.Context, p project.Project) (project.Project, error)
	DeleteProject(ctx context.Context, id string) error

	StartProject(ctx context.Context, id string) error
	StopProject(ctx context.Context, id string) error
	RestartProject(ctx context.Context, id string) error
	SendInput(id, text string) error
	SendInterrupt(id string) error

	Status(id string) supervisor.Status
	Logs(id string) []logbuffer.Line
	LogTail(id string, n int) []logbuffer.Line
	ClearLogs(id string)
	ExportLogs(id string, w io.Writer, format logbuffer.Format) error
	Detect(path string) (detect.Result, error)

	Subscribe(buffer int, types ...string) *event.Subscription
}

// HistorySource answers history queries. *history.Journal implements it.
type HistorySource interface {
	Recent(ctx context.Context, projectID string, limit int) ([]history.Record, error)
}

// ProjectView is a project definition together with its live status.
type ProjectView struct {
	project.Project
	Status supervisor.Status `json:"status"`
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc     Service
	history HistorySource
	logger  *logging.Logger
	router  *mux.Router

	// shutdownTimeout bounds graceful shutdown in ListenAndServe.
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHistory enables the history endpoint.
func WithHistory(h HistorySource) Option {
	return func(s *Server) {
		s.history = h
	}
}

// NewServer creates a server for svc.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		svc:             svc,
		logger:          logging.NopLogger(),
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("api")
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)

	api.HandleFunc("/projects", s.handleListProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects", s.handleAddProject).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}", s.handleGetProject).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}", s.handleUpdateProject).Methods(http.MethodPut)
	api.HandleFunc("/projects/{id}", s.handleDeleteProject).Methods(http.MethodDelete)

	api.HandleFunc("/projects/{id}/start", s.lifecycle(Service.StartProject)).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/stop", s.lifecycle(Service.StopProject)).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/restart", s.lifecycle(Service.RestartProject)).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/interrupt", s.handleInterrupt).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/input", s.handleInput).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id}/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/logs", s.handleLogs).Methods(http.MethodGet)
	api.HandleFunc("/projects/{id}/logs", s.handleClearLogs).Methods(http.MethodDelete)
	api.HandleFunc("/projects/{id}/history", s.handleHistory).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no such endpoint", Code: CodeNotFound})
	})

	r.Use(s.recovery)
	r.Use(s.logging)
	return r
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. ready, if non-nil, receives the bound address once the
// listener is open.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if ready != nil {
		ready(ln.Addr())
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("api listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api shutdown incomplete", "error", err)
		return err
	}
	s.logger.Info("api stopped")
	return nil
}
