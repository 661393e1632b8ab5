// Package server exposes stored verifications and on-the-fly reports over HTTP.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fangwenqi/rally/pkg/logger"
	"github.com/fangwenqi/rally/pkg/models"
	"github.com/fangwenqi/rally/pkg/report"
	"github.com/fangwenqi/rally/pkg/storage"
)

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	ReportsDir string
}

// Server serves written reports and renders new ones from stored runs.
type Server struct {
	config   *Config
	db       *storage.Database
	registry *report.Registry
	router   *mux.Router
}

// NewServer creates a report server backed by the verification store.
func NewServer(cfg *Config, db *storage.Database, registry *report.Registry) *Server {
	s := &Server{
		config:   cfg,
		db:       db,
		registry: registry,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	logger.Infof("Report server running at http://%s", addr)

	return http.ListenAndServe(addr, s)
}

// ServeHTTP dispatches requests to the server's router so the server can be
// mounted as a plain http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/verifications", s.handleListVerifications).Methods("GET")
	api.HandleFunc("/report", s.handleReport).Methods("GET")

	// Reports already written to disk.
	fs := http.FileServer(http.Dir(s.config.ReportsDir))
	s.router.PathPrefix("/").Handler(fs)
}

func (s *Server) handleListVerifications(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.ListRecent(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*models.VerificationRun{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(runs); err != nil {
		logger.Errorf("Failed to encode verification list: %v", err)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	uuids := query["uuid"]
	if len(uuids) == 0 {
		http.Error(w, "at least one uuid parameter is required", http.StatusBadRequest)
		return
	}

	format := query.Get("format")
	if format == "" {
		format = report.FormatHTMLStatic
	}

	runs, err := s.db.GetVerifications(uuids)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	reporter, err := s.registry.Create(format, runs, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := reporter.Generate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	contentType := "text/html; charset=utf-8"
	if format == report.FormatJSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := fmt.Fprint(w, out.Print); err != nil {
		logger.Errorf("Failed to write report response: %v", err)
	}
}
