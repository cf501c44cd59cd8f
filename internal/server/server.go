// Package server exposes the reconciliation pipeline over HTTP: a health
// probe and a multipart upload endpoint that runs one reconciliation per
// request and returns the JSON report. Uploaded files live in a per-request
// temp directory that is removed when the request finishes.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"fleet-recon/internal/config"
	"fleet-recon/internal/logging"
	"fleet-recon/internal/pipeline"
	"fleet-recon/internal/reconcile"
)

// maxUploadBytes bounds one request's multipart form memory use.
const maxUploadBytes = 64 << 20

// pipelineRunFunc allows overriding the pipeline for testing.
var pipelineRunFunc = pipeline.Run

// Server handles reconciliation requests. The base configuration supplies
// the window, anomaly and billing settings; per-request uploads replace the
// configured sources.
type Server struct {
	base  *config.RunConfig
	rates reconcile.RateSource
}

// NewServer creates a server around a validated base configuration. The rate
// source may be nil when no lookup is configured.
func NewServer(base *config.RunConfig, rates reconcile.RateSource) *Server {
	return &Server{base: base, rates: rates}
}

// Handler returns the routed HTTP handler with panic recovery applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/reconcile", s.handleReconcile)
	return recoverPanics(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReconcile accepts a multipart form with one or more file parts named
// "primary" and "secondary", plus optional "date_from" and "date_to" fields,
// and responds with the JSON report payload.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart request: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	tmpDir, err := os.MkdirTemp("", "fleet-recon-upload-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to stage uploads: %v", err))
		return
	}
	defer os.RemoveAll(tmpDir)

	var sources []config.SourceConfig
	for _, role := range []string{config.RolePrimary, config.RoleSecondary} {
		for i, header := range r.MultipartForm.File[role] {
			path, err := saveUpload(tmpDir, header)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read uploaded file '%s': %v", header.Filename, err))
				return
			}
			sources = append(sources, config.SourceConfig{
				Name: fmt.Sprintf("%s-%d:%s", role, i+1, header.Filename),
				Role: role,
				File: path,
			})
		}
	}
	if len(sources) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded; expected multipart parts named 'primary' and 'secondary'")
		return
	}

	cfg := *s.base
	cfg.Sources = sources
	if v := r.FormValue("date_from"); v != "" {
		cfg.DateFrom = v
	}
	if v := r.FormValue("date_to"); v != "" {
		cfg.DateTo = v
	}
	config.ApplyDefaults(&cfg)
	if err := config.ValidateConfig(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, err := pipelineRunFunc(r.Context(), &cfg, s.rates)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// saveUpload copies one multipart file part into the staging directory,
// keeping the original extension so format dispatch still works.
func saveUpload(dir string, header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("upload has no usable filename")
	}
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}

// recoverPanics converts a handler panic into a 500 error payload so one bad
// request can never take the server down.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Logf(logging.Error, "Panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logf(logging.Error, "Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"status": "error", "message": msg})
}
