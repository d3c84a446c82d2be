package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/apim-template-extractor/internal/models"
)

func (s *Server) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Jobs.List())
}

func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	job := s.Jobs.Get(chi.URLParam(r, "id"))
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob cancels a running job.
func (s *Server) CancelJob(w http.ResponseWriter, r *http.Request) {
	job := s.Jobs.Get(chi.URLParam(r, "id"))
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Done() {
		writeError(w, http.StatusConflict, "job is not running")
		return
	}
	job.Cancel()
	job.AppendLog("CANCELLED: extraction stopped by user")
	writeJSON(w, http.StatusOK, map[string]string{"status": models.JobCancelled})
}

// GetJobBundle returns the summary of the files a completed job wrote.
func (s *Server) GetJobBundle(w http.ResponseWriter, r *http.Request) {
	job := s.Jobs.Get(chi.URLParam(r, "id"))
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	switch job.State() {
	case models.JobCompleted:
		writeJSON(w, http.StatusOK, job.Result)
	case models.JobRunning:
		writeError(w, http.StatusConflict, "job is still running")
	default:
		writeError(w, http.StatusNotFound, "job produced no bundle")
	}
}
