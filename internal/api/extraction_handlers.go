package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rflorenc/apim-template-extractor/internal/config"
	"github.com/rflorenc/apim-template-extractor/internal/extract"
	"github.com/rflorenc/apim-template-extractor/internal/logging"
	"github.com/rflorenc/apim-template-extractor/internal/output"
	"github.com/rflorenc/apim-template-extractor/internal/platform"
)

// PlatformSource reads from the management API described by cfg.
func PlatformSource(cfg *config.Config, logger *slog.Logger) extract.Source {
	opts := append(cfg.ClientOptions(), platform.WithLogger(logger))
	client := platform.NewClient(cfg.Service(), platform.DefaultTokenSource(cfg.Token), opts...)
	return platform.NewSource(client, logger)
}

// RunExtraction starts an extraction job. The body is a config document
// using the command-line flag names; unset fields come from the server
// defaults. Without an output folder the job writes below the temp dir.
func (s *Server) RunExtraction(w http.ResponseWriter, r *http.Request) {
	var cfg config.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	cfg.Fill(s.Defaults)
	cfg.ApplyDefaults()
	perJobFolder := cfg.FileFolder == ""
	if perJobFolder {
		cfg.FileFolder = filepath.Join(os.TempDir(), "apimextract")
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := s.Jobs.Create("extract", cfg.SourceService)
	if perJobFolder {
		cfg.FileFolder = filepath.Join(cfg.FileFolder, job.ID)
	}
	ctx, cancel := context.WithCancel(context.Background())
	job.SetCancel(cancel)

	lc := cfg.Logging()
	lc.Output = job
	logger := logging.New(lc)
	s.Logger.Info("extraction job started", "job", job.ID, "service", cfg.SourceService, "api", cfg.APIName)

	go func() {
		defer cancel()
		logger.Info("extracting", "stage", "start", "service", cfg.Service().String(), "folder", cfg.FileFolder)
		summary, err := output.Run(ctx, s.NewSource(&cfg, logger), cfg.ExtractOptions(), cfg.FileFolder, logger)
		if err != nil {
			job.AppendLog("ERROR: " + err.Error())
			job.Fail(err.Error())
			s.Logger.Warn("extraction job failed", "job", job.ID, "error", err)
			return
		}
		job.Complete(summary)
		s.Logger.Info("extraction job completed", "job", job.ID, "files", len(summary.Files))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"folder": cfg.FileFolder,
	})
}

// ListKinds returns the kind registry. The optional sourceApimName query
// parameter names the files.
func (s *Server) ListKinds(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("sourceApimName")
	if base == "" {
		base = "service"
	}
	kinds, err := extract.Kinds(base)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, kinds)
}
