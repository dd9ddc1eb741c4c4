package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lKakarot/phone-cleaner/internal/cluster"
	"github.com/lKakarot/phone-cleaner/internal/config"
	"github.com/lKakarot/phone-cleaner/internal/dedup"
	"github.com/lKakarot/phone-cleaner/internal/fingerprint"
	"github.com/lKakarot/phone-cleaner/internal/localfs"
	"github.com/lKakarot/phone-cleaner/internal/media"
)

// ScanHandler starts and tracks async duplicate/similarity scans.
type ScanHandler struct {
	config     *config.Config
	jobManager *JobManager
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(cfg *config.Config, jobManager *JobManager) *ScanHandler {
	return &ScanHandler{config: cfg, jobManager: jobManager}
}

// ScanRequest is the request body for starting a scan.
type ScanRequest struct {
	Directory string `json:"directory"`
	Mode      string `json:"mode"`                // flat, dated, dual, exact, perceptual; default flat
	Threshold int    `json:"threshold,omitempty"` // 0 = mode default
	DayWindow int    `json:"day_window,omitempty"`
	Strict    int    `json:"strict,omitempty"`
}

var validModes = map[string]bool{
	"flat":       true,
	"dated":      true,
	"dual":       true,
	"exact":      true,
	"perceptual": true,
}

// Start handles POST /scans: it validates the request, creates a job, and
// runs the scan in the background.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Directory == "" {
		respondError(w, http.StatusBadRequest, "directory is required")
		return
	}
	if req.Mode == "" {
		req.Mode = "flat"
	}
	if !validModes[req.Mode] {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", req.Mode))
		return
	}

	store, err := localfs.New(req.Directory)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := h.jobManager.CreateJob(req.Directory, req.Mode)
	ctx := job.BindContext(context.Background())

	go h.run(ctx, job, store, req)

	respondJSON(w, http.StatusAccepted, job.Snapshot())
}

// Status handles GET /scans/{jobId}.
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// Events handles GET /scans/{jobId}/events (SSE stream).
func (h *ScanHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			if job := h.jobManager.GetJob(id); job != nil {
				return job
			}
			return nil
		},
		func(j SSEJob) any {
			return j.(*ScanJob).Snapshot()
		},
	)
}

// CancelJob handles DELETE /scans/{jobId}.
func (h *ScanHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	job := h.jobManager.GetJob(chi.URLParam(r, "jobId"))
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, job.Snapshot())
}

// List handles GET /scans.
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobManager.ListJobs()
	out := make([]ScanJob, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.Snapshot())
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *ScanHandler) run(ctx context.Context, job *ScanJob, store *localfs.Store, req ScanRequest) {
	job.SetStatus(JobStatusRunning)

	groups, itemCount, err := h.scan(ctx, store, req, job.SetProgress)
	if err != nil {
		// A cancelled context means the user stopped the job; that is not a
		// failure. Checking the context rather than the job status avoids the
		// window where Cancel has cancelled the context but not yet updated
		// the status.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		job.Fail(err)
		return
	}

	job.Complete(itemCount, NewScanResult(groups))
}

func (h *ScanHandler) scan(ctx context.Context, store *localfs.Store, req ScanRequest, onProgress func(float64)) ([]media.Group, int, error) {
	items, err := store.Scan()
	if err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return nil, 0, nil
	}

	cfg := h.config

	switch req.Mode {
	case "exact":
		detector := dedup.NewDetector(store, dedup.Options{Workers: cfg.Dedup.HashWorkers})
		groups, err := detector.FindExact(ctx, items, onProgress)
		return groups, len(items), err
	case "perceptual":
		detector := dedup.NewDetector(store, dedup.Options{Workers: cfg.Dedup.HashWorkers})
		threshold := req.Threshold
		if threshold == 0 {
			threshold = cfg.Dedup.PerceptualThreshold
		}
		groups, err := detector.FindSimilar(ctx, items, threshold, onProgress)
		return groups, len(items), err
	}

	gen := fingerprint.NewGenerator(store, fingerprint.GeneratorOptions{
		BatchSize:    cfg.Fingerprint.BatchSize,
		MaxDecodes:   cfg.Fingerprint.MaxConcurrentDecodes,
		MemoCapacity: cfg.Fingerprint.MemoCapacity,
	})
	fps, err := gen.ComputeAll(ctx, items, onProgress)
	if err != nil {
		return nil, 0, err
	}

	threshold := req.Threshold
	dayWindow := req.DayWindow
	var groups []media.Group
	switch req.Mode {
	case "flat":
		if threshold == 0 {
			threshold = cfg.Clustering.FlatThreshold
		}
		groups = cluster.Flat(items, fps, threshold)
	case "dated":
		if threshold == 0 {
			threshold = cfg.Clustering.DateWindowedThreshold
		}
		if dayWindow == 0 {
			dayWindow = cfg.Clustering.DayWindow
		}
		groups = cluster.DateWindowed(items, fps, threshold, dayWindow)
	case "dual":
		strict := req.Strict
		if strict == 0 {
			strict = cfg.Clustering.StrictThreshold
		}
		if threshold == 0 {
			threshold = cfg.Clustering.LooseThreshold
		}
		if dayWindow == 0 {
			dayWindow = cfg.Clustering.DualDayWindow
		}
		groups = cluster.DualThreshold(items, fps, strict, threshold, dayWindow)
	}

	return groups, len(items), nil
}
