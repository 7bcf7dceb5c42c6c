package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/captionworks/backend/internal/batch"
	"github.com/captionworks/backend/internal/db"
	"github.com/captionworks/backend/internal/library"
	"github.com/captionworks/backend/internal/metadata"
)

type BatchHandler struct {
	coord     *batch.Coordinator
	database  *db.Database
	mediaRoot string
}

func NewBatchHandler(coord *batch.Coordinator, database *db.Database, mediaRoot string) *BatchHandler {
	return &BatchHandler{coord: coord, database: database, mediaRoot: mediaRoot}
}

type submitRequest struct {
	Paths            []string           `json:"paths"`
	Model            string             `json:"model"`
	Language         string             `json:"language"`
	Diarize          bool               `json:"diarize"`
	ProfanityFilter  string             `json:"profanity_filter"`
	Force            bool               `json:"force"`
	GenerateKeyterms bool               `json:"generate_keyterms"`
	KeytermMerge     metadata.MergeMode `json:"keyterm_merge"`
}

// Submit creates a batch from a list of media paths.
func (h *BatchHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Paths) == 0 {
		jsonError(w, "no paths in batch", http.StatusBadRequest)
		return
	}
	for _, p := range req.Paths {
		if !library.WithinRoot(h.mediaRoot, p) {
			jsonError(w, fmt.Sprintf("path outside media library: %s", p), http.StatusBadRequest)
			return
		}
		if !library.IsVideo(p) {
			jsonError(w, fmt.Sprintf("not a video file: %s", p), http.StatusBadRequest)
			return
		}
	}

	id, err := h.coord.Submit(req.Paths, batch.Options{
		Model:            req.Model,
		Language:         req.Language,
		Diarize:          req.Diarize,
		ProfanityFilter:  req.ProfanityFilter,
		Force:            req.Force,
		GenerateKeyterms: req.GenerateKeyterms,
		KeytermMerge:     req.KeytermMerge,
	})
	if err != nil {
		jsonError(w, "failed to submit batch: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]string{"id": id}, http.StatusAccepted)
}

// List returns snapshots of every batch known to the running coordinator.
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	snaps := h.coord.List()
	if snaps == nil {
		snaps = []batch.Snapshot{}
	}
	jsonResponse(w, snaps, http.StatusOK)
}

// Get returns one batch's snapshot, falling back to the database for batches
// from a previous process.
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if snap, ok := h.coord.Status(id); ok {
		jsonResponse(w, snap, http.StatusOK)
		return
	}

	snap, err := h.loadArchived(id)
	if err != nil {
		jsonError(w, "batch not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, snap, http.StatusOK)
}

// loadArchived rebuilds a snapshot from persisted rows. Jobs from a dead
// process can be stuck in a non-terminal state; they are reported as-is.
func (h *BatchHandler) loadArchived(id string) (batch.Snapshot, error) {
	opts, createdAt, err := h.database.GetBatchOptions(id)
	if err != nil {
		return batch.Snapshot{}, err
	}
	jobs, err := h.database.GetBatchJobs(id)
	if err != nil {
		return batch.Snapshot{}, err
	}

	snap := batch.Snapshot{ID: id, Options: opts, CreatedAt: createdAt, Jobs: jobs, Done: true}
	for _, j := range jobs {
		snap.CostSoFar += j.ActualCost
		snap.EstimatedCost += j.EstimatedCost
		snap.DurationSoFar += j.BilledSeconds
		switch j.State {
		case batch.StateCompleted:
			snap.Counts.Completed++
		case batch.StateSkipped:
			snap.Counts.Skipped++
		case batch.StateFailed:
			snap.Counts.Failed++
		case batch.StateCancelled:
			snap.Counts.Cancelled++
		default:
			snap.Done = false
		}
	}
	if snap.Jobs == nil {
		snap.Jobs = []batch.Job{}
	}
	return snap, nil
}

// Cancel requests cooperative cancellation of a running batch.
func (h *BatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.coord.CancelBatch(id) {
		jsonError(w, "batch not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events streams job transitions for one batch over SSE. The stream opens with
// a full snapshot; clients that miss events re-sync by polling Get.
func (h *BatchHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := h.coord.Status(id)
	if !ok {
		jsonError(w, "batch not found", http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, unsubscribe := h.coord.Hub().Subscribe(id)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeSSE(w, "snapshot", snap)
	flusher.Flush()
	if snap.Done {
		return
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-events:
			writeSSE(w, "job", ev)
			flusher.Flush()
			if !ev.Terminal {
				continue
			}
			if snap, ok := h.coord.Status(id); ok && snap.Done {
				writeSSE(w, "done", snap)
				flusher.Flush()
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
