package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dvloznov/altcredit/internal/api/middleware"
	bq "github.com/dvloznov/altcredit/internal/bigquery"
	"github.com/dvloznov/altcredit/internal/jobs"
	"github.com/dvloznov/altcredit/internal/logger"
)

// SpendReader summarizes spend per merchant.
type SpendReader interface {
	MerchantSpend(ctx context.Context) ([]bq.MerchantSpendRow, error)
}

// WarehouseHandler serves warehouse loads, their jobs and spend summaries.
// Any dependency may be nil, in which case its routes answer 503.
type WarehouseHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	spend     SpendReader
}

// NewWarehouseHandler creates a new warehouse handler.
func NewWarehouseHandler(publisher jobs.Publisher, store jobs.JobStore, spend SpendReader) *WarehouseHandler {
	return &WarehouseHandler{publisher: publisher, store: store, spend: spend}
}

// Register adds the warehouse routes to mux.
func (h *WarehouseHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/loads", h.CreateLoad)
	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /api/merchants/spend", h.MerchantSpend)
}

func unavailable(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusServiceUnavailable, "Warehouse is not configured")
}

// CreateLoad handles POST /api/loads
func (h *WarehouseHandler) CreateLoad(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		unavailable(w)
		return
	}

	var req struct {
		Source string `json:"source"`
		Mode   string `json:"mode"`
	}
	if err := middleware.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job, err := jobs.NewLoadJob(req.Source, req.Mode)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if err := h.publisher.PublishLoad(ctx, job); err != nil {
		writeFailure(w, r, err, "Failed to enqueue load job")
		return
	}

	log := logger.FromContext(ctx)
	log.Info().Str("job_id", job.JobID).Str("source", job.Source).Str("mode", job.Mode).Msg("Load job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"source": job.Source,
		"mode":   job.Mode,
		"status": string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *WarehouseHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		unavailable(w)
		return
	}

	job, err := h.store.GetJob(r.Context(), r.PathValue("id"))
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		writeFailure(w, r, err, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *WarehouseHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		unavailable(w)
		return
	}

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Source: query.Get("source"),
		Status: jobs.JobStatus(query.Get("status")),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		writeFailure(w, r, err, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  list,
		"count": len(list),
	})
}

// MerchantSpend handles GET /api/merchants/spend
func (h *WarehouseHandler) MerchantSpend(w http.ResponseWriter, r *http.Request) {
	if h.spend == nil {
		unavailable(w)
		return
	}

	rows, err := h.spend.MerchantSpend(r.Context())
	if err != nil {
		writeFailure(w, r, err, "Failed to query merchant spend")
		return
	}
	if rows == nil {
		rows = []bq.MerchantSpendRow{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"merchants": rows,
		"count":     len(rows),
	})
}
