package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dvloznov/altcredit/internal/api/middleware"
	"github.com/dvloznov/altcredit/internal/knot"
)

// KnotService is the Knot account API.
type KnotService interface {
	CheckStatus(ctx context.Context) knot.Status
	LinkAmazonAccount(ctx context.Context, userID, authToken string) (*knot.LinkResult, error)
}

// KnotHandler serves the Knot passthrough endpoints.
type KnotHandler struct {
	knot    KnotService
	fetcher TransactionFetcher
}

// NewKnotHandler creates a new Knot handler.
func NewKnotHandler(svc KnotService, fetcher TransactionFetcher) *KnotHandler {
	return &KnotHandler{knot: svc, fetcher: fetcher}
}

// Register adds the Knot routes to mux.
func (h *KnotHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/knot/status", h.Status)
	mux.HandleFunc("GET /api/knot/transactions/{email}", h.Transactions)
	mux.HandleFunc("POST /api/knot/link", h.Link)
}

// Status handles GET /api/knot/status
func (h *KnotHandler) Status(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  h.knot.CheckStatus(r.Context()),
	})
}

// Transactions handles GET /api/knot/transactions/{email}
func (h *KnotHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PathValue("email"))
	if email == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Email is required")
		return
	}

	records, origin, err := h.fetcher.Fetch(r.Context(), email)
	if err != nil {
		writeFailure(w, r, err, "Failed to fetch transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"email":            email,
		"transactionCount": len(records),
		"transactions":     records,
		"source":           origin,
	})
}

// Link handles POST /api/knot/link
func (h *KnotHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"userId"`
		AuthToken string `json:"authToken"`
	}
	if err := middleware.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.AuthToken == "" {
		middleware.WriteError(w, http.StatusBadRequest, "userId and authToken are required")
		return
	}

	res, err := h.knot.LinkAmazonAccount(r.Context(), req.UserID, req.AuthToken)
	if errors.Is(err, knot.ErrNotConfigured) {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Knot API is not configured")
		return
	}
	if err != nil {
		writeFailure(w, r, err, "Failed to link account")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}
