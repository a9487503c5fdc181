package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dvloznov/altcredit/internal/api/middleware"
	bq "github.com/dvloznov/altcredit/internal/bigquery"
	"github.com/dvloznov/altcredit/internal/bridge"
)

// BridgeService is the chatbot bridge.
type BridgeService interface {
	FormatResults(ctx context.Context, req bridge.FormatRequest) (string, error)
	GenerateSQL(ctx context.Context, req bridge.SQLRequest) (string, error)
	ShoppingRecommendations(ctx context.Context, req bridge.ShoppingRequest) (string, error)
	InterpretQuery(ctx context.Context, req bridge.InterpretRequest) (string, error)
	Ask(ctx context.Context, question string) (*bridge.AskResponse, error)
}

// BridgeHandler serves the chatbot bridge endpoints.
type BridgeHandler struct {
	svc BridgeService
}

// NewBridgeHandler creates a new bridge handler.
func NewBridgeHandler(svc BridgeService) *BridgeHandler {
	return &BridgeHandler{svc: svc}
}

// Register adds the bridge routes to mux.
func (h *BridgeHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /format-results", h.FormatResults)
	mux.HandleFunc("POST /generate-sql", h.GenerateSQL)
	mux.HandleFunc("POST /shopping-recommendations", h.ShoppingRecommendations)
	mux.HandleFunc("POST /interpret-query", h.InterpretQuery)
	mux.HandleFunc("POST /ask", h.Ask)
}

func (h *BridgeHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, bridge.ErrNoSQL):
		middleware.WriteError(w, http.StatusBadGateway, bridge.ErrNoSQL.Error())
	case errors.Is(err, bq.ErrReadOnlyQuery):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeFailure(w, r, err, "Model request failed")
	}
}

// FormatResults handles POST /format-results
func (h *BridgeHandler) FormatResults(w http.ResponseWriter, r *http.Request) {
	var req bridge.FormatRequest
	if err := middleware.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.UserQuery) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_query is required")
		return
	}

	answer, err := h.svc.FormatResults(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// GenerateSQL handles POST /generate-sql
func (h *BridgeHandler) GenerateSQL(w http.ResponseWriter, r *http.Request) {
	var req bridge.SQLRequest
	if err := middleware.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "question is required")
		return
	}
	if strings.TrimSpace(req.Schema) == "" {
		req.Schema = bq.SchemaDescription
	}

	sql, err := h.svc.GenerateSQL(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"sql": sql})
}

// ShoppingRecommendations handles POST /shopping-recommendations
func (h *BridgeHandler) ShoppingRecommendations(w http.ResponseWriter, r *http.Request) {
	var req bridge.ShoppingRequest
	if err := middleware.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	out, err := h.svc.ShoppingRecommendations(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"recommendations": out})
}

// InterpretQuery handles POST /interpret-query
func (h *BridgeHandler) InterpretQuery(w http.ResponseWriter, r *http.Request) {
	var req bridge.InterpretRequest
	if err := middleware.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	out, err := h.svc.InterpretQuery(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"interpretation": out})
}

// Ask handles POST /ask
func (h *BridgeHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := middleware.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "question is required")
		return
	}

	resp, err := h.svc.Ask(r.Context(), req.Question)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}
