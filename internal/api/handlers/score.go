package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/dvloznov/altcredit/internal/api/middleware"
	"github.com/dvloznov/altcredit/internal/logger"
	"github.com/dvloznov/altcredit/internal/metrics"
	"github.com/dvloznov/altcredit/internal/scoring"
	"github.com/dvloznov/altcredit/internal/transactions"
)

// Scorer computes credit scores.
type Scorer interface {
	Calculate(records []scoring.Transaction) (int, error)
	Breakdown(records []scoring.Transaction) (*scoring.Breakdown, error)
}

// TransactionFetcher retrieves a user's history and reports where it came from.
type TransactionFetcher interface {
	Fetch(ctx context.Context, email string) ([]scoring.Transaction, transactions.Origin, error)
}

// ScoreRequest is the body of the score endpoints.
type ScoreRequest struct {
	Transactions []scoring.Transaction `json:"transactions"`
}

// ScoreResponse is returned by POST /api/score.
type ScoreResponse struct {
	CreditScore      int `json:"creditScore"`
	TransactionCount int `json:"transactionCount"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /api/login.
type LoginResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	CreditScore      int    `json:"creditScore,omitempty"`
	TransactionCount int    `json:"transactionCount"`
	Source           string `json:"source,omitempty"`
}

// ScoreHandler serves scoring and the demo login.
type ScoreHandler struct {
	scorer  Scorer
	fetcher TransactionFetcher
	metrics *metrics.Metrics
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(scorer Scorer, fetcher TransactionFetcher, m *metrics.Metrics) *ScoreHandler {
	return &ScoreHandler{scorer: scorer, fetcher: fetcher, metrics: m}
}

// Register adds the score routes to mux.
func (h *ScoreHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/score", h.Score)
	mux.HandleFunc("POST /api/score/breakdown", h.Breakdown)
	mux.HandleFunc("POST /api/login", h.Login)
}

// Score handles POST /api/score
func (h *ScoreHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := middleware.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	score, err := h.scorer.Calculate(req.Transactions)
	if err != nil {
		writeFailure(w, r, err, "Failed to calculate credit score")
		return
	}
	h.metrics.ObserveScore("score", score)

	middleware.WriteJSON(w, http.StatusOK, ScoreResponse{
		CreditScore:      score,
		TransactionCount: len(req.Transactions),
	})
}

// Breakdown handles POST /api/score/breakdown
func (h *ScoreHandler) Breakdown(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := middleware.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b, err := h.scorer.Breakdown(req.Transactions)
	if err != nil {
		writeFailure(w, r, err, "Failed to calculate credit score")
		return
	}
	h.metrics.ObserveScore("breakdown", b.TotalScore)

	middleware.WriteJSON(w, http.StatusOK, b)
}

// Login handles POST /api/login. Authentication is simulated: any
// well-formed email and non-empty password succeed, and the score comes
// from whatever history the fetcher can provide.
func (h *ScoreHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		middleware.WriteJSON(w, http.StatusBadRequest, LoginResponse{Message: "Invalid request body"})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !strings.Contains(req.Email, "@") || req.Password == "" {
		middleware.WriteJSON(w, http.StatusBadRequest, LoginResponse{Message: "Email and password are required"})
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)

	records, origin, err := h.fetcher.Fetch(ctx, req.Email)
	if err != nil {
		writeFailure(w, r, err, "An error occurred during login")
		return
	}

	score, err := h.scorer.Calculate(records)
	if err != nil {
		writeFailure(w, r, err, "An error occurred during login")
		return
	}
	h.metrics.ObserveScore("login", score)

	log.Info().
		Str("source", string(origin)).
		Int("transactions", len(records)).
		Int("score", score).
		Msg("Login scored")

	middleware.WriteJSON(w, http.StatusOK, LoginResponse{
		Success:          true,
		Message:          "Login successful",
		CreditScore:      score,
		TransactionCount: len(records),
		Source:           string(origin),
	})
}
