// Package handlers implements the HTTP endpoints of the score API and the
// chatbot bridge.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/altcredit/internal/api/middleware"
	"github.com/dvloznov/altcredit/internal/logger"
	"github.com/dvloznov/altcredit/internal/scoring"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Server is running",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// writeFailure maps err to a response. Invalid transaction records are the
// caller's fault and are reported verbatim; anything else is logged and
// hidden behind message.
func writeFailure(w http.ResponseWriter, r *http.Request, err error, message string) {
	var recErr *scoring.InvalidRecordError
	if errors.As(err, &recErr) {
		middleware.WriteError(w, http.StatusUnprocessableEntity, recErr.Error())
		return
	}

	log := logger.FromContext(r.Context())
	log.Error().Err(err).Str("path", r.URL.Path).Msg(message)
	middleware.WriteError(w, http.StatusInternalServerError, message)
}

// queryInt reads a non-negative integer query parameter, ignoring bad input.
func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
