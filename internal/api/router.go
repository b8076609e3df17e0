// Package api wires the HTTP surface: interview endpoints and the
// websocket relay entrypoint.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stebratori/jobBolt-backend/internal/relay"
)

// NewRouter builds the service router.
func NewRouter(h *Handler, rly *relay.Relay) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	r.HandleFunc("/api/analyze-and-store-interview", h.AnalyzeAndStore).Methods(http.MethodPost)
	r.HandleFunc("/api/interviews", h.CreateInterview).Methods(http.MethodPost)
	r.HandleFunc("/api/interviews/{companyID}/{jobID}/{interviewID}", h.GetInterview).Methods(http.MethodGet)

	r.HandleFunc("/ws", rly.HandleWS)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return r
}
