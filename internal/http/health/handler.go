package health

import (
	"encoding/json"
	"net/http"

	applog "github.com/janisto/huma-webapi-bench/internal/platform/logging"
)

// Response is the payload for the health endpoint.
type Response struct {
	Status string `json:"status"`
}

// Handler reports liveness on the admin listener. It answers as long as the process is able to
// serve HTTP, independent of the API listener's routes.
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(Response{Status: "healthy"}); err != nil {
		applog.LogDebug(r.Context(), "health write failed")
	}
}
