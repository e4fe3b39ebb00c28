package handlers

import (
	"net/http"

	"github.com/shopfeed/backend/internal/models"
	"github.com/shopfeed/backend/internal/realtime"
)

// Health reports liveness and the number of live subscriptions in this
// process.
func Health(registry realtime.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.HealthResponse{
			Status:        "ok",
			Subscriptions: registry.Size(),
		})
	}
}
