package health

import (
	"context"
	"net/http"
	"time"

	"task-automator-api/internal/api/common"

	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth reports whether the API server is running. When db is not
// nil the database must answer a ping as well.
func HandleHealth(db Pinger, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "storage": "memory"}, log)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			log.Warn("health check failed", zap.Error(err), zap.String("component", "api"))
			common.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "storage": "postgres"}, log)
			return
		}
		common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "storage": "postgres"}, log)
	}
}
