package execution

import (
	"context"
	"net/http"

	"task-automator-api/internal/api/common"
	"task-automator-api/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service reads and clears the execution log.
type Service interface {
	ListExecutions(ctx context.Context, ruleID *uuid.UUID) ([]domain.ExecutionRecord, error)
	ClearExecutions(ctx context.Context) error
}

// HandleGetExecutions lists execution records newest first. An optional
// ruleId query parameter filters by rule.
func HandleGetExecutions(svc Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ruleID *uuid.UUID
		if raw := r.URL.Query().Get("ruleId"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				common.WriteJSONError(w, http.StatusBadRequest, "invalid ruleId", log)
				return
			}
			ruleID = &id
		}

		records, err := svc.ListExecutions(r.Context(), ruleID)
		if err != nil {
			log.Error("failed to list executions", zap.Error(err), zap.String("component", "api"))
			common.WriteJSONError(w, http.StatusInternalServerError, "could not list executions", log)
			return
		}
		if records == nil {
			records = []domain.ExecutionRecord{}
		}
		common.WriteJSON(w, http.StatusOK, records, log)
	}
}

func HandleClearExecutions(svc Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ClearExecutions(r.Context()); err != nil {
			log.Error("failed to clear executions", zap.Error(err), zap.String("component", "api"))
			common.WriteJSONError(w, http.StatusInternalServerError, "could not clear executions", log)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
