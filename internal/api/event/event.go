package event

import (
	"context"
	"net/http"

	"task-automator-api/internal/api/common"
	"task-automator-api/internal/domain"
	"task-automator-api/internal/engine"

	"go.uber.org/zap"
)

// Dispatcher runs an event through the rule engine.
type Dispatcher interface {
	DispatchEvent(ctx context.Context, trigger domain.TriggerType, event map[string]any) (engine.DispatchResult, error)
}

// Request is the body of POST /events.
type Request struct {
	Type    domain.TriggerType `json:"type"`
	Context map[string]any     `json:"context"`
}

// HandlePublishEvent dispatches the event synchronously and returns the
// dispatch result.
func HandlePublishEvent(d Dispatcher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := common.DecodeJSON(r, &req); err != nil {
			common.WriteJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), log)
			return
		}
		if !req.Type.Valid() {
			common.WriteJSONError(w, http.StatusBadRequest, "unknown trigger type "+string(req.Type), log)
			return
		}
		if req.Context == nil {
			req.Context = map[string]any{}
		}

		res, err := d.DispatchEvent(r.Context(), req.Type, req.Context)
		if err != nil {
			log.Error("event dispatch failed",
				zap.Error(err),
				zap.String("trigger", string(req.Type)),
				zap.String("component", "api"),
			)
			common.WriteJSONError(w, http.StatusInternalServerError, "could not dispatch event", log)
			return
		}
		if res.Records == nil {
			res.Records = []domain.ExecutionRecord{}
		}
		common.WriteJSON(w, http.StatusOK, res, log)
	}
}
