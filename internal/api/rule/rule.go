package rule

import (
	"context"
	"errors"
	"net/http"

	"task-automator-api/internal/api/common"
	"task-automator-api/internal/domain"
	"task-automator-api/internal/engine"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the part of the engine the rule handlers drive.
type Service interface {
	CreateRule(ctx context.Context, spec domain.RuleSpec) (domain.AutomationRule, error)
	ListRules(ctx context.Context) ([]domain.AutomationRule, error)
	GetRule(ctx context.Context, id uuid.UUID) (*domain.AutomationRule, error)
	UpdateRule(ctx context.Context, id uuid.UUID, patch domain.RulePatch) (*domain.AutomationRule, error)
	ToggleRule(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteRule(ctx context.Context, id uuid.UUID) (bool, error)
}

var _ Service = (*engine.Engine)(nil)

// writeServiceError maps rule errors onto status codes. Validation and
// immutability problems are the caller's fault; anything else is ours.
func writeServiceError(w http.ResponseWriter, err error, msg string, log *zap.Logger) {
	switch {
	case errors.Is(err, domain.ErrInvalidRule), errors.Is(err, engine.ErrImmutableField):
		common.WriteJSONError(w, http.StatusBadRequest, err.Error(), log)
	default:
		log.Error(msg, zap.Error(err), zap.String("component", "api"))
		common.WriteJSONError(w, http.StatusInternalServerError, msg, log)
	}
}

func HandleCreateRule(svc Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var spec domain.RuleSpec
		if err := common.DecodeJSON(r, &spec); err != nil {
			common.WriteJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), log)
			return
		}

		created, err := svc.CreateRule(r.Context(), spec)
		if err != nil {
			writeServiceError(w, err, "could not create rule", log)
			return
		}

		common.WriteJSON(w, http.StatusCreated, created, log)
	}
}

func HandleGetRules(svc Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := svc.ListRules(r.Context())
		if err != nil {
			writeServiceError(w, err, "could not list rules", log)
			return
		}
		if rules == nil {
			rules = []domain.AutomationRule{}
		}
		common.WriteJSON(w, http.StatusOK, rules, log)
	}
}

func HandleGetRule(svc Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := common.URLParamUUID(r, "ruleId")
		if err != nil {
			common.WriteJSONError(w, http.StatusBadRequest, err.Error(), log)
			return
		}

		found, err := svc.GetRule(r.Context(), id)
		if err != nil {
			writeServiceError(w, err, "could not fetch rule", log)
			return
		}
		if found == nil {
			common.WriteJSONError(w, http.StatusNotFound, "rule not found", log)
			return
		}
		common.WriteJSON(w, http.StatusOK, found, log)
	}
}

// HandleUpdateRule merges the request body into the rule. Fields absent from
// the body keep their value.
func HandleUpdateRule(svc Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := common.URLParamUUID(r, "ruleId")
		if err != nil {
			common.WriteJSONError(w, http.StatusBadRequest, err.Error(), log)
			return
		}

		var patch domain.RulePatch
		if err := common.DecodeJSON(r, &patch); err != nil {
			common.WriteJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), log)
			return
		}

		updated, err := svc.UpdateRule(r.Context(), id, patch)
		if err != nil {
			writeServiceError(w, err, "could not update rule", log)
			return
		}
		if updated == nil {
			common.WriteJSONError(w, http.StatusNotFound, "rule not found", log)
			return
		}
		common.WriteJSON(w, http.StatusOK, updated, log)
	}
}

// HandleToggleRule flips the enabled flag and returns the rule as it is now.
func HandleToggleRule(svc Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := common.URLParamUUID(r, "ruleId")
		if err != nil {
			common.WriteJSONError(w, http.StatusBadRequest, err.Error(), log)
			return
		}

		ok, err := svc.ToggleRule(r.Context(), id)
		if err != nil {
			writeServiceError(w, err, "could not toggle rule", log)
			return
		}
		if !ok {
			common.WriteJSONError(w, http.StatusNotFound, "rule not found", log)
			return
		}

		current, err := svc.GetRule(r.Context(), id)
		if err != nil {
			writeServiceError(w, err, "could not fetch rule", log)
			return
		}
		if current == nil {
			// Deleted between the toggle and the read.
			common.WriteJSONError(w, http.StatusNotFound, "rule not found", log)
			return
		}
		common.WriteJSON(w, http.StatusOK, current, log)
	}
}

func HandleDeleteRule(svc Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := common.URLParamUUID(r, "ruleId")
		if err != nil {
			common.WriteJSONError(w, http.StatusBadRequest, err.Error(), log)
			return
		}

		ok, err := svc.DeleteRule(r.Context(), id)
		if err != nil {
			writeServiceError(w, err, "could not delete rule", log)
			return
		}
		if !ok {
			common.WriteJSONError(w, http.StatusNotFound, "rule not found", log)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
