package preset

import (
	"context"
	"errors"
	"net/http"

	"task-automator-api/internal/api/common"
	"task-automator-api/internal/domain"
	"task-automator-api/internal/engine"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Service interface {
	ListPresets() []domain.RuleTemplate
	InstallPresetByKey(ctx context.Context, key string) (domain.AutomationRule, error)
}

func HandleGetPresets(svc Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		presets := svc.ListPresets()
		if presets == nil {
			presets = []domain.RuleTemplate{}
		}
		common.WriteJSON(w, http.StatusOK, presets, log)
	}
}

// HandleInstallPreset creates a new rule from the preset named by presetId.
// Installing the same preset twice creates two independent rules.
func HandleInstallPreset(svc Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "presetId")

		created, err := svc.InstallPresetByKey(r.Context(), key)
		if errors.Is(err, engine.ErrPresetNotFound) {
			common.WriteJSONError(w, http.StatusNotFound, "preset not found", log)
			return
		}
		if err != nil {
			log.Error("failed to install preset", zap.Error(err), zap.String("preset", key), zap.String("component", "api"))
			common.WriteJSONError(w, http.StatusInternalServerError, "could not install preset", log)
			return
		}
		common.WriteJSON(w, http.StatusCreated, created, log)
	}
}
