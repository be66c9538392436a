package bootstrap

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"mahira-clipper/internal/config"
	"mahira-clipper/internal/domain"
)

// defaultWhisperModel is used when config carries no whisper.model_size.
const defaultWhisperModel = "small"

var whisperModelCatalog = []domain.WhisperModelOption{
	{
		ID:          "tiny",
		Name:        "Tiny",
		SizeLabel:   "~75 MB",
		Description: "Fastest; rough timestamps on noisy audio.",
	},
	{
		ID:          "base",
		Name:        "Base",
		SizeLabel:   "~145 MB",
		Description: "Fast with acceptable quality for clear speech.",
	},
	{
		ID:          "small",
		Name:        "Small",
		SizeLabel:   "~480 MB",
		Description: "Balanced speed and accuracy for most videos.",
		Recommended: true,
	},
	{
		ID:          "medium",
		Name:        "Medium",
		SizeLabel:   "~1.5 GB",
		Description: "Higher accuracy, noticeably slower on CPU.",
	},
	{
		ID:          "turbo",
		Name:        "Large v3 Turbo",
		SizeLabel:   "~1.6 GB",
		Description: "Near large-v3 quality at a fraction of the time.",
	},
	{
		ID:          "large-v3",
		Name:        "Large v3",
		SizeLabel:   "~3 GB",
		Description: "Best accuracy; needs a GPU to be practical.",
	},
}

// GetWhisperModels returns the model sizes the worker accepts, with the configured one selected.
func (a *App) GetWhisperModels() []domain.WhisperModelOption {
	selected := defaultWhisperModel
	if a.Store != nil {
		if cfg, err := a.Store.Get(); err == nil {
			if size := strings.TrimSpace(config.String(cfg, "whisper", "model_size")); size != "" {
				selected = size
			}
		}
	}
	return whisperModelsWithSelection(selected)
}

// SelectWhisperModel stores id as whisper.model_size and returns the refreshed list.
func (a *App) SelectWhisperModel(id string) ([]domain.WhisperModelOption, error) {
	model, ok := getWhisperModelByID(strings.TrimSpace(id))
	if !ok {
		return nil, fmt.Errorf("unknown whisper model: %q", id)
	}
	if _, err := a.Store.Save(map[string]any{
		"whisper": map[string]any{"model_size": model.ID},
	}); err != nil {
		return nil, fmt.Errorf("save whisper model: %w", err)
	}
	return whisperModelsWithSelection(model.ID), nil
}

func whisperModelsWithSelection(selected string) []domain.WhisperModelOption {
	return lo.Map(whisperModelCatalog, func(model domain.WhisperModelOption, _ int) domain.WhisperModelOption {
		model.Selected = model.ID == selected
		return model
	})
}

func getWhisperModelByID(id string) (domain.WhisperModelOption, bool) {
	return lo.Find(whisperModelCatalog, func(model domain.WhisperModelOption) bool {
		return model.ID == id
	})
}
