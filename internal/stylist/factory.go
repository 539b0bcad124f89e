package stylist

import (
	"fmt"

	"github.com/outfitly/outfitly/internal/config"
	"github.com/outfitly/outfitly/internal/stylist/anthropic"
	"github.com/outfitly/outfitly/internal/stylist/mock"
	"github.com/outfitly/outfitly/internal/stylist/openai"
	"github.com/outfitly/outfitly/pkg/models"
)

// NewProvider constructs the appropriate outfit provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.OutfitProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown outfit provider %q: must be one of openai, anthropic, mock", cfg.Provider)
	}
}
