package anthropic

import (
	"context"

	"github.com/outfitly/outfitly/internal/config"
	"github.com/outfitly/outfitly/pkg/models"
)

// Provider implements models.OutfitProvider using Anthropic.
type Provider struct {
	cfg config.AnthropicConfig
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Generate(_ context.Context, _ models.OutfitRequest) (models.OutfitStream, error) {
	panic("anthropic.Provider.Generate not yet implemented")
}

var _ models.OutfitProvider = (*Provider)(nil)
