// Package mock provides an OutfitProvider for tests and local development.
package mock

import (
	"context"
	"fmt"
	"io"

	"github.com/outfitly/outfitly/pkg/models"
)

// MockProvider satisfies models.OutfitProvider for testing.
type MockProvider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, req models.OutfitRequest) (models.OutfitStream, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Generate(ctx context.Context, req models.OutfitRequest) (models.OutfitStream, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return &ScriptedStream{}, nil
}

// ScriptedStream yields Outfits in order, then Err if set, otherwise io.EOF.
// Transcript is returned by Reasoning after exhaustion.
type ScriptedStream struct {
	Outfits    []models.Outfit
	Err        error
	Transcript string

	idx int
}

func (s *ScriptedStream) Next(ctx context.Context) (models.Outfit, error) {
	if err := ctx.Err(); err != nil {
		return models.Outfit{}, err
	}
	if s.idx < len(s.Outfits) {
		outfit := s.Outfits[s.idx]
		s.idx++
		return outfit, nil
	}
	if s.Err != nil {
		return models.Outfit{}, s.Err
	}
	return models.Outfit{}, io.EOF
}

func (s *ScriptedStream) Reasoning() string { return s.Transcript }

func (s *ScriptedStream) Close() error { return nil }

// NewProvider returns a MockProvider that produces the requested number of
// placeholder outfits.
func NewProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, req models.OutfitRequest) (models.OutfitStream, error) {
			outfits := make([]models.Outfit, req.Count)
			for i := range outfits {
				outfits[i] = models.Outfit{
					Title: fmt.Sprintf("Mock look %d for %s", i+1, req.Occasion),
					Items: []models.OutfitPiece{
						{Category: "tops", Name: "white tee"},
						{Category: "bottoms", Name: "dark jeans"},
						{Category: "shoes", Name: "canvas sneakers"},
					},
				}
			}
			return &ScriptedStream{
				Outfits:    outfits,
				Transcript: "Mock reasoning: balanced basics for testing",
			}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider whose Generate call fails with
// the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.OutfitRequest) (models.OutfitStream, error) {
			return nil, err
		},
	}
}

// NewPartialProvider returns a MockProvider that yields the given outfits and
// then fails with err instead of finishing.
func NewPartialProvider(outfits []models.Outfit, err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-partial",
		GenerateFunc: func(_ context.Context, _ models.OutfitRequest) (models.OutfitStream, error) {
			return &ScriptedStream{Outfits: outfits, Err: err}, nil
		},
	}
}

// Compile-time check that MockProvider implements OutfitProvider.
var _ models.OutfitProvider = (*MockProvider)(nil)
