// Package models contains shared data models used across the Outfitly codebase.
package models

import (
	"context"

	"github.com/google/uuid"
)

// Generation modes accepted by the submission endpoint.
const (
	ModeOccasion = "occasion"
	ModeAnchor   = "anchor"
)

// Outfit is one AI-produced combination of wardrobe pieces returned as a
// generation result.
type Outfit struct {
	Title string        `json:"title"`
	Items []OutfitPiece `json:"items"`
	Note  string        `json:"note,omitempty"`
}

// OutfitPiece is a single garment slot within an outfit. WardrobeItemID is set
// when the piece references something the user already owns.
type OutfitPiece struct {
	WardrobeItemID *uuid.UUID `json:"wardrobe_item_id,omitempty"`
	Category       string     `json:"category"`
	Name           string     `json:"name"`
	Color          string     `json:"color,omitempty"`
}

// OutfitRequest is the input to a generation job.
type OutfitRequest struct {
	UserID           uuid.UUID  `json:"user_id"`
	Mode             string     `json:"mode"`
	Occasion         string     `json:"occasion,omitempty"`
	AnchorItemID     *uuid.UUID `json:"anchor_item_id,omitempty"`
	Constraints      []string   `json:"constraints,omitempty"`
	Count            int        `json:"count"`
	IncludeReasoning bool       `json:"include_reasoning"`
}

// OutfitProvider is the core interface that all outfit generators must
// implement. Never call specific providers directly — always inject this
// interface.
type OutfitProvider interface {
	// Generate starts producing outfits for the request. Outfits are pulled
	// lazily from the returned stream, one at a time.
	Generate(ctx context.Context, req OutfitRequest) (OutfitStream, error)
	// Name returns the provider identifier (e.g., "openai", "mock").
	Name() string
}

// OutfitStream yields outfits one at a time. Next returns io.EOF when the
// requested number of outfits has been produced. Reasoning returns the
// provider's transcript after exhaustion; it is passed through opaquely and
// only populated when the request asked for it.
type OutfitStream interface {
	Next(ctx context.Context) (Outfit, error)
	Reasoning() string
	Close() error
}
