package models

import (
	"time"

	"github.com/google/uuid"
)

// Candidate item statuses stored in the ledger. There is no stored "bought"
// status: a bought candidate is removed from the ledger and a wardrobe item
// carrying its id as SourceID is created in the same transaction.
const (
	ItemStatusConsidering = "considering"
	ItemStatusPassed      = "passed"
)

// Decisions accepted by the decision endpoint. "later" maps onto
// status=considering (re-affirmed, not a new state).
const (
	DecisionBought = "bought"
	DecisionPassed = "passed"
	DecisionLater  = "later"
)

// ItemPayload is the opaque item metadata carried through the ledger for
// downstream UI. The state machine never inspects it.
type ItemPayload struct {
	Name     string  `json:"name"`
	Brand    string  `json:"brand,omitempty"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
	Category string  `json:"category,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
}

// CandidateItem is a potential purchase under evaluation in the decision
// ledger.
type CandidateItem struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"user_id"`
	Status    string      `json:"status"`
	Payload   ItemPayload `json:"payload"`
	Note      *string     `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ClosetCounts aggregates wardrobe inventory sizes for the UI. All counts
// only owned wardrobe items: All equals the sum of ByCategory by
// construction, and Considering is reported separately, never folded in.
type ClosetCounts struct {
	All         int            `json:"all"`
	ByCategory  map[string]int `json:"by_category"`
	Considering int            `json:"considering"`
}

// WardrobeItem is an owned garment in the wardrobe inventory. SourceID links
// back to the candidate item a bought decision moved it from, and is the key
// the idempotency check for repeated bought decisions looks up.
type WardrobeItem struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	SourceID uuid.UUID `json:"source_id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Price    float64   `json:"price"`
	Currency string    `json:"currency,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}
