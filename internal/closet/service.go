// Package closet implements the decision ledger: candidate purchase items and
// the state machine that records the user's disposition on them. A bought
// candidate is moved into the wardrobe inventory exactly once; repeating the
// decision is an idempotent success, not an error.
package closet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/outfitly/outfitly/internal/cache"
	"github.com/outfitly/outfitly/internal/metrics"
	"github.com/outfitly/outfitly/internal/store"
	"github.com/outfitly/outfitly/pkg/models"
)

// ErrInvalidDecision means the decision is not one of bought, passed, later.
var ErrInvalidDecision = errors.New("invalid decision")

// ErrInvalidStatusFilter means the list filter names an unknown status.
var ErrInvalidStatusFilter = errors.New("invalid status filter")

// countsTTL bounds how stale a cached closet count may be.
const countsTTL = time.Minute

// Ledger is the slice of the data store the closet service depends on.
// *store.PostgresStore satisfies it.
type Ledger interface {
	CreateCandidate(ctx context.Context, item *models.CandidateItem) error
	GetCandidate(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.CandidateItem, error)
	ListCandidates(ctx context.Context, userID uuid.UUID, status string) ([]*models.CandidateItem, error)
	SetCandidateStatus(ctx context.Context, id uuid.UUID, userID uuid.UUID, status string, note *string) (*models.CandidateItem, error)
	BuyCandidate(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.WardrobeItem, error)
	GetWardrobeItemBySource(ctx context.Context, userID uuid.UUID, sourceID uuid.UUID) (*models.WardrobeItem, error)
	ClosetCounts(ctx context.Context, userID uuid.UUID) (*models.ClosetCounts, error)
}

// Outcome is the result of a decision call.
type Outcome struct {
	Decision         string                `json:"decision"`
	Item             *models.CandidateItem `json:"item,omitempty"`
	WardrobeItem     *models.WardrobeItem  `json:"wardrobe_item,omitempty"`
	AlreadyProcessed bool                  `json:"already_processed"`
	Message          string                `json:"message"`
}

// Service applies decision transitions and keeps the counts cache coherent.
type Service struct {
	store Ledger
	cache cache.Cache
}

// NewService creates a new Service.
func NewService(st Ledger, ca cache.Cache) *Service {
	return &Service{store: st, cache: ca}
}

// Add records a new candidate item in the considering state.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, payload models.ItemPayload) (*models.CandidateItem, error) {
	now := time.Now().UTC()
	item := &models.CandidateItem{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    models.ItemStatusConsidering,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateCandidate(ctx, item); err != nil {
		return nil, fmt.Errorf("adding candidate: %w", err)
	}
	s.invalidateCounts(ctx, userID)
	return item, nil
}

// List returns candidates filtered by status when one is given. Filtering is
// a pure function of the stored status column; nothing from other stores is
// folded in.
func (s *Service) List(ctx context.Context, userID uuid.UUID, status string) ([]*models.CandidateItem, error) {
	switch status {
	case "", models.ItemStatusConsidering, models.ItemStatusPassed:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatusFilter, status)
	}
	return s.store.ListCandidates(ctx, userID, status)
}

// Decide applies a decision to a candidate item.
func (s *Service) Decide(ctx context.Context, userID uuid.UUID, itemID uuid.UUID, decision, reason string) (*Outcome, error) {
	switch decision {
	case models.DecisionBought:
		return s.buy(ctx, userID, itemID)
	case models.DecisionPassed:
		item, err := s.store.SetCandidateStatus(ctx, itemID, userID, models.ItemStatusPassed, optional(reason))
		if err != nil {
			return nil, err
		}
		s.invalidateCounts(ctx, userID)
		metrics.Decisions.WithLabelValues(models.DecisionPassed).Inc()
		return &Outcome{
			Decision: models.DecisionPassed,
			Item:     item,
			Message:  fmt.Sprintf("Passed on %s", item.Payload.Name),
		}, nil
	case models.DecisionLater:
		// "later" is not a new state: it re-affirms considering and keeps
		// the note for the next time the user looks at the item.
		item, err := s.store.SetCandidateStatus(ctx, itemID, userID, models.ItemStatusConsidering, optional(reason))
		if err != nil {
			return nil, err
		}
		s.invalidateCounts(ctx, userID)
		metrics.Decisions.WithLabelValues(models.DecisionLater).Inc()
		return &Outcome{
			Decision: models.DecisionLater,
			Item:     item,
			Message:  fmt.Sprintf("Saved %s for later", item.Payload.Name),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}
}

func (s *Service) buy(ctx context.Context, userID uuid.UUID, itemID uuid.UUID) (*Outcome, error) {
	item, err := s.store.BuyCandidate(ctx, itemID, userID)
	if err == nil {
		s.invalidateCounts(ctx, userID)
		metrics.Decisions.WithLabelValues(models.DecisionBought).Inc()
		return &Outcome{
			Decision:     models.DecisionBought,
			WardrobeItem: item,
			Message:      fmt.Sprintf("Added %s to your wardrobe", item.Name),
		}, nil
	}

	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDuplicateKey) {
		// The candidate may be gone precisely because an earlier bought call
		// already moved it. Absence alone is not failure: consult the
		// wardrobe before reporting an error.
		moved, lookupErr := s.store.GetWardrobeItemBySource(ctx, userID, itemID)
		if lookupErr == nil {
			return &Outcome{
				Decision:         models.DecisionBought,
				WardrobeItem:     moved,
				AlreadyProcessed: true,
				Message:          fmt.Sprintf("%s is already in your wardrobe", moved.Name),
			}, nil
		}
	}
	return nil, err
}

// Counts returns the closet counts, served from Redis when fresh. The
// aggregate and the per-category counts come from the same wardrobe rows, so
// the aggregate always equals the sum of the categories; considering
// candidates are reported separately and never folded into the aggregate.
func (s *Service) Counts(ctx context.Context, userID uuid.UUID) (*models.ClosetCounts, error) {
	key := cache.ClosetCountsKey(userID)
	if raw, found, err := s.cache.Get(ctx, key); err == nil && found {
		var counts models.ClosetCounts
		if json.Unmarshal(raw, &counts) == nil {
			return &counts, nil
		}
	}

	counts, err := s.store.ClosetCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(counts); err == nil {
		_ = s.cache.Set(ctx, key, raw, countsTTL)
	}
	return counts, nil
}

func (s *Service) invalidateCounts(ctx context.Context, userID uuid.UUID) {
	_ = s.cache.Delete(ctx, cache.ClosetCountsKey(userID))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
