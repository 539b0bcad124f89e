package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/outfitly/outfitly/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultUser(ctx context.Context) (*models.User, error)
	GetUsersByKeyPrefix(ctx context.Context, prefix string) ([]*models.User, error)

	CreateCandidate(ctx context.Context, item *models.CandidateItem) error
	GetCandidate(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.CandidateItem, error)
	ListCandidates(ctx context.Context, userID uuid.UUID, status string) ([]*models.CandidateItem, error)
	SetCandidateStatus(ctx context.Context, id uuid.UUID, userID uuid.UUID, status string, note *string) (*models.CandidateItem, error)
	// BuyCandidate atomically moves a considering candidate into the wardrobe:
	// it locks the row, inserts the wardrobe item, and deletes the candidate
	// in one transaction. Returns ErrNotFound when no considering row exists,
	// which callers must disambiguate against an already-completed move.
	BuyCandidate(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.WardrobeItem, error)

	GetWardrobeItemBySource(ctx context.Context, userID uuid.UUID, sourceID uuid.UUID) (*models.WardrobeItem, error)
	ListWardrobe(ctx context.Context, userID uuid.UUID) ([]*models.WardrobeItem, error)
	// ClosetCounts computes the per-category counts and the aggregate from
	// the same wardrobe rows, so the aggregate always equals the sum of the
	// categories. Considering candidates are counted separately.
	ClosetCounts(ctx context.Context, userID uuid.UUID) (*models.ClosetCounts, error)
}
