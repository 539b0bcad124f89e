package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/outfitly/outfitly/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) GetDefaultUser(ctx context.Context) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, handle, key_hash, key_prefix, created_at, updated_at FROM users WHERE handle = 'default' LIMIT 1`,
	).Scan(&u.ID, &u.Handle, &u.KeyHash, &u.KeyPrefix, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUsersByKeyPrefix(ctx context.Context, prefix string) ([]*models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, handle, key_hash, key_prefix, created_at, updated_at
		 FROM users WHERE key_prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get users by key prefix: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Handle, &u.KeyHash, &u.KeyPrefix, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// --- Candidate items ---

func (s *PostgresStore) CreateCandidate(ctx context.Context, item *models.CandidateItem) error {
	payload, err := json.Marshal(item.Payload)
	if err != nil {
		return fmt.Errorf("encode candidate payload: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO candidate_items (id, user_id, status, payload, note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.UserID, item.Status, payload, item.Note, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create candidate: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCandidate(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.CandidateItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, status, payload, note, created_at, updated_at
		 FROM candidate_items WHERE id = $1 AND user_id = $2`, id, userID)
	return scanCandidate(row)
}

func (s *PostgresStore) ListCandidates(ctx context.Context, userID uuid.UUID, status string) ([]*models.CandidateItem, error) {
	query := `SELECT id, user_id, status, payload, note, created_at, updated_at
	          FROM candidate_items WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var items []*models.CandidateItem
	for rows.Next() {
		item, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) SetCandidateStatus(ctx context.Context, id uuid.UUID, userID uuid.UUID, status string, note *string) (*models.CandidateItem, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE candidate_items SET status = $3, note = COALESCE($4, note), updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, status, payload, note, created_at, updated_at`,
		id, userID, status, note)
	return scanCandidate(row)
}

func (s *PostgresStore) BuyCandidate(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.WardrobeItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin buy transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The row lock is the compare-and-swap: concurrent decides on the same
	// item serialize here, and at most one observes a considering row.
	row := tx.QueryRow(ctx,
		`SELECT id, user_id, status, payload, note, created_at, updated_at
		 FROM candidate_items
		 WHERE id = $1 AND user_id = $2 AND status = $3
		 FOR UPDATE`,
		id, userID, models.ItemStatusConsidering)
	candidate, err := scanCandidate(row)
	if err != nil {
		return nil, err
	}

	item := &models.WardrobeItem{
		ID:       uuid.New(),
		UserID:   userID,
		SourceID: candidate.ID,
		Name:     candidate.Payload.Name,
		Category: candidate.Payload.Category,
		Price:    candidate.Payload.Price,
		Currency: candidate.Payload.Currency,
		ImageURL: candidate.Payload.ImageURL,
		AddedAt:  time.Now().UTC(),
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO wardrobe_items (id, user_id, source_id, name, category, price, currency, image_url, added_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.UserID, item.SourceID, item.Name, item.Category,
		item.Price, item.Currency, item.ImageURL, item.AddedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert wardrobe item: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM candidate_items WHERE id = $1`, candidate.ID); err != nil {
		return nil, fmt.Errorf("remove bought candidate: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit buy transaction: %w", err)
	}
	return item, nil
}

// --- Wardrobe ---

func (s *PostgresStore) GetWardrobeItemBySource(ctx context.Context, userID uuid.UUID, sourceID uuid.UUID) (*models.WardrobeItem, error) {
	var w models.WardrobeItem
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, source_id, name, category, price, currency, image_url, added_at
		 FROM wardrobe_items WHERE user_id = $1 AND source_id = $2`, userID, sourceID,
	).Scan(&w.ID, &w.UserID, &w.SourceID, &w.Name, &w.Category, &w.Price, &w.Currency, &w.ImageURL, &w.AddedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wardrobe item by source: %w", err)
	}
	return &w, nil
}

func (s *PostgresStore) ListWardrobe(ctx context.Context, userID uuid.UUID) ([]*models.WardrobeItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, source_id, name, category, price, currency, image_url, added_at
		 FROM wardrobe_items WHERE user_id = $1 ORDER BY added_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wardrobe: %w", err)
	}
	defer rows.Close()

	var items []*models.WardrobeItem
	for rows.Next() {
		var w models.WardrobeItem
		if err := rows.Scan(&w.ID, &w.UserID, &w.SourceID, &w.Name, &w.Category, &w.Price,
			&w.Currency, &w.ImageURL, &w.AddedAt); err != nil {
			return nil, fmt.Errorf("scan wardrobe item: %w", err)
		}
		items = append(items, &w)
	}
	return items, rows.Err()
}

func (s *PostgresStore) ClosetCounts(ctx context.Context, userID uuid.UUID) (*models.ClosetCounts, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, COUNT(*) FROM wardrobe_items WHERE user_id = $1 GROUP BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("count wardrobe: %w", err)
	}
	defer rows.Close()

	counts := &models.ClosetCounts{ByCategory: make(map[string]int)}
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts.ByCategory[category] = n
		counts.All += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM candidate_items WHERE user_id = $1 AND status = $2`,
		userID, models.ItemStatusConsidering,
	).Scan(&counts.Considering)
	if err != nil {
		return nil, fmt.Errorf("count considering candidates: %w", err)
	}

	return counts, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*models.CandidateItem, error) {
	var item models.CandidateItem
	var payload []byte
	err := row.Scan(&item.ID, &item.UserID, &item.Status, &payload, &item.Note,
		&item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan candidate: %w", err)
	}
	if err := json.Unmarshal(payload, &item.Payload); err != nil {
		return nil, fmt.Errorf("decode candidate payload: %w", err)
	}
	return &item, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
