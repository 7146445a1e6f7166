package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// createBaseRetries bounds the retry loop when two concurrent creations for
// the same edition race on the next sale id.
const createBaseRetries = 3

// LifecycleStore implements domain.LifecycleStore using PostgreSQL.
type LifecycleStore struct {
	pool *pgxpool.Pool
}

// NewLifecycleStore creates a new LifecycleStore backed by the given pool.
func NewLifecycleStore(pool *pgxpool.Pool) *LifecycleStore {
	return &LifecycleStore{pool: pool}
}

// CreateBase allocates the next sale id for the edition and stores the base
// record. Allocation and insert are a single statement; a concurrent creation
// for the same edition surfaces as a primary-key conflict and is retried.
func (s *LifecycleStore) CreateBase(ctx context.Context, edition common.Address, startTime, endTime time.Time, affiliateFeeBPS uint16) (uint32, error) {
	const query = `
		INSERT INTO sale_base (edition, sale_id, start_time, end_time, affiliate_fee_bps)
		SELECT $1, COALESCE(MAX(sale_id) + 1, 0), $2, $3, $4
		FROM sale_base
		WHERE edition = $1
		RETURNING sale_id`

	for attempt := 0; ; attempt++ {
		var saleID int64
		err := s.pool.QueryRow(ctx, query,
			edition.Hex(), startTime, endTime, int32(affiliateFeeBPS),
		).Scan(&saleID)
		if err == nil {
			return uint32(saleID), nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && attempt < createBaseRetries {
			continue
		}
		return 0, fmt.Errorf("postgres: create base for %s: %w", edition.Hex(), err)
	}
}

// GetBase returns the base record for a sale or domain.ErrNotFound.
func (s *LifecycleStore) GetBase(ctx context.Context, key domain.SaleKey) (domain.BaseData, error) {
	const query = `
		SELECT start_time, end_time, affiliate_fee_bps, mint_paused
		FROM sale_base
		WHERE edition = $1 AND sale_id = $2`

	var (
		base   domain.BaseData
		feeBPS int32
	)
	err := s.pool.QueryRow(ctx, query, key.Edition.Hex(), int64(key.SaleID)).Scan(
		&base.StartTime, &base.EndTime, &feeBPS, &base.MintPaused,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BaseData{}, domain.ErrNotFound
		}
		return domain.BaseData{}, fmt.Errorf("postgres: get base %s: %w", key, err)
	}
	base.AffiliateFeeBPS = uint16(feeBPS)
	return base, nil
}

// SetMintPaused toggles the pause flag for a sale.
func (s *LifecycleStore) SetMintPaused(ctx context.Context, key domain.SaleKey, paused bool) error {
	const query = `
		UPDATE sale_base SET mint_paused = $3 WHERE edition = $1 AND sale_id = $2`

	tag, err := s.pool.Exec(ctx, query, key.Edition.Hex(), int64(key.SaleID), paused)
	if err != nil {
		return fmt.Errorf("postgres: set mint paused %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.LifecycleStore = (*LifecycleStore)(nil)
