package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// SaleStore implements domain.SaleStore using PostgreSQL.
type SaleStore struct {
	pool *pgxpool.Pool
}

// NewSaleStore creates a new SaleStore backed by the given connection pool.
func NewSaleStore(pool *pgxpool.Pool) *SaleStore {
	return &SaleStore{pool: pool}
}

// Create inserts the schedule for a new sale. It returns
// domain.ErrAlreadyExists when a record is already present for the key.
func (s *SaleStore) Create(ctx context.Context, key domain.SaleKey, sched domain.Schedule) error {
	const query = `
		INSERT INTO sale_schedules (
			edition, sale_id, start_price, decrease_interval_secs,
			decrease_size, num_decreases, max_mintable,
			max_mintable_per_account, total_minted
		) VALUES (
			$1, $2, $3::numeric, $4,
			$5::numeric, $6, $7,
			$8, $9
		)`

	_, err := s.pool.Exec(ctx, query,
		key.Edition.Hex(), int64(key.SaleID),
		sched.StartPrice.Dec(), int64(sched.DecreaseInterval/time.Second),
		sched.DecreaseSize.Dec(), int64(sched.NumDecreases), int64(sched.MaxMintable),
		int64(sched.MaxMintablePerAccount), int64(sched.TotalMinted),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create schedule %s: %w", key, err)
	}
	return nil
}

// Get retrieves the schedule for a sale or domain.ErrNotFound.
func (s *SaleStore) Get(ctx context.Context, key domain.SaleKey) (domain.Schedule, error) {
	const query = `
		SELECT start_price::text, decrease_interval_secs, decrease_size::text,
			num_decreases, max_mintable, max_mintable_per_account, total_minted
		FROM sale_schedules
		WHERE edition = $1 AND sale_id = $2`

	row := s.pool.QueryRow(ctx, query, key.Edition.Hex(), int64(key.SaleID))
	sched, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Schedule{}, domain.ErrNotFound
		}
		return domain.Schedule{}, fmt.Errorf("postgres: get schedule %s: %w", key, err)
	}
	return sched, nil
}

// scanSchedule scans one schedule row, parsing the NUMERIC price columns from
// their decimal text form.
func scanSchedule(row pgx.Row) (domain.Schedule, error) {
	var (
		sched                              domain.Schedule
		startPrice, decreaseSize           string
		intervalSecs, numDecreases         int64
		maxMintable, perAccount, totMinted int64
	)
	if err := row.Scan(
		&startPrice, &intervalSecs, &decreaseSize,
		&numDecreases, &maxMintable, &perAccount, &totMinted,
	); err != nil {
		return domain.Schedule{}, err
	}

	sp, err := uint256.FromDecimal(startPrice)
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("parse start_price %q: %w", startPrice, err)
	}
	ds, err := uint256.FromDecimal(decreaseSize)
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("parse decrease_size %q: %w", decreaseSize, err)
	}

	sched.StartPrice = sp
	sched.DecreaseInterval = time.Duration(intervalSecs) * time.Second
	sched.DecreaseSize = ds
	sched.NumDecreases = uint32(numDecreases)
	sched.MaxMintable = uint32(maxMintable)
	sched.MaxMintablePerAccount = uint32(perAccount)
	sched.TotalMinted = uint32(totMinted)
	return sched, nil
}

// UpdateSchedule overwrites the four price-curve fields unconditionally.
func (s *SaleStore) UpdateSchedule(ctx context.Context, key domain.SaleKey, startPrice *uint256.Int, interval time.Duration, decreaseSize *uint256.Int, numDecreases uint32) error {
	const query = `
		UPDATE sale_schedules
		SET start_price = $3::numeric, decrease_interval_secs = $4,
			decrease_size = $5::numeric, num_decreases = $6, updated_at = NOW()
		WHERE edition = $1 AND sale_id = $2`

	tag, err := s.pool.Exec(ctx, query,
		key.Edition.Hex(), int64(key.SaleID),
		startPrice.Dec(), int64(interval/time.Second),
		decreaseSize.Dec(), int64(numDecreases),
	)
	if err != nil {
		return fmt.Errorf("postgres: update schedule %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetMaxMintable overwrites the sale-wide cap. Setting a value below the
// recorded total is allowed: it stops future sales without rewriting history.
func (s *SaleStore) SetMaxMintable(ctx context.Context, key domain.SaleKey, value uint32) error {
	return s.setColumn(ctx, key, "max_mintable", int64(value))
}

// SetMaxMintablePerAccount overwrites the per-purchaser cap.
func (s *SaleStore) SetMaxMintablePerAccount(ctx context.Context, key domain.SaleKey, value uint32) error {
	return s.setColumn(ctx, key, "max_mintable_per_account", int64(value))
}

// SetTotalMinted overwrites the running total directly.
func (s *SaleStore) SetTotalMinted(ctx context.Context, key domain.SaleKey, value uint32) error {
	return s.setColumn(ctx, key, "total_minted", int64(value))
}

// setColumn overwrites a single integer column for the keyed row.
func (s *SaleStore) setColumn(ctx context.Context, key domain.SaleKey, column string, value int64) error {
	query := fmt.Sprintf(
		`UPDATE sale_schedules SET %s = $3, updated_at = NOW() WHERE edition = $1 AND sale_id = $2`,
		column,
	)
	tag, err := s.pool.Exec(ctx, query, key.Edition.Hex(), int64(key.SaleID), value)
	if err != nil {
		return fmt.Errorf("postgres: set %s for %s: %w", column, key, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// IncrementTotalMinted advances the running total by delta only when the
// result stays within the sale-wide cap, returning the new total. The check
// and the write are one atomic statement, so this is the single point that
// enforces total_minted <= max_mintable.
func (s *SaleStore) IncrementTotalMinted(ctx context.Context, key domain.SaleKey, delta uint32) (uint32, error) {
	const query = `
		UPDATE sale_schedules
		SET total_minted = total_minted + $3, updated_at = NOW()
		WHERE edition = $1 AND sale_id = $2
			AND total_minted + $3 <= max_mintable
		RETURNING total_minted`

	var newTotal int64
	err := s.pool.QueryRow(ctx, query,
		key.Edition.Hex(), int64(key.SaleID), int64(delta),
	).Scan(&newTotal)
	if err == nil {
		return uint32(newTotal), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("postgres: increment total minted %s: %w", key, err)
	}

	// No row updated: distinguish a missing sale from a breached cap.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM sale_schedules WHERE edition = $1 AND sale_id = $2)",
		key.Edition.Hex(), int64(key.SaleID),
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("postgres: increment total minted %s: %w", key, err)
	}
	if !exists {
		return 0, domain.ErrNotFound
	}
	return 0, domain.ErrSaleCapExceeded
}

// Compile-time interface check.
var _ domain.SaleStore = (*SaleStore)(nil)
