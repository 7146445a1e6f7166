package postgres

import (
	"context"
	"fmt"

	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// ReceiptStore implements domain.ReceiptStore using PostgreSQL.
type ReceiptStore struct {
	pool *pgxpool.Pool
}

// NewReceiptStore creates a new ReceiptStore backed by the given pool.
func NewReceiptStore(pool *pgxpool.Pool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

// Insert appends one mint receipt.
func (s *ReceiptStore) Insert(ctx context.Context, r domain.Receipt) error {
	const query = `
		INSERT INTO mint_receipts (
			id, edition, sale_id, account, quantity,
			unit_price, total_price, total_minted, minted_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.Edition.Hex(), int64(r.SaleID), r.Account.Hex(), int64(r.Quantity),
		r.UnitPrice.Dec(), r.TotalPrice.Dec(), int64(r.TotalMinted), r.MintedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert receipt %s: %w", r.ID, err)
	}
	return nil
}

const receiptCols = `id, edition, sale_id, account, quantity,
	unit_price::text, total_price::text, total_minted, minted_at`

// scanReceipts drains rows into receipts, parsing addresses and prices from
// their text forms.
func scanReceipts(rows pgx.Rows) ([]domain.Receipt, error) {
	var receipts []domain.Receipt
	for rows.Next() {
		var (
			r                     domain.Receipt
			edition, account      string
			saleID, qty, total    int64
			unitPrice, totalPrice string
		)
		if err := rows.Scan(
			&r.ID, &edition, &saleID, &account, &qty,
			&unitPrice, &totalPrice, &total, &r.MintedAt,
		); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}

		up, err := uint256.FromDecimal(unitPrice)
		if err != nil {
			return nil, fmt.Errorf("parse unit_price %q: %w", unitPrice, err)
		}
		tp, err := uint256.FromDecimal(totalPrice)
		if err != nil {
			return nil, fmt.Errorf("parse total_price %q: %w", totalPrice, err)
		}

		r.Edition = common.HexToAddress(edition)
		r.Account = common.HexToAddress(account)
		r.SaleID = uint32(saleID)
		r.Quantity = uint32(qty)
		r.UnitPrice = up
		r.TotalPrice = tp
		r.TotalMinted = uint32(total)
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// ListBySale returns receipts for one sale, newest first.
func (s *ReceiptStore) ListBySale(ctx context.Context, key domain.SaleKey, opts domain.ListOpts) ([]domain.Receipt, error) {
	query := `SELECT ` + receiptCols + ` FROM mint_receipts WHERE edition = $1 AND sale_id = $2`
	args := []any{key.Edition.Hex(), int64(key.SaleID)}
	argIdx := 3

	if opts.Since != nil {
		query += fmt.Sprintf(" AND minted_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND minted_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY minted_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list receipts %s: %w", key, err)
	}
	defer rows.Close()

	receipts, err := scanReceipts(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list receipts %s: %w", key, err)
	}
	return receipts, nil
}

// ListBefore returns up to limit receipts minted strictly before cutoff,
// oldest first. Used by the archiver.
func (s *ReceiptStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Receipt, error) {
	query := `SELECT ` + receiptCols + ` FROM mint_receipts WHERE minted_at < $1 ORDER BY minted_at ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list receipts before %s: %w", cutoff, err)
	}
	defer rows.Close()

	receipts, err := scanReceipts(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list receipts before %s: %w", cutoff, err)
	}
	return receipts, nil
}

// DeleteBefore removes receipts minted strictly before cutoff and reports how
// many rows were deleted.
func (s *ReceiptStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM mint_receipts WHERE minted_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete receipts before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.ReceiptStore = (*ReceiptStore)(nil)
