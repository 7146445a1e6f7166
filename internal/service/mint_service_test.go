package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintfolio/dutchmint/internal/domain"
)

var (
	testEdition = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testBuyer   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testAdmin   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testStart   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type mintFixture struct {
	svc       *MintService
	sales     *fakeSaleStore
	lifecycle *fakeLifecycleStore
	receipts  *fakeReceiptStore
	oracle    *fakeOracle
	cache     *fakeCache
	locks     *fakeLocks
	bus       *fakeBus
	key       domain.SaleKey
}

// newMintFixture seeds one open sale: price 1000 dropping 50 every 100s for
// ten steps, sale cap 10, per-account cap 5.
func newMintFixture(t *testing.T) *mintFixture {
	t.Helper()

	f := &mintFixture{
		sales:     newFakeSaleStore(),
		lifecycle: newFakeLifecycleStore(),
		receipts:  &fakeReceiptStore{},
		oracle:    &fakeOracle{held: make(map[common.Address]uint64)},
		cache:     newFakeCache(),
		locks:     newFakeLocks(),
		bus:       newFakeBus(),
	}

	ctx := context.Background()
	id, err := f.lifecycle.CreateBase(ctx, testEdition, testStart, time.Time{}, 0)
	require.NoError(t, err)
	f.key = domain.SaleKey{Edition: testEdition, SaleID: id}

	require.NoError(t, f.sales.Create(ctx, f.key, domain.Schedule{
		StartPrice:            uint256.NewInt(1000),
		DecreaseInterval:      100 * time.Second,
		DecreaseSize:          uint256.NewInt(50),
		NumDecreases:          10,
		MaxMintable:           10,
		MaxMintablePerAccount: 5,
	}))

	logger := slog.New(slog.DiscardHandler)
	f.svc = NewMintService(f.sales, f.lifecycle, f.receipts, f.oracle, f.cache, f.locks, f.bus, nil, logger)
	f.svc.now = func() time.Time { return testStart.Add(250 * time.Second) }
	return f
}

func (f *mintFixture) totalMinted(t *testing.T) uint32 {
	t.Helper()
	sched, err := f.sales.Get(context.Background(), f.key)
	require.NoError(t, err)
	return sched.TotalMinted
}

func TestPurchase(t *testing.T) {
	f := newMintFixture(t)

	// Two full intervals have elapsed, so the unit price is 900.
	receipt, err := f.svc.Purchase(context.Background(), f.key, testBuyer, 3)
	require.NoError(t, err)

	assert.Equal(t, testEdition, receipt.Edition)
	assert.Equal(t, testBuyer, receipt.Account)
	assert.Equal(t, uint32(3), receipt.Quantity)
	assert.Equal(t, "900", receipt.UnitPrice.Dec())
	assert.Equal(t, "2700", receipt.TotalPrice.Dec())
	assert.Equal(t, uint32(3), receipt.TotalMinted)
	assert.NotEmpty(t, receipt.ID)

	assert.Equal(t, uint32(3), f.totalMinted(t))
	assert.Len(t, f.receipts.receipts, 1)
	assert.Equal(t, 1, f.cache.invalidated)
	assert.Len(t, f.bus.published["mints"], 1)
}

func TestPurchaseZeroQuantity(t *testing.T) {
	f := newMintFixture(t)

	_, err := f.svc.Purchase(context.Background(), f.key, testBuyer, 0)
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.Zero(t, f.locks.acquired)
	assert.Zero(t, f.totalMinted(t))
}

func TestPurchasePerAccountCap(t *testing.T) {
	f := newMintFixture(t)
	ctx := context.Background()

	// Holding 3 of 5, a purchase of 3 must fail whole.
	f.oracle.held[testBuyer] = 3
	_, err := f.svc.Purchase(ctx, f.key, testBuyer, 3)
	require.ErrorIs(t, err, domain.ErrPerAccountCapExceeded)
	assert.Zero(t, f.totalMinted(t))
	assert.Empty(t, f.receipts.receipts)

	// A purchase of 2 lands exactly on the cap and succeeds.
	receipt, err := f.svc.Purchase(ctx, f.key, testBuyer, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), receipt.Quantity)
	assert.Equal(t, uint32(2), f.totalMinted(t))
}

func TestPurchasePerAccountCapHugeBalance(t *testing.T) {
	f := newMintFixture(t)
	ctx := context.Background()

	// The ledger is external input: a hostile contract can report any
	// balance. A value near MaxUint64 must still fail the cap check rather
	// than wrapping the sum past it.
	for _, held := range []uint64{math.MaxUint64, math.MaxUint64 - 2, uint64(math.MaxUint32)} {
		f.oracle.held[testBuyer] = held
		_, err := f.svc.Purchase(ctx, f.key, testBuyer, 3)
		require.ErrorIs(t, err, domain.ErrPerAccountCapExceeded, "held=%d", held)
	}
	assert.Zero(t, f.totalMinted(t))
	assert.Empty(t, f.receipts.receipts)

	// Exactly at the cap is also a rejection; one below is not.
	f.oracle.held[testBuyer] = 5
	_, err := f.svc.Purchase(ctx, f.key, testBuyer, 1)
	require.ErrorIs(t, err, domain.ErrPerAccountCapExceeded)

	f.oracle.held[testBuyer] = 4
	_, err = f.svc.Purchase(ctx, f.key, testBuyer, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), f.totalMinted(t))
}

func TestPurchaseSaleCap(t *testing.T) {
	f := newMintFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sales.SetTotalMinted(ctx, f.key, 8))

	// 8 + 3 exceeds the cap of 10; nothing changes.
	_, err := f.svc.Purchase(ctx, f.key, testBuyer, 3)
	require.ErrorIs(t, err, domain.ErrSaleCapExceeded)
	assert.Equal(t, uint32(8), f.totalMinted(t))
	assert.Empty(t, f.receipts.receipts)

	// 8 + 2 lands exactly on the cap.
	receipt, err := f.svc.Purchase(ctx, f.key, testBuyer, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), receipt.TotalMinted)
	assert.Equal(t, uint32(10), f.totalMinted(t))
}

func TestPurchaseLifecycleGates(t *testing.T) {
	ctx := context.Background()

	t.Run("paused", func(t *testing.T) {
		f := newMintFixture(t)
		require.NoError(t, f.lifecycle.SetMintPaused(ctx, f.key, true))
		_, err := f.svc.Purchase(ctx, f.key, testBuyer, 1)
		require.ErrorIs(t, err, domain.ErrMintPaused)
		assert.Zero(t, f.totalMinted(t))
	})

	t.Run("not started", func(t *testing.T) {
		f := newMintFixture(t)
		f.svc.now = func() time.Time { return testStart.Add(-time.Minute) }
		_, err := f.svc.Purchase(ctx, f.key, testBuyer, 1)
		require.ErrorIs(t, err, domain.ErrSaleNotStarted)
	})

	t.Run("ended", func(t *testing.T) {
		f := newMintFixture(t)
		f.lifecycle.mu.Lock()
		base := f.lifecycle.bases[f.key]
		base.EndTime = testStart.Add(time.Hour)
		f.lifecycle.bases[f.key] = base
		f.lifecycle.mu.Unlock()

		f.svc.now = func() time.Time { return testStart.Add(2 * time.Hour) }
		_, err := f.svc.Purchase(ctx, f.key, testBuyer, 1)
		require.ErrorIs(t, err, domain.ErrSaleEnded)
	})
}

func TestPurchaseLockHeld(t *testing.T) {
	f := newMintFixture(t)
	ctx := context.Background()

	unlock, err := f.locks.Acquire(ctx, "purchase:"+f.key.String(), time.Minute)
	require.NoError(t, err)
	defer unlock()

	_, err = f.svc.Purchase(ctx, f.key, testBuyer, 1)
	require.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Zero(t, f.totalMinted(t))
}

func TestPurchaseLockReleased(t *testing.T) {
	f := newMintFixture(t)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, f.key, testBuyer, 1)
	require.NoError(t, err)

	// The lock must be free again for the next purchase.
	_, err = f.svc.Purchase(ctx, f.key, testBuyer, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), f.totalMinted(t))
}

func TestPurchaseOracleFailure(t *testing.T) {
	f := newMintFixture(t)
	f.oracle.err = errors.New("rpc timeout")

	_, err := f.svc.Purchase(context.Background(), f.key, testBuyer, 1)
	require.Error(t, err)
	assert.Zero(t, f.totalMinted(t))
	assert.Empty(t, f.receipts.receipts)
}

func TestPurchasePriceUnderflow(t *testing.T) {
	f := newMintFixture(t)
	ctx := context.Background()

	// A decrease of 200 over ten steps drops below zero by step five. The
	// checked subtraction fails before any state change.
	require.NoError(t, f.sales.UpdateSchedule(ctx, f.key,
		uint256.NewInt(1000), 100*time.Second, uint256.NewInt(200), 10))

	_, err := f.svc.Purchase(ctx, f.key, testBuyer, 1)
	require.ErrorIs(t, err, domain.ErrPriceUnderflow)
	assert.Zero(t, f.totalMinted(t))
}

func TestPurchaseUnknownSale(t *testing.T) {
	f := newMintFixture(t)

	missing := domain.SaleKey{Edition: testEdition, SaleID: 99}
	_, err := f.svc.Purchase(context.Background(), missing, testBuyer, 1)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
