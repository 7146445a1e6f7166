package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintfolio/dutchmint/internal/domain"
)

type adminFixture struct {
	svc       *AdminService
	sales     *fakeSaleStore
	lifecycle *fakeLifecycleStore
	audit     *fakeAuditStore
	access    *fakeAccess
	cache     *fakeCache
	bus       *fakeBus
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()

	f := &adminFixture{
		sales:     newFakeSaleStore(),
		lifecycle: newFakeLifecycleStore(),
		audit:     &fakeAuditStore{},
		access:    &fakeAccess{allowed: map[common.Address]bool{testAdmin: true}},
		cache:     newFakeCache(),
		bus:       newFakeBus(),
	}
	logger := slog.New(slog.DiscardHandler)
	f.svc = NewAdminService(f.sales, f.lifecycle, f.audit, f.access, f.cache, f.bus, nil, logger)
	return f
}

func validSchedule() domain.Schedule {
	return domain.Schedule{
		StartPrice:            uint256.NewInt(1000),
		DecreaseInterval:      100 * time.Second,
		DecreaseSize:          uint256.NewInt(50),
		NumDecreases:          10,
		MaxMintable:           10,
		MaxMintablePerAccount: 5,
	}
}

func (f *adminFixture) createSale(t *testing.T) domain.SaleKey {
	t.Helper()
	key, err := f.svc.CreateSale(context.Background(), testAdmin, testEdition,
		domain.BaseData{StartTime: testStart}, validSchedule())
	require.NoError(t, err)
	return key
}

func TestCreateSale(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	sched := validSchedule()
	sched.TotalMinted = 7 // caller-supplied totals are ignored

	key, err := f.svc.CreateSale(ctx, testAdmin, testEdition, domain.BaseData{StartTime: testStart}, sched)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), key.SaleID)

	stored, err := f.sales.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), stored.TotalMinted)
	assert.Equal(t, "1000", stored.StartPrice.Dec())

	assert.Equal(t, []string{"create_sale"}, f.audit.events)
	assert.Len(t, f.bus.published["sales"], 1)

	// Sale IDs are monotonic per edition.
	key2, err := f.svc.CreateSale(ctx, testAdmin, testEdition, domain.BaseData{StartTime: testStart}, validSchedule())
	require.NoError(t, err)
	assert.Equal(t, uint32(1), key2.SaleID)
}

func TestCreateSaleRejectsZeroInterval(t *testing.T) {
	f := newAdminFixture(t)

	sched := validSchedule()
	sched.DecreaseInterval = 0

	_, err := f.svc.CreateSale(context.Background(), testAdmin, testEdition, domain.BaseData{StartTime: testStart}, sched)
	require.ErrorIs(t, err, domain.ErrZeroDecreaseInterval)
	assert.Empty(t, f.sales.scheds)
	assert.Empty(t, f.lifecycle.bases)
	assert.Empty(t, f.audit.events)
}

func TestCreateSaleRejectsZeroPerAccountCap(t *testing.T) {
	f := newAdminFixture(t)

	sched := validSchedule()
	sched.MaxMintablePerAccount = 0

	_, err := f.svc.CreateSale(context.Background(), testAdmin, testEdition, domain.BaseData{StartTime: testStart}, sched)
	require.ErrorIs(t, err, domain.ErrZeroPerAccountCap)
	assert.Empty(t, f.sales.scheds)
}

func TestCreateSaleUnauthorized(t *testing.T) {
	f := newAdminFixture(t)

	_, err := f.svc.CreateSale(context.Background(), testBuyer, testEdition, domain.BaseData{StartTime: testStart}, validSchedule())
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, f.sales.scheds)
}

func TestSetSchedule(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	key := f.createSale(t)

	require.NoError(t, f.sales.SetTotalMinted(ctx, key, 4))

	err := f.svc.SetSchedule(ctx, testAdmin, key, uint256.NewInt(2000), time.Minute, uint256.NewInt(10), 20)
	require.NoError(t, err)

	stored, err := f.sales.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "2000", stored.StartPrice.Dec())
	assert.Equal(t, time.Minute, stored.DecreaseInterval)
	assert.Equal(t, uint32(20), stored.NumDecreases)

	// Caps and the running total survive a curve replacement.
	assert.Equal(t, uint32(10), stored.MaxMintable)
	assert.Equal(t, uint32(5), stored.MaxMintablePerAccount)
	assert.Equal(t, uint32(4), stored.TotalMinted)
}

func TestSetScheduleRejectsZeroInterval(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	key := f.createSale(t)

	err := f.svc.SetSchedule(ctx, testAdmin, key, uint256.NewInt(2000), 0, uint256.NewInt(10), 20)
	require.ErrorIs(t, err, domain.ErrZeroDecreaseInterval)

	stored, err := f.sales.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "1000", stored.StartPrice.Dec())
}

func TestSetScheduleAcceptsUnderflowingFloor(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	key := f.createSale(t)

	// 1000 - 10*200 underflows at the floor, but the schedule is stored;
	// the curve prices fine for its first five steps and the admin can
	// correct it in place.
	err := f.svc.SetSchedule(ctx, testAdmin, key, uint256.NewInt(1000), time.Minute, uint256.NewInt(200), 10)
	require.NoError(t, err)

	stored, err := f.sales.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "200", stored.DecreaseSize.Dec())
}

func TestSetMaxMintableBelowTotalMinted(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	key := f.createSale(t)

	require.NoError(t, f.sales.SetTotalMinted(ctx, key, 8))

	// Lowering the cap under the running total is the stop-future-sales
	// lever; history is untouched.
	require.NoError(t, f.svc.SetMaxMintable(ctx, testAdmin, key, 5))

	stored, err := f.sales.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), stored.MaxMintable)
	assert.Equal(t, uint32(8), stored.TotalMinted)

	_, err = f.sales.IncrementTotalMinted(ctx, key, 1)
	require.ErrorIs(t, err, domain.ErrSaleCapExceeded)
}

func TestSetMaxMintablePerAccountRejectsZero(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	key := f.createSale(t)

	err := f.svc.SetMaxMintablePerAccount(ctx, testAdmin, key, 0)
	require.ErrorIs(t, err, domain.ErrZeroPerAccountCap)

	stored, err := f.sales.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), stored.MaxMintablePerAccount)
}

func TestSetMintPaused(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	key := f.createSale(t)

	require.NoError(t, f.svc.SetMintPaused(ctx, testAdmin, key, true))
	base, err := f.lifecycle.GetBase(ctx, key)
	require.NoError(t, err)
	assert.True(t, base.MintPaused)

	require.NoError(t, f.svc.SetMintPaused(ctx, testAdmin, key, false))
	base, err = f.lifecycle.GetBase(ctx, key)
	require.NoError(t, err)
	assert.False(t, base.MintPaused)
}

func TestMutationsInvalidateCache(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	key := f.createSale(t)

	before := f.cache.invalidated
	require.NoError(t, f.svc.SetMaxMintable(ctx, testAdmin, key, 20))
	require.NoError(t, f.svc.SetMintPaused(ctx, testAdmin, key, true))
	assert.Equal(t, before+2, f.cache.invalidated)
}
