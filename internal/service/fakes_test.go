package service

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// In-memory fakes for the domain interfaces. They mirror the semantics the
// real stores guarantee, in particular the conditional increment owning the
// sale-wide cap.

type fakeSaleStore struct {
	mu     sync.Mutex
	scheds map[domain.SaleKey]domain.Schedule
}

func newFakeSaleStore() *fakeSaleStore {
	return &fakeSaleStore{scheds: make(map[domain.SaleKey]domain.Schedule)}
}

func (f *fakeSaleStore) Create(_ context.Context, key domain.SaleKey, s domain.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.scheds[key]; ok {
		return domain.ErrAlreadyExists
	}
	f.scheds[key] = s
	return nil
}

func (f *fakeSaleStore) Get(_ context.Context, key domain.SaleKey) (domain.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scheds[key]
	if !ok {
		return domain.Schedule{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSaleStore) UpdateSchedule(_ context.Context, key domain.SaleKey, startPrice *uint256.Int, interval time.Duration, decreaseSize *uint256.Int, numDecreases uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scheds[key]
	if !ok {
		return domain.ErrNotFound
	}
	s.StartPrice = startPrice
	s.DecreaseInterval = interval
	s.DecreaseSize = decreaseSize
	s.NumDecreases = numDecreases
	f.scheds[key] = s
	return nil
}

func (f *fakeSaleStore) SetMaxMintable(_ context.Context, key domain.SaleKey, value uint32) error {
	return f.set(key, func(s *domain.Schedule) { s.MaxMintable = value })
}

func (f *fakeSaleStore) SetMaxMintablePerAccount(_ context.Context, key domain.SaleKey, value uint32) error {
	return f.set(key, func(s *domain.Schedule) { s.MaxMintablePerAccount = value })
}

func (f *fakeSaleStore) SetTotalMinted(_ context.Context, key domain.SaleKey, value uint32) error {
	return f.set(key, func(s *domain.Schedule) { s.TotalMinted = value })
}

func (f *fakeSaleStore) set(key domain.SaleKey, apply func(*domain.Schedule)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scheds[key]
	if !ok {
		return domain.ErrNotFound
	}
	apply(&s)
	f.scheds[key] = s
	return nil
}

func (f *fakeSaleStore) IncrementTotalMinted(_ context.Context, key domain.SaleKey, delta uint32) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scheds[key]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if uint64(s.TotalMinted)+uint64(delta) > uint64(s.MaxMintable) {
		return 0, domain.ErrSaleCapExceeded
	}
	s.TotalMinted += delta
	f.scheds[key] = s
	return s.TotalMinted, nil
}

type fakeLifecycleStore struct {
	mu     sync.Mutex
	bases  map[domain.SaleKey]domain.BaseData
	nextID map[common.Address]uint32
}

func newFakeLifecycleStore() *fakeLifecycleStore {
	return &fakeLifecycleStore{
		bases:  make(map[domain.SaleKey]domain.BaseData),
		nextID: make(map[common.Address]uint32),
	}
}

func (f *fakeLifecycleStore) CreateBase(_ context.Context, edition common.Address, startTime, endTime time.Time, affiliateFeeBPS uint16) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID[edition]
	f.nextID[edition] = id + 1
	f.bases[domain.SaleKey{Edition: edition, SaleID: id}] = domain.BaseData{
		StartTime:       startTime,
		EndTime:         endTime,
		AffiliateFeeBPS: affiliateFeeBPS,
	}
	return id, nil
}

func (f *fakeLifecycleStore) GetBase(_ context.Context, key domain.SaleKey) (domain.BaseData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bases[key]
	if !ok {
		return domain.BaseData{}, domain.ErrNotFound
	}
	return b, nil
}

func (f *fakeLifecycleStore) SetMintPaused(_ context.Context, key domain.SaleKey, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bases[key]
	if !ok {
		return domain.ErrNotFound
	}
	b.MintPaused = paused
	f.bases[key] = b
	return nil
}

type fakeReceiptStore struct {
	mu       sync.Mutex
	receipts []domain.Receipt
}

func (f *fakeReceiptStore) Insert(_ context.Context, r domain.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts = append(f.receipts, r)
	return nil
}

func (f *fakeReceiptStore) ListBySale(_ context.Context, key domain.SaleKey, _ domain.ListOpts) ([]domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Receipt
	for _, r := range f.receipts {
		if r.Key() == key {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReceiptStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Receipt
	for _, r := range f.receipts {
		if r.MintedAt.Before(cutoff) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReceiptStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []domain.Receipt
	var n int64
	for _, r := range f.receipts {
		if r.MintedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.receipts = kept
	return n, nil
}

type fakeAuditStore struct {
	mu      sync.Mutex
	events  []string
	details []map[string]any
}

func (f *fakeAuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	f.details = append(f.details, detail)
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditEntry, len(f.events))
	for i := range f.events {
		out[i] = domain.AuditEntry{ID: int64(i + 1), Event: f.events[i], Detail: f.details[i]}
	}
	return out, nil
}

type fakeOracle struct {
	held map[common.Address]uint64
	err  error
}

func (f *fakeOracle) UnitsHeldBy(_ context.Context, _, account common.Address) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.held[account], nil
}

type fakeAccess struct {
	allowed map[common.Address]bool
	err     error
}

func (f *fakeAccess) IsOwnerOrAdmin(_ context.Context, _, caller common.Address) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.allowed[caller], nil
}

type fakeCache struct {
	mu          sync.Mutex
	infos       map[domain.SaleKey]domain.SaleInfo
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{infos: make(map[domain.SaleKey]domain.SaleInfo)}
}

func (f *fakeCache) Get(_ context.Context, key domain.SaleKey) (domain.SaleInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.infos[key]
	if !ok {
		return domain.SaleInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (f *fakeCache) Set(_ context.Context, info domain.SaleInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos[info.Key] = info
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, key domain.SaleKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.infos, key)
	f.invalidated++
	return nil
}

type fakeLocks struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired int
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]bool)}
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	f.acquired++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
	}, nil
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: make(map[string][][]byte)}
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

// Compile-time interface checks.
var (
	_ domain.SaleStore      = (*fakeSaleStore)(nil)
	_ domain.LifecycleStore = (*fakeLifecycleStore)(nil)
	_ domain.ReceiptStore   = (*fakeReceiptStore)(nil)
	_ domain.AuditStore     = (*fakeAuditStore)(nil)
	_ domain.HoldingsOracle = (*fakeOracle)(nil)
	_ domain.AccessControl  = (*fakeAccess)(nil)
	_ domain.SaleInfoCache  = (*fakeCache)(nil)
	_ domain.LockManager    = (*fakeLocks)(nil)
	_ domain.SignalBus      = (*fakeBus)(nil)
)
