package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintfolio/dutchmint/internal/domain"
)

var (
	testEdition = "0x1111111111111111111111111111111111111111"
	testCaller  = "0x3333333333333333333333333333333333333333"
)

// stubQueries implements SaleQueryService with canned responses.
type stubQueries struct {
	info    domain.SaleInfo
	infoErr error
	quote   domain.Quote
	err     error
}

func (s *stubQueries) InfoFor(context.Context, domain.SaleKey) (domain.SaleInfo, error) {
	return s.info, s.infoErr
}

func (s *stubQueries) PriceFor(context.Context, domain.SaleKey, uint32, time.Time) (domain.Quote, error) {
	return s.quote, s.err
}

func (s *stubQueries) FloorFor(context.Context, domain.SaleKey) (domain.Quote, time.Time, error) {
	return s.quote, time.Time{}, s.err
}

func (s *stubQueries) ListReceipts(context.Context, domain.SaleKey, domain.ListOpts) ([]domain.Receipt, error) {
	return nil, s.err
}

func (s *stubQueries) ListAudit(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, s.err
}

// stubMints implements PurchaseService.
type stubMints struct {
	receipt domain.Receipt
	err     error
	gotKey  domain.SaleKey
	gotQty  uint32
}

func (s *stubMints) Purchase(_ context.Context, key domain.SaleKey, _ common.Address, qty uint32) (domain.Receipt, error) {
	s.gotKey = key
	s.gotQty = qty
	return s.receipt, s.err
}

// stubAdmin implements SaleAdminService.
type stubAdmin struct {
	key      domain.SaleKey
	err      error
	gotSched domain.Schedule
}

func (s *stubAdmin) CreateSale(_ context.Context, _, _ common.Address, _ domain.BaseData, sched domain.Schedule) (domain.SaleKey, error) {
	s.gotSched = sched
	return s.key, s.err
}

func (s *stubAdmin) SetSchedule(context.Context, common.Address, domain.SaleKey, *uint256.Int, time.Duration, *uint256.Int, uint32) error {
	return s.err
}

func (s *stubAdmin) SetMaxMintable(context.Context, common.Address, domain.SaleKey, uint32) error {
	return s.err
}

func (s *stubAdmin) SetMaxMintablePerAccount(context.Context, common.Address, domain.SaleKey, uint32) error {
	return s.err
}

func (s *stubAdmin) SetMintPaused(context.Context, common.Address, domain.SaleKey, bool) error {
	return s.err
}

// newMux registers the sale routes the way the server does, so path
// parameters resolve in tests.
func newMux(sales *SaleHandler, mints *MintHandler, admin *AdminHandler) *http.ServeMux {
	mux := http.NewServeMux()
	if sales != nil {
		mux.HandleFunc("GET /api/sales/{edition}/{saleID}", sales.GetSale)
		mux.HandleFunc("GET /api/sales/{edition}/{saleID}/price", sales.GetPrice)
	}
	if mints != nil {
		mux.HandleFunc("POST /api/sales/{edition}/{saleID}/purchase", mints.Purchase)
	}
	if admin != nil {
		mux.HandleFunc("POST /api/sales", admin.CreateSale)
		mux.HandleFunc("PUT /api/sales/{edition}/{saleID}/max-mintable", admin.SetMaxMintable)
	}
	return mux
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestGetSale(t *testing.T) {
	queries := &stubQueries{info: domain.SaleInfo{
		Key: domain.SaleKey{Edition: common.HexToAddress(testEdition), SaleID: 0},
	}}
	mux := newMux(NewSaleHandler(queries, discardLogger()), nil, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sales/"+testEdition+"/0", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var info domain.SaleInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, common.HexToAddress(testEdition), info.Key.Edition)
}

func TestGetSaleNotFound(t *testing.T) {
	queries := &stubQueries{infoErr: domain.ErrNotFound}
	mux := newMux(NewSaleHandler(queries, discardLogger()), nil, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sales/"+testEdition+"/5", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSaleBadEdition(t *testing.T) {
	mux := newMux(NewSaleHandler(&stubQueries{}, discardLogger()), nil, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sales/not-an-address/0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPrice(t *testing.T) {
	queries := &stubQueries{quote: domain.Quote{
		UnitPrice:  uint256.NewInt(900),
		TotalPrice: uint256.NewInt(2700),
	}}
	mux := newMux(NewSaleHandler(queries, discardLogger()), nil, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sales/"+testEdition+"/0/price?quantity=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp priceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "900", resp.UnitPrice)
	assert.Equal(t, "2700", resp.TotalPrice)
	assert.Equal(t, uint32(3), resp.Quantity)
}

func TestGetPriceArithmeticError(t *testing.T) {
	queries := &stubQueries{err: domain.ErrPriceUnderflow}
	mux := newMux(NewSaleHandler(queries, discardLogger()), nil, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sales/"+testEdition+"/0/price", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPurchase(t *testing.T) {
	mints := &stubMints{receipt: domain.Receipt{
		ID:          "r1",
		Edition:     common.HexToAddress(testEdition),
		Quantity:    2,
		UnitPrice:   uint256.NewInt(900),
		TotalPrice:  uint256.NewInt(1800),
		TotalMinted: 2,
	}}
	mux := newMux(nil, NewMintHandler(mints, discardLogger()), nil)

	body := `{"account":"` + testCaller + `","quantity":2}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sales/"+testEdition+"/0/purchase", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint32(2), mints.gotQty)
	assert.Equal(t, common.HexToAddress(testEdition), mints.gotKey.Edition)
}

func TestPurchaseErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidQuantity, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrPerAccountCapExceeded, http.StatusConflict},
		{domain.ErrSaleCapExceeded, http.StatusConflict},
		{domain.ErrMintPaused, http.StatusConflict},
		{domain.ErrLockHeld, http.StatusConflict},
		{domain.ErrPriceUnderflow, http.StatusUnprocessableEntity},
	}

	for _, tc := range cases {
		mux := newMux(nil, NewMintHandler(&stubMints{err: tc.err}, discardLogger()), nil)
		body := `{"account":"` + testCaller + `","quantity":1}`
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sales/"+testEdition+"/0/purchase", strings.NewReader(body)))
		assert.Equalf(t, tc.want, rec.Code, "error %v", tc.err)
	}
}

func TestPurchaseBadAccount(t *testing.T) {
	mux := newMux(nil, NewMintHandler(&stubMints{}, discardLogger()), nil)

	body := `{"account":"nope","quantity":1}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sales/"+testEdition+"/0/purchase", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSale(t *testing.T) {
	admin := &stubAdmin{key: domain.SaleKey{Edition: common.HexToAddress(testEdition), SaleID: 3}}
	mux := newMux(nil, nil, NewAdminHandler(admin, discardLogger()))

	body := `{
		"edition": "` + testEdition + `",
		"start_time": "2026-03-01T12:00:00Z",
		"schedule": {
			"start_price": "1000000000000000000",
			"decrease_interval": "100s",
			"decrease_size": "50000000000000000",
			"num_decreases": 10,
			"max_mintable": 100,
			"max_mintable_per_account": 5
		}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/sales", strings.NewReader(body))
	req.Header.Set(callerHeader, testCaller)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "1000000000000000000", admin.gotSched.StartPrice.Dec())
	assert.Equal(t, 100*time.Second, admin.gotSched.DecreaseInterval)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(3), resp["sale_id"])
}

func TestCreateSaleMissingCaller(t *testing.T) {
	mux := newMux(nil, nil, NewAdminHandler(&stubAdmin{}, discardLogger()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sales", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSaleBadPrice(t *testing.T) {
	mux := newMux(nil, nil, NewAdminHandler(&stubAdmin{}, discardLogger()))

	body := `{"edition":"` + testEdition + `","schedule":{"start_price":"not-a-number","decrease_interval":"100s","decrease_size":"1"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/sales", strings.NewReader(body))
	req.Header.Set(callerHeader, testCaller)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSaleUnauthorized(t *testing.T) {
	mux := newMux(nil, nil, NewAdminHandler(&stubAdmin{err: domain.ErrUnauthorized}, discardLogger()))

	body := `{"edition":"` + testEdition + `","schedule":{"start_price":"1","decrease_interval":"100s","decrease_size":"1"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/sales", strings.NewReader(body))
	req.Header.Set(callerHeader, testCaller)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSetMaxMintable(t *testing.T) {
	mux := newMux(nil, nil, NewAdminHandler(&stubAdmin{}, discardLogger()))

	req := httptest.NewRequest(http.MethodPut, "/api/sales/"+testEdition+"/0/max-mintable", strings.NewReader(`{"max_mintable":5}`))
	req.Header.Set(callerHeader, testCaller)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
