package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// SaleAdminService defines the mutating methods the admin handler requires
// from the service layer.
type SaleAdminService interface {
	CreateSale(ctx context.Context, caller, edition common.Address, base domain.BaseData, sched domain.Schedule) (domain.SaleKey, error)
	SetSchedule(ctx context.Context, caller common.Address, key domain.SaleKey, startPrice *uint256.Int, interval time.Duration, decreaseSize *uint256.Int, numDecreases uint32) error
	SetMaxMintable(ctx context.Context, caller common.Address, key domain.SaleKey, maxMintable uint32) error
	SetMaxMintablePerAccount(ctx context.Context, caller common.Address, key domain.SaleKey, perAccount uint32) error
	SetMintPaused(ctx context.Context, caller common.Address, key domain.SaleKey, paused bool) error
}

// AdminHandler serves the administrative endpoints. Prices arrive as decimal
// wei strings and intervals as Go duration strings ("100s", "5m").
type AdminHandler struct {
	admin  SaleAdminService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler with the given service and logger.
func NewAdminHandler(admin SaleAdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		logger: logger,
	}
}

// scheduleBody is the curve-and-caps portion of sale requests.
type scheduleBody struct {
	StartPrice            string `json:"start_price"`
	DecreaseInterval      string `json:"decrease_interval"`
	DecreaseSize          string `json:"decrease_size"`
	NumDecreases          uint32 `json:"num_decreases"`
	MaxMintable           uint32 `json:"max_mintable"`
	MaxMintablePerAccount uint32 `json:"max_mintable_per_account"`
}

// createSaleRequest is the body of the create-sale endpoint.
type createSaleRequest struct {
	Edition         string       `json:"edition"`
	StartTime       string       `json:"start_time"`
	EndTime         string       `json:"end_time"`
	AffiliateFeeBPS uint16       `json:"affiliate_fee_bps"`
	Schedule        scheduleBody `json:"schedule"`
}

// CreateSale registers a new sale and returns its key.
// POST /api/sales
func (h *AdminHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	caller, ok := parseCaller(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid "+callerHeader+" header")
		return
	}

	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Edition) {
		writeError(w, http.StatusBadRequest, "edition must be a hex address")
		return
	}

	base := domain.BaseData{AffiliateFeeBPS: req.AffiliateFeeBPS}
	if req.StartTime != "" {
		t, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_time must be RFC 3339")
			return
		}
		base.StartTime = t
	}
	if req.EndTime != "" {
		t, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_time must be RFC 3339")
			return
		}
		base.EndTime = t
	}

	sched, err := parseSchedule(req.Schedule)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.admin.CreateSale(r.Context(), caller, common.HexToAddress(req.Edition), base, sched)
	if err != nil {
		h.logError(r, "create sale", err)
		writeDomainError(w, err, "failed to create sale")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"edition": key.Edition.Hex(),
		"sale_id": key.SaleID,
	})
}

// setScheduleRequest is the body of the schedule replacement endpoint.
type setScheduleRequest struct {
	StartPrice       string `json:"start_price"`
	DecreaseInterval string `json:"decrease_interval"`
	DecreaseSize     string `json:"decrease_size"`
	NumDecreases     uint32 `json:"num_decreases"`
}

// SetSchedule replaces the sale's price curve.
// PUT /api/sales/{edition}/{saleID}/schedule
func (h *AdminHandler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	caller, key, ok := h.callerAndKey(w, r)
	if !ok {
		return
	}

	var req setScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	startPrice, err := parsePrice("start_price", req.StartPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	decreaseSize, err := parsePrice("decrease_size", req.DecreaseSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	interval, err := time.ParseDuration(req.DecreaseInterval)
	if err != nil {
		writeError(w, http.StatusBadRequest, "decrease_interval must be a duration string")
		return
	}

	if err := h.admin.SetSchedule(r.Context(), caller, key, startPrice, interval, decreaseSize, req.NumDecreases); err != nil {
		h.logError(r, "set schedule", err)
		writeDomainError(w, err, "failed to set schedule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// SetMaxMintable adjusts the sale-wide cap.
// PUT /api/sales/{edition}/{saleID}/max-mintable
func (h *AdminHandler) SetMaxMintable(w http.ResponseWriter, r *http.Request) {
	caller, key, ok := h.callerAndKey(w, r)
	if !ok {
		return
	}

	var req struct {
		MaxMintable uint32 `json:"max_mintable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.admin.SetMaxMintable(r.Context(), caller, key, req.MaxMintable); err != nil {
		h.logError(r, "set max mintable", err)
		writeDomainError(w, err, "failed to set max mintable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// SetMaxMintablePerAccount adjusts the per-account cap.
// PUT /api/sales/{edition}/{saleID}/max-mintable-per-account
func (h *AdminHandler) SetMaxMintablePerAccount(w http.ResponseWriter, r *http.Request) {
	caller, key, ok := h.callerAndKey(w, r)
	if !ok {
		return
	}

	var req struct {
		MaxMintablePerAccount uint32 `json:"max_mintable_per_account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.admin.SetMaxMintablePerAccount(r.Context(), caller, key, req.MaxMintablePerAccount); err != nil {
		h.logError(r, "set per-account cap", err)
		writeDomainError(w, err, "failed to set per-account cap")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// SetMintPaused flips the sale's pause flag.
// PUT /api/sales/{edition}/{saleID}/paused
func (h *AdminHandler) SetMintPaused(w http.ResponseWriter, r *http.Request) {
	caller, key, ok := h.callerAndKey(w, r)
	if !ok {
		return
	}

	var req struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.admin.SetMintPaused(r.Context(), caller, key, req.Paused); err != nil {
		h.logError(r, "set paused", err)
		writeDomainError(w, err, "failed to set paused")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "paused": req.Paused})
}

// callerAndKey extracts the caller header and sale key, writing the error
// response itself on failure.
func (h *AdminHandler) callerAndKey(w http.ResponseWriter, r *http.Request) (common.Address, domain.SaleKey, bool) {
	caller, ok := parseCaller(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid "+callerHeader+" header")
		return common.Address{}, domain.SaleKey{}, false
	}
	key, ok := parseSaleKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid edition address or sale id")
		return common.Address{}, domain.SaleKey{}, false
	}
	return caller, key, true
}

func (h *AdminHandler) logError(r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
		slog.String("error", err.Error()),
	)
}

// parseSchedule converts the wire schedule into its domain form.
func parseSchedule(b scheduleBody) (domain.Schedule, error) {
	startPrice, err := parsePrice("start_price", b.StartPrice)
	if err != nil {
		return domain.Schedule{}, err
	}
	decreaseSize, err := parsePrice("decrease_size", b.DecreaseSize)
	if err != nil {
		return domain.Schedule{}, err
	}
	interval, err := time.ParseDuration(b.DecreaseInterval)
	if err != nil {
		return domain.Schedule{}, errInvalidField{"decrease_interval must be a duration string"}
	}
	return domain.Schedule{
		StartPrice:            startPrice,
		DecreaseInterval:      interval,
		DecreaseSize:          decreaseSize,
		NumDecreases:          b.NumDecreases,
		MaxMintable:           b.MaxMintable,
		MaxMintablePerAccount: b.MaxMintablePerAccount,
	}, nil
}

// parsePrice parses a decimal wei string.
func parsePrice(field, v string) (*uint256.Int, error) {
	p, err := uint256.FromDecimal(v)
	if err != nil {
		return nil, errInvalidField{field + " must be a decimal wei string"}
	}
	return p, nil
}

// errInvalidField is a request-shape error surfaced as a 400.
type errInvalidField struct {
	msg string
}

func (e errInvalidField) Error() string { return e.msg }
