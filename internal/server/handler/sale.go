package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// SaleQueryService defines the read-only methods the sale handler requires
// from the service layer.
type SaleQueryService interface {
	InfoFor(ctx context.Context, key domain.SaleKey) (domain.SaleInfo, error)
	PriceFor(ctx context.Context, key domain.SaleKey, quantity uint32, at time.Time) (domain.Quote, error)
	FloorFor(ctx context.Context, key domain.SaleKey) (domain.Quote, time.Time, error)
	ListReceipts(ctx context.Context, key domain.SaleKey, opts domain.ListOpts) ([]domain.Receipt, error)
	ListAudit(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// SaleHandler serves the read-only sale endpoints.
type SaleHandler struct {
	queries SaleQueryService
	logger  *slog.Logger
}

// NewSaleHandler creates a SaleHandler with the given service and logger.
func NewSaleHandler(queries SaleQueryService, logger *slog.Logger) *SaleHandler {
	return &SaleHandler{
		queries: queries,
		logger:  logger,
	}
}

// GetSale returns the merged snapshot of a sale.
// GET /api/sales/{edition}/{saleID}
func (h *SaleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	key, ok := parseSaleKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid edition address or sale id")
		return
	}

	info, err := h.queries.InfoFor(r.Context(), key)
	if err != nil {
		h.logError(r, "get sale", key, err)
		writeDomainError(w, err, "failed to get sale")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// priceResponse is the body of the price endpoint.
type priceResponse struct {
	UnitPrice  string `json:"unit_price"`
	TotalPrice string `json:"total_price"`
	Quantity   uint32 `json:"quantity"`
	At         string `json:"at"`
}

// GetPrice quotes a quantity at an optional instant (default now).
// GET /api/sales/{edition}/{saleID}/price?quantity=3&at=2026-03-01T12:00:00Z
func (h *SaleHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	key, ok := parseSaleKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid edition address or sale id")
		return
	}

	q := r.URL.Query()
	quantity := uint64(1)
	if v := q.Get("quantity"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "quantity must be an unsigned 32-bit integer")
			return
		}
		quantity = n
	}

	var at time.Time
	if v := q.Get("at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "at must be RFC 3339")
			return
		}
		at = t
	}

	quote, err := h.queries.PriceFor(r.Context(), key, uint32(quantity), at)
	if err != nil {
		h.logError(r, "get price", key, err)
		writeDomainError(w, err, "failed to quote price")
		return
	}

	if at.IsZero() {
		at = time.Now().UTC()
	}
	writeJSON(w, http.StatusOK, priceResponse{
		UnitPrice:  quote.UnitPrice.Dec(),
		TotalPrice: quote.TotalPrice.Dec(),
		Quantity:   uint32(quantity),
		At:         at.Format(time.RFC3339),
	})
}

// floorResponse is the body of the floor endpoint.
type floorResponse struct {
	FloorPrice string `json:"floor_price"`
	FloorAt    string `json:"floor_at"`
}

// GetFloor returns the curve's terminal price and when it is reached.
// GET /api/sales/{edition}/{saleID}/floor
func (h *SaleHandler) GetFloor(w http.ResponseWriter, r *http.Request) {
	key, ok := parseSaleKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid edition address or sale id")
		return
	}

	quote, at, err := h.queries.FloorFor(r.Context(), key)
	if err != nil {
		h.logError(r, "get floor", key, err)
		writeDomainError(w, err, "failed to compute floor")
		return
	}
	writeJSON(w, http.StatusOK, floorResponse{
		FloorPrice: quote.UnitPrice.Dec(),
		FloorAt:    at.Format(time.RFC3339),
	})
}

// listReceiptsResponse wraps the receipt list output.
type listReceiptsResponse struct {
	Receipts []domain.Receipt `json:"receipts"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListReceipts returns the mint receipts of a sale, newest first.
// GET /api/sales/{edition}/{saleID}/receipts?limit=50&offset=0
func (h *SaleHandler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	key, ok := parseSaleKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid edition address or sale id")
		return
	}
	opts := parseListOpts(r)

	receipts, err := h.queries.ListReceipts(r.Context(), key, opts)
	if err != nil {
		h.logError(r, "list receipts", key, err)
		writeDomainError(w, err, "failed to list receipts")
		return
	}
	if receipts == nil {
		receipts = []domain.Receipt{}
	}
	writeJSON(w, http.StatusOK, listReceiptsResponse{
		Receipts: receipts,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

// ListAudit returns administrative audit entries, newest first.
// GET /api/audit?limit=50&offset=0
func (h *SaleHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	entries, err := h.queries.ListAudit(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *SaleHandler) logError(r *http.Request, op string, key domain.SaleKey, err error) {
	h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
		slog.String("sale", key.String()),
		slog.String("error", err.Error()),
	)
}
