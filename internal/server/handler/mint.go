package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// PurchaseService defines the methods the mint handler requires from the
// service layer.
type PurchaseService interface {
	Purchase(ctx context.Context, key domain.SaleKey, account common.Address, quantity uint32) (domain.Receipt, error)
}

// MintHandler serves the purchase endpoint.
type MintHandler struct {
	mints  PurchaseService
	logger *slog.Logger
}

// NewMintHandler creates a MintHandler with the given service and logger.
func NewMintHandler(mints PurchaseService, logger *slog.Logger) *MintHandler {
	return &MintHandler{
		mints:  mints,
		logger: logger,
	}
}

// purchaseRequest is the body of the purchase endpoint.
type purchaseRequest struct {
	Account  string `json:"account"`
	Quantity uint32 `json:"quantity"`
}

// Purchase mints units of a sale to the given account at the current price.
// POST /api/sales/{edition}/{saleID}/purchase
func (h *MintHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	key, ok := parseSaleKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid edition address or sale id")
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !common.IsHexAddress(req.Account) {
		writeError(w, http.StatusBadRequest, "account must be a hex address")
		return
	}

	receipt, err := h.mints.Purchase(r.Context(), key, common.HexToAddress(req.Account), req.Quantity)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: purchase failed",
			slog.String("sale", key.String()),
			slog.String("account", req.Account),
			slog.Uint64("quantity", uint64(req.Quantity)),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to purchase")
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}
