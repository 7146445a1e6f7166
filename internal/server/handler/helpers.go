// Package handler contains the HTTP handlers for the dutchmint API. Each
// handler declares the slice of the service layer it needs as a local
// interface, keeping the package free of concrete service dependencies.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintfolio/dutchmint/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses and
// writes the response. Unknown errors become opaque 500s; fallback describes
// the operation for that case.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidSchedule),
		errors.Is(err, domain.ErrZeroDecreaseInterval),
		errors.Is(err, domain.ErrZeroPerAccountCap):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "caller is not an owner or admin")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "sale not found")
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrLockHeld),
		errors.Is(err, domain.ErrSaleCapExceeded),
		errors.Is(err, domain.ErrPerAccountCapExceeded),
		errors.Is(err, domain.ErrMintPaused),
		errors.Is(err, domain.ErrSaleNotStarted),
		errors.Is(err, domain.ErrSaleEnded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPriceUnderflow),
		errors.Is(err, domain.ErrPriceOverflow):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// parseListOpts extracts pagination and time-range parameters from the query
// string. Defaults: limit=50 (max 500), offset=0. Time bounds are RFC 3339.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{Limit: limit, Offset: offset}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Until = &t
		}
	}
	return opts
}

// parseSaleKey extracts the {edition}/{saleID} pair from the request path
// using Go 1.22+ built-in routing.
func parseSaleKey(r *http.Request) (domain.SaleKey, bool) {
	edition := r.PathValue("edition")
	if !common.IsHexAddress(edition) {
		return domain.SaleKey{}, false
	}
	saleID, err := strconv.ParseUint(r.PathValue("saleID"), 10, 32)
	if err != nil {
		return domain.SaleKey{}, false
	}
	return domain.SaleKey{Edition: common.HexToAddress(edition), SaleID: uint32(saleID)}, true
}

// callerHeader carries the address administrative requests act as. Signature
// verification happens upstream of this service; here the header is trusted
// and checked against the admin set and edition owner.
const callerHeader = "X-Caller-Address"

// parseCaller extracts the caller address from the request headers.
func parseCaller(r *http.Request) (common.Address, bool) {
	v := r.Header.Get(callerHeader)
	if !common.IsHexAddress(v) {
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}
