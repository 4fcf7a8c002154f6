package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/tradeforce/promo-engine/internal/domain/promotion"
)

// calculate evaluates every active promotion against the supplied order
// context. Validation failures are 400; everything else the engine reports
// is surfaced as 500 with the raw message.
func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	req, err := decodeCalculateRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}

	result, err := h.service.Calculate(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, "calculate promotions")
		return
	}

	writeJSON(w, http.StatusOK, encodeCalculateResult(result))
}

// apply records an applied promotion in the tracking trail.
func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	req, err := decodeApplyRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
		return
	}
	req.UserID = UserIDFromContext(r.Context())

	result, err := h.service.Apply(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, "apply promotion")
		return
	}

	writeJSON(w, http.StatusOK, encodeApplyResult(result))
}

// listActive returns the promotions active at ?date= (default now).
func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	at := time.Now()
	if s := r.URL.Query().Get("date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed date: "+s)
			return
		}
		at = t
	}

	promos, err := h.promos.ListActive(r.Context(), at)
	if err != nil {
		h.writeServiceError(w, r, err, "list promotions")
		return
	}

	writeJSON(w, http.StatusOK, encodePromotionList(promos))
}

// writeServiceError maps domain errors to the API's status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, promotion.ErrCustomerRequired),
		errors.Is(err, promotion.ErrLinesRequired),
		errors.Is(err, promotion.ErrPromotionRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, promotion.ErrPromotionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed",
			zap.String("op", op),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
