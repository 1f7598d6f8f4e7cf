// Package api exposes the commerce core over HTTP. Authentication and
// routing policy live in the surrounding gateway; these handlers only decode
// requests, call the services and map the error taxonomy to status codes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baajur/bn-api/internal/cart"
	"github.com/baajur/bn-api/internal/commerce"
	"github.com/baajur/bn-api/internal/refund"
	"github.com/baajur/bn-api/internal/report"
)

type Handler struct {
	Cart   *cart.Service
	Refund *refund.Service
	Report *report.Service
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/v1/orders", h.BuildOrder)
	r.Post("/api/v1/orders/{orderId}/refunds", h.RefundOrder)
	r.Get("/api/v1/reports/sales_summary", h.SalesSummary)
}

func (h *Handler) BuildOrder(w http.ResponseWriter, r *http.Request) {
	var req cart.BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.Cart.BuildOrder(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"order":          order,
		"total_in_cents": order.TotalInCents(),
	})
}

func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req struct {
		RequestKey string               `json:"request_key"`
		Items      []refund.ItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.Refund.RefundOrder(r.Context(), orderID, req.RequestKey, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters := report.Filters{OrganizationID: q.Get("organization_id")}
	var err error
	if filters.TransactionStart, err = parseTime(q.Get("transaction_start_utc")); err != nil {
		http.Error(w, "Invalid transaction_start_utc", http.StatusBadRequest)
		return
	}
	if filters.TransactionEnd, err = parseTime(q.Get("transaction_end_utc")); err != nil {
		http.Error(w, "Invalid transaction_end_utc", http.StatusBadRequest)
		return
	}
	if filters.EventStart, err = parseTime(q.Get("event_start_utc")); err != nil {
		http.Error(w, "Invalid event_start_utc", http.StatusBadRequest)
		return
	}
	if filters.EventEnd, err = parseTime(q.Get("event_end_utc")); err != nil {
		http.Error(w, "Invalid event_end_utc", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	rows, total, err := h.Report.SalesSummary(r.Context(), filters, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":  rows,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func parseTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, commerce.ErrOverRefund), errors.Is(err, commerce.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case commerce.IsUserError(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, commerce.ErrNoFeeSchedule):
		// misconfiguration, not user-correctable
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
