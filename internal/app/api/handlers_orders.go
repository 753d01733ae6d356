package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tableflow/internal/domain"
)

func (h *Handlers) submitCart(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitCartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	order, created, err := h.orders.SubmitCart(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, domain.SubmitCartResponse{Order: order, Created: created})
}

func (h *Handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) liveBoard(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.LiveBoard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handlers) kitchenBoard(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.KitchenBoard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handlers) history(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	orders, err := h.orders.History(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handlers) claimPreparation(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	order, err := h.orders.ClaimPreparation(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) unclaimPreparation(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	order, err := h.orders.UnclaimPreparation(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) advance(w http.ResponseWriter, r *http.Request) {
	var req domain.AdvanceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, _ := principalFrom(r.Context())
	order, err := h.orders.Advance(r.Context(), chi.URLParam(r, "id"), req.Status, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) setPriority(w http.ResponseWriter, r *http.Request) {
	var req domain.PriorityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	order, err := h.orders.SetPriority(r.Context(), chi.URLParam(r, "id"), req.IsPriority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) closeOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.CloseOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) markPaid(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.MarkPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
