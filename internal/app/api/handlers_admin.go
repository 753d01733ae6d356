package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tableflow/internal/domain"
)

func (h *Handlers) online(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	if err := h.presence.SetOnline(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) offline(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	if err := h.presence.SetOffline(r.Context(), p.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) heartbeat(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	if err := h.presence.Heartbeat(r.Context(), p.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) onlineSet(w http.ResponseWriter, r *http.Request) {
	online, err := h.presence.Online(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, online)
}

func (h *Handlers) disableStaff(w http.ResponseWriter, r *http.Request) {
	if err := h.presence.DisableStaff(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) callStaff(w http.ResponseWriter, r *http.Request) {
	var req domain.CallStaffRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, _ := principalFrom(r.Context())
	if err := h.presence.CallStaff(r.Context(), chi.URLParam(r, "id"), p.Name, req.Message); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// catalogRefresh publishes the opaque catalog-changed trigger after the
// external catalog mutated; connected menus re-fetch their product lists.
func (h *Handlers) catalogRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.bus.CatalogChanged(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
