package api

import (
	"net/http"

	"tableflow/internal/domain"
)

func (h *Handlers) raiseCall(w http.ResponseWriter, r *http.Request) {
	var req domain.RaiseCallRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if err := h.calls.Raise(r.Context(), req.TableNo, req.Source); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) claimCall(w http.ResponseWriter, r *http.Request) {
	var req domain.ClaimCallRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	p, _ := principalFrom(r.Context())
	call, err := h.calls.Claim(r.Context(), req.TableNo, req.Source, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

// activeCalls is the sync read a connecting waiter session starts from.
func (h *Handlers) activeCalls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.calls.Snapshot())
}
