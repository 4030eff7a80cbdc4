package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"garant/internal/property"
	id "garant/pkg/domain"
	dErrors "garant/pkg/domain-errors"
	"garant/pkg/requestcontext"
)

type propertyHandler struct {
	svc *property.Service
}

type createPropertyRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

func (h *propertyHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createPropertyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.svc.Create(r.Context(), requestcontext.Principal(r.Context()), req.Name, req.Location)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *propertyHandler) get(w http.ResponseWriter, r *http.Request) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid property id"))
		return
	}
	p, err := h.svc.Get(r.Context(), propertyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *propertyHandler) delete(w http.ResponseWriter, r *http.Request) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid property id"))
		return
	}
	if err := h.svc.Delete(r.Context(), requestcontext.Principal(r.Context()), propertyID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *propertyHandler) listByLandlord(w http.ResponseWriter, r *http.Request) {
	landlord, err := id.ParseAccount(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid account id"))
		return
	}
	ids, err := h.svc.LandlordProperties(r.Context(), landlord)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"property_ids": ids})
}
