package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"garant/internal/files"
	id "garant/pkg/domain"
	dErrors "garant/pkg/domain-errors"
	"garant/pkg/requestcontext"
)

type filesHandler struct {
	svc *files.Service
}

type addFileRequest struct {
	Type      string `json:"type"`
	ContentID string `json:"content_id"`
	Name      string `json:"name"`
}

func (h *filesHandler) add(w http.ResponseWriter, r *http.Request) {
	depositID, err := id.ParseDepositID(chi.URLParam(r, "depositID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid deposit id"))
		return
	}
	var req addFileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	file, err := h.svc.Add(r.Context(), requestcontext.Principal(r.Context()), depositID, files.Type(req.Type), req.ContentID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, file)
}

func (h *filesHandler) list(w http.ResponseWriter, r *http.Request) {
	depositID, err := id.ParseDepositID(chi.URLParam(r, "depositID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid deposit id"))
		return
	}
	records, err := h.svc.List(r.Context(), depositID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": records})
}
