package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"garant/internal/receipt"
	id "garant/pkg/domain"
	dErrors "garant/pkg/domain-errors"
	"garant/pkg/requestcontext"
)

type receiptHandler struct {
	issuer *receipt.Issuer
}

func (h *receiptHandler) tokenOfDeposit(w http.ResponseWriter, r *http.Request) {
	depositID, ok := depositParam(w, r)
	if !ok {
		return
	}
	tokenID, err := h.issuer.TokenOfDeposit(r.Context(), depositID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token_id": tokenID})
}

func (h *receiptHandler) uri(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := tokenParam(w, r)
	if !ok {
		return
	}
	uri, err := h.issuer.TokenURI(r.Context(), tokenID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token_id": tokenID, "uri": uri})
}

func (h *receiptHandler) owner(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := tokenParam(w, r)
	if !ok {
		return
	}
	owner, err := h.issuer.OwnerOf(r.Context(), tokenID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token_id": tokenID, "owner": owner})
}

func (h *receiptHandler) depositOfToken(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := tokenParam(w, r)
	if !ok {
		return
	}
	depositID, err := h.issuer.DepositOfToken(r.Context(), tokenID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deposit_id": depositID})
}

type transferRequest struct {
	To id.Account `json:"to"`
}

func (h *receiptHandler) transfer(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := tokenParam(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.issuer.Transfer(r.Context(), requestcontext.Principal(r.Context()), tokenID, req.To); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token_id": tokenID, "owner": req.To})
}

func (h *receiptHandler) burn(w http.ResponseWriter, r *http.Request) {
	tokenID, ok := tokenParam(w, r)
	if !ok {
		return
	}
	if err := h.issuer.Burn(r.Context(), requestcontext.Principal(r.Context()), tokenID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func tokenParam(w http.ResponseWriter, r *http.Request) (id.TokenID, bool) {
	tokenID, err := id.ParseTokenID(chi.URLParam(r, "tokenID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid token id"))
		return 0, false
	}
	return tokenID, true
}
