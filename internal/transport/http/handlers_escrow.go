package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"garant/internal/escrow"
	"garant/internal/receipt"
	id "garant/pkg/domain"
	dErrors "garant/pkg/domain-errors"
	"garant/pkg/requestcontext"
)

type escrowHandler struct {
	svc *escrow.Service
}

type createDepositRequest struct {
	PropertyID id.PropertyID `json:"property_id"`
	Code       string        `json:"code"`
}

func (h *escrowHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createDepositRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PropertyID.IsNil() {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "property_id is required"))
		return
	}
	deposit, err := h.svc.CreateDeposit(r.Context(), requestcontext.Principal(r.Context()), req.PropertyID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, deposit)
}

type setAmountRequest struct {
	Amount uint64 `json:"amount"`
}

func (h *escrowHandler) setAmount(w http.ResponseWriter, r *http.Request) {
	depositID, ok := depositParam(w, r)
	if !ok {
		return
	}
	var req setAmountRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	deposit, err := h.svc.SetAmount(r.Context(), requestcontext.Principal(r.Context()), depositID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deposit)
}

type payRequest struct {
	Code   string `json:"code"`
	Amount uint64 `json:"amount"`
}

type payResponse struct {
	Deposit *escrow.Deposit `json:"deposit"`
	TokenID id.TokenID      `json:"token_id"`
}

func (h *escrowHandler) pay(w http.ResponseWriter, r *http.Request) {
	depositID, ok := depositParam(w, r)
	if !ok {
		return
	}
	var req payRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	deposit, tokenID, err := h.svc.Pay(r.Context(), requestcontext.Principal(r.Context()), depositID, req.Code, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payResponse{Deposit: deposit, TokenID: tokenID})
}

func (h *escrowHandler) refund(w http.ResponseWriter, r *http.Request) {
	depositID, ok := depositParam(w, r)
	if !ok {
		return
	}
	deposit, err := h.svc.Refund(r.Context(), requestcontext.Principal(r.Context()), depositID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deposit)
}

func (h *escrowHandler) dispute(w http.ResponseWriter, r *http.Request) {
	depositID, ok := depositParam(w, r)
	if !ok {
		return
	}
	deposit, err := h.svc.Dispute(r.Context(), requestcontext.Principal(r.Context()), depositID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deposit)
}

type resolveRequest struct {
	RefundAmount uint64 `json:"refund_amount"`
}

func (h *escrowHandler) resolve(w http.ResponseWriter, r *http.Request) {
	depositID, ok := depositParam(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	deposit, err := h.svc.Resolve(r.Context(), requestcontext.Principal(r.Context()), depositID, req.RefundAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deposit)
}

func (h *escrowHandler) get(w http.ResponseWriter, r *http.Request) {
	depositID, ok := depositParam(w, r)
	if !ok {
		return
	}
	deposit, err := h.svc.Deposit(r.Context(), depositID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deposit)
}

// extendedDepositResponse joins the deposit with its property and landlord,
// mirroring the receipt metadata view.
type extendedDepositResponse struct {
	DepositID   id.DepositID  `json:"deposit_id"`
	PropertyID  id.PropertyID `json:"property_id"`
	Landlord    id.Account    `json:"landlord"`
	Tenant      id.Account    `json:"tenant"`
	Amount      uint64        `json:"amount"`
	FinalAmount uint64        `json:"final_amount"`
	StatusLabel string        `json:"status_label"`
	Terminal    bool          `json:"terminal"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	RefundedAt  *time.Time    `json:"refunded_at,omitempty"`
}

func extendedFromSnapshot(snap *receipt.DepositSnapshot) extendedDepositResponse {
	return extendedDepositResponse{
		DepositID:   snap.DepositID,
		PropertyID:  snap.PropertyID,
		Landlord:    snap.Landlord,
		Tenant:      snap.Tenant,
		Amount:      snap.Amount,
		FinalAmount: snap.FinalAmount,
		StatusLabel: snap.StatusLabel,
		Terminal:    snap.Terminal,
		PaidAt:      snap.PaidAt,
		RefundedAt:  snap.RefundedAt,
	}
}

func (h *escrowHandler) extended(w http.ResponseWriter, r *http.Request) {
	depositID, ok := depositParam(w, r)
	if !ok {
		return
	}
	snap, err := h.svc.ExtendedInfo(r.Context(), depositID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, extendedFromSnapshot(snap))
}

func (h *escrowHandler) activeForProperty(w http.ResponseWriter, r *http.Request) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid property id"))
		return
	}
	depositID, err := h.svc.DepositIDFromProperty(r.Context(), propertyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deposit_id": depositID})
}

func (h *escrowHandler) propertyOfDeposit(w http.ResponseWriter, r *http.Request) {
	depositID, ok := depositParam(w, r)
	if !ok {
		return
	}
	propertyID, err := h.svc.PropertyIDFromDeposit(r.Context(), requestcontext.Principal(r.Context()), depositID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"property_id": propertyID})
}

func (h *escrowHandler) listByTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := id.ParseAccount(chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid account id"))
		return
	}
	deposits, err := h.svc.TenantDeposits(r.Context(), tenant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deposits": deposits})
}

func (h *escrowHandler) listByProperty(w http.ResponseWriter, r *http.Request) {
	propertyID, err := id.ParsePropertyID(chi.URLParam(r, "propertyID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid property id"))
		return
	}
	deposits, err := h.svc.PropertyDeposits(r.Context(), requestcontext.Principal(r.Context()), propertyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deposits": deposits})
}

type receiveFundsRequest struct {
	Amount uint64 `json:"amount"`
}

func (h *escrowHandler) receiveFunds(w http.ResponseWriter, r *http.Request) {
	var req receiveFundsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller := requestcontext.Principal(r.Context())
	if err := h.svc.ReceiveFunds(r.Context(), caller, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": caller, "credited": req.Amount})
}

func (h *escrowHandler) balance(w http.ResponseWriter, r *http.Request) {
	caller := requestcontext.Principal(r.Context())
	balance, err := h.svc.Balance(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": caller, "balance": balance})
}

func depositParam(w http.ResponseWriter, r *http.Request) (id.DepositID, bool) {
	depositID, err := id.ParseDepositID(chi.URLParam(r, "depositID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid deposit id"))
		return 0, false
	}
	return depositID, true
}
