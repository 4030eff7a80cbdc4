package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"garant/internal/escrow"
	"garant/internal/files"
	"garant/internal/platform/middleware"
	"garant/internal/property"
	"garant/internal/receipt"
	dErrors "garant/pkg/domain-errors"
)

// Deps carries everything the router wires together.
type Deps struct {
	Properties *property.Service
	Escrow     *escrow.Service
	Files      *files.Service
	Receipts   *receipt.Issuer
	Auth       middleware.PrincipalValidator
	Logger     *slog.Logger
	// Health reports backend liveness for /healthz. Nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter builds the full route table. Reads are public; every mutation
// goes through bearer auth so the services always see a bound principal.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	properties := &propertyHandler{svc: deps.Properties}
	deposits := &escrowHandler{svc: deps.Escrow}
	fileRoutes := &filesHandler{svc: deps.Files}
	tokens := &receiptHandler{issuer: deps.Receipts}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))

	r.NotFound(unknownOperation)
	r.MethodNotAllowed(unknownOperation)

	r.Get("/healthz", healthHandler(deps.Health))
	r.Handle("/metrics", promhttp.Handler())

	// Public read surface.
	r.Group(func(r chi.Router) {
		r.Get("/properties/{propertyID}", properties.get)
		r.Get("/landlords/{accountID}/properties", properties.listByLandlord)

		r.Get("/deposits/{depositID}", deposits.get)
		r.Get("/deposits/{depositID}/extended", deposits.extended)
		r.Get("/properties/{propertyID}/deposit", deposits.activeForProperty)
		r.Get("/tenants/{accountID}/deposits", deposits.listByTenant)

		r.Get("/deposits/{depositID}/files", fileRoutes.list)

		r.Get("/deposits/{depositID}/token", tokens.tokenOfDeposit)
		r.Get("/tokens/{tokenID}/uri", tokens.uri)
		r.Get("/tokens/{tokenID}/owner", tokens.owner)
		r.Get("/tokens/{tokenID}/deposit", tokens.depositOfToken)
	})

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Auth, logger))

		r.Post("/properties", properties.create)
		r.Delete("/properties/{propertyID}", properties.delete)

		r.Post("/deposits", deposits.create)
		r.Post("/deposits/{depositID}/amount", deposits.setAmount)
		r.Post("/deposits/{depositID}/pay", deposits.pay)
		r.Post("/deposits/{depositID}/refund", deposits.refund)
		r.Post("/deposits/{depositID}/dispute", deposits.dispute)
		r.Post("/deposits/{depositID}/resolve", deposits.resolve)
		r.Get("/deposits/{depositID}/property", deposits.propertyOfDeposit)
		r.Get("/properties/{propertyID}/deposits", deposits.listByProperty)

		r.Post("/deposits/{depositID}/files", fileRoutes.add)

		r.Post("/tokens/{tokenID}/transfer", tokens.transfer)
		r.Delete("/tokens/{tokenID}", tokens.burn)

		r.Post("/funds", deposits.receiveFunds)
		r.Get("/funds/balance", deposits.balance)
	})

	return r
}

func unknownOperation(w http.ResponseWriter, _ *http.Request) {
	writeError(w, dErrors.New(dErrors.CodeUnknownOperation, "operation does not exist"))
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
