package escrow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"garant/internal/custody"
	"garant/internal/events"
	"garant/internal/platform/metrics"
	"garant/internal/property"
	"garant/internal/receipt"
	id "garant/pkg/domain"
	dErrors "garant/pkg/domain-errors"
	"garant/pkg/platform/sentinel"
	"garant/pkg/platform/tx"
	"garant/pkg/requestcontext"
)

// Service is the escrow engine. Every mutating operation runs inside the
// transactional boundary and follows the same shape: load, validate caller
// and state, apply the transition, then move funds and emit events. Nothing
// is written before the last validation has passed.
type Service struct {
	deposits   DepositStore
	properties property.Store
	funds      custody.Ledger
	receipts   *receipt.Issuer
	events     events.Recorder
	metrics    *metrics.Metrics
	logger     *slog.Logger
	txRunner   tx.Runner
	tracer     trace.Tracer
}

// Option configures optional collaborators.
type Option func(*Service)

func WithEvents(rec events.Recorder) Option {
	return func(s *Service) { s.events = rec }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) { s.txRunner = r }
}

func NewService(deposits DepositStore, properties property.Store, funds custody.Ledger, receipts *receipt.Issuer, opts ...Option) *Service {
	s := &Service{
		deposits:   deposits,
		properties: properties,
		funds:      funds,
		receipts:   receipts,
		logger:     slog.Default(),
		txRunner:   tx.NewMutexRunner(),
		tracer:     otel.Tracer("garant/internal/escrow"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDeposit opens a PENDING deposit against an available property and
// makes it the property's active deposit. Landlord only.
func (s *Service) CreateDeposit(ctx context.Context, caller id.Account, propertyID id.PropertyID, code string) (*Deposit, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.CreateDeposit",
		trace.WithAttributes(attribute.String("property.id", propertyID.String())))
	defer span.End()

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "deposit code is required")
	}
	// Hash outside the transaction; bcrypt is deliberately slow.
	codeHash, err := HashCode(code)
	if err != nil {
		return nil, err
	}

	var created *Deposit
	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		prop, err := s.findProperty(ctx, propertyID)
		if err != nil {
			return err
		}
		if prop.Landlord != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "only the landlord may open a deposit")
		}
		if !prop.CurrentDepositID.IsNil() {
			return dErrors.Newf(dErrors.CodeInvalidState, "property %s already has an active deposit", propertyID)
		}
		if prop.Status != property.StatusNotRented {
			return dErrors.Newf(dErrors.CodeInvalidState, "property %s is not available", propertyID)
		}

		deposit := &Deposit{
			PropertyID: propertyID,
			CodeHash:   codeHash,
			Status:     StatusPending,
			CreatedAt:  requestcontext.Now(ctx),
		}
		if err := s.deposits.Create(ctx, deposit); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create deposit")
		}
		prop.CurrentDepositID = deposit.ID
		if err := s.properties.Update(ctx, prop); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to bind deposit to property")
		}

		s.emit(ctx, events.Event{
			Type:       events.TypeDepositCreated,
			PropertyID: propertyID,
			DepositID:  deposit.ID,
			Account:    caller.String(),
		})
		created = deposit
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DepositsCreated.Inc()
	}
	s.logger.InfoContext(ctx, "deposit created",
		"deposit_id", created.ID.String(),
		"property_id", propertyID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return created, nil
}

// SetAmount fixes the amount a tenant must pay. Landlord only, and only
// while the deposit is still PENDING; repeated calls overwrite.
func (s *Service) SetAmount(ctx context.Context, caller id.Account, depositID id.DepositID, amount uint64) (*Deposit, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.SetAmount",
		trace.WithAttributes(attribute.String("deposit.id", depositID.String())))
	defer span.End()

	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}

	var updated *Deposit
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		deposit, prop, err := s.findDepositAndProperty(ctx, depositID)
		if err != nil {
			return err
		}
		if prop.Landlord != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "only the landlord may set the amount")
		}
		if err := deposit.CanSetAmount(); err != nil {
			return err
		}

		deposit.Amount = amount
		if err := s.deposits.Update(ctx, deposit); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update deposit")
		}
		updated = deposit
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "deposit amount set",
		"deposit_id", depositID.String(),
		"amount", amount,
		"request_id", requestcontext.RequestID(ctx),
	)
	return updated, nil
}

// Pay funds a PENDING deposit. The caller must present the shared code and
// the exact amount; on success the caller becomes the tenant of record, the
// funds move into custody, the property flips to RENTED, and the receipt
// token is minted. Returns the updated deposit and the minted token id.
func (s *Service) Pay(ctx context.Context, caller id.Account, depositID id.DepositID, code string, value uint64) (*Deposit, id.TokenID, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.Pay",
		trace.WithAttributes(attribute.String("deposit.id", depositID.String())))
	defer span.End()

	var (
		paid    *Deposit
		tokenID id.TokenID
	)
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		deposit, prop, err := s.findDepositAndProperty(ctx, depositID)
		if err != nil {
			return err
		}
		if err := deposit.VerifyPayment(code, value); err != nil {
			return err
		}

		if err := s.funds.Hold(ctx, depositID, caller, value); err != nil {
			if errors.Is(err, sentinel.ErrInsufficientFunds) {
				return dErrors.New(dErrors.CodeInvalidInput, "insufficient funds")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hold funds")
		}

		deposit.ApplyPayment(caller, requestcontext.Now(ctx))
		if err := s.deposits.Update(ctx, deposit); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update deposit")
		}
		prop.Status = property.StatusRented
		if err := s.properties.Update(ctx, prop); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update property")
		}

		token, err := s.receipts.Mint(ctx, buildSnapshot(deposit, prop), caller)
		if err != nil {
			return err
		}
		tokenID = token.ID

		s.emit(ctx,
			events.Event{
				Type:       events.TypeDepositPaid,
				PropertyID: deposit.PropertyID,
				DepositID:  depositID,
				Account:    caller.String(),
				Amount:     value,
			},
			events.Event{
				Type:       events.TypePropertyStatusChanged,
				PropertyID: deposit.PropertyID,
				Status:     string(property.StatusRented),
			},
			events.Event{
				Type:      events.TypeReceiptMinted,
				DepositID: depositID,
				TokenID:   token.ID,
				Account:   caller.String(),
			},
		)
		paid = deposit
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}

	if s.metrics != nil {
		s.metrics.DepositsPaid.Inc()
	}
	s.updateHeldGauge(ctx)
	s.logger.InfoContext(ctx, "deposit paid",
		"deposit_id", depositID.String(),
		"token_id", tokenID.String(),
		"amount", value,
		"request_id", requestcontext.RequestID(ctx),
	)
	return paid, tokenID, nil
}

// Refund settles a PAID deposit by returning the full amount to the tenant.
// Landlord only. The property becomes available again; the deposit record
// and its receipt token survive as history.
func (s *Service) Refund(ctx context.Context, caller id.Account, depositID id.DepositID) (*Deposit, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.Refund",
		trace.WithAttributes(attribute.String("deposit.id", depositID.String())))
	defer span.End()

	var refunded *Deposit
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		deposit, prop, err := s.findDepositAndProperty(ctx, depositID)
		if err != nil {
			return err
		}
		if prop.Landlord != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "only the landlord may refund")
		}
		if err := deposit.CanRefund(); err != nil {
			return err
		}

		deposit.ApplyRefund(requestcontext.Now(ctx))
		if err := s.deposits.Update(ctx, deposit); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update deposit")
		}
		if err := s.releaseProperty(ctx, prop); err != nil {
			return err
		}
		if err := s.funds.Release(ctx, depositID, deposit.Tenant, deposit.Amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release funds")
		}
		if err := s.refreshReceipt(ctx, deposit, prop); err != nil {
			return err
		}

		s.emit(ctx,
			events.Event{
				Type:       events.TypeDepositRefunded,
				PropertyID: deposit.PropertyID,
				DepositID:  depositID,
				Account:    deposit.Tenant.String(),
				Amount:     deposit.Amount,
				Status:     string(StatusRefunded),
			},
			events.Event{
				Type:       events.TypePropertyStatusChanged,
				PropertyID: deposit.PropertyID,
				Status:     string(property.StatusNotRented),
			},
		)
		refunded = deposit
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DepositsSettled.WithLabelValues(string(StatusRefunded)).Inc()
	}
	s.updateHeldGauge(ctx)
	s.logger.InfoContext(ctx, "deposit refunded",
		"deposit_id", depositID.String(),
		"amount", refunded.Amount,
		"request_id", requestcontext.RequestID(ctx),
	)
	return refunded, nil
}

// Dispute freezes a PAID deposit pending resolution. Landlord only. Funds
// stay in custody; the property is marked disputed.
func (s *Service) Dispute(ctx context.Context, caller id.Account, depositID id.DepositID) (*Deposit, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.Dispute",
		trace.WithAttributes(attribute.String("deposit.id", depositID.String())))
	defer span.End()

	var disputed *Deposit
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		deposit, prop, err := s.findDepositAndProperty(ctx, depositID)
		if err != nil {
			return err
		}
		if prop.Landlord != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "only the landlord may open a dispute")
		}
		if err := deposit.CanDispute(); err != nil {
			return err
		}

		deposit.ApplyDispute()
		if err := s.deposits.Update(ctx, deposit); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update deposit")
		}
		prop.Status = property.StatusDisputed
		if err := s.properties.Update(ctx, prop); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update property")
		}
		if err := s.refreshReceipt(ctx, deposit, prop); err != nil {
			return err
		}

		s.emit(ctx,
			events.Event{
				Type:       events.TypeDepositStatusChanged,
				PropertyID: deposit.PropertyID,
				DepositID:  depositID,
				Account:    caller.String(),
				Status:     string(StatusDisputed),
			},
			events.Event{
				Type:       events.TypePropertyStatusChanged,
				PropertyID: deposit.PropertyID,
				Status:     string(property.StatusDisputed),
			},
		)
		disputed = deposit
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DepositsDisputed.Inc()
	}
	s.logger.InfoContext(ctx, "dispute opened",
		"deposit_id", depositID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return disputed, nil
}

// Resolve settles a DISPUTED deposit by splitting the held amount: the
// tenant receives refundAmount, the landlord the exact remainder. Landlord
// only. The final status follows from the split; the property becomes
// available again.
func (s *Service) Resolve(ctx context.Context, caller id.Account, depositID id.DepositID, refundAmount uint64) (*Deposit, error) {
	ctx, span := s.tracer.Start(ctx, "escrow.Resolve",
		trace.WithAttributes(attribute.String("deposit.id", depositID.String())))
	defer span.End()

	var settled *Deposit
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		deposit, prop, err := s.findDepositAndProperty(ctx, depositID)
		if err != nil {
			return err
		}
		if prop.Landlord != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "only the landlord may resolve a dispute")
		}
		if err := deposit.CanResolve(refundAmount); err != nil {
			return err
		}
		landlordShare := deposit.Amount - refundAmount

		deposit.ApplyResolution(refundAmount, requestcontext.Now(ctx))
		if err := s.deposits.Update(ctx, deposit); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update deposit")
		}
		if err := s.releaseProperty(ctx, prop); err != nil {
			return err
		}
		if err := s.funds.Release(ctx, depositID, deposit.Tenant, refundAmount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release tenant share")
		}
		if err := s.funds.Release(ctx, depositID, prop.Landlord, landlordShare); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release landlord share")
		}
		if err := s.refreshReceipt(ctx, deposit, prop); err != nil {
			return err
		}

		s.emit(ctx,
			events.Event{
				Type:       events.TypeDepositRefunded,
				PropertyID: deposit.PropertyID,
				DepositID:  depositID,
				Account:    deposit.Tenant.String(),
				Amount:     refundAmount,
				Status:     string(deposit.Status),
			},
			events.Event{
				Type:       events.TypePropertyStatusChanged,
				PropertyID: deposit.PropertyID,
				Status:     string(property.StatusNotRented),
			},
		)
		settled = deposit
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DepositsSettled.WithLabelValues(string(settled.Status)).Inc()
	}
	s.updateHeldGauge(ctx)
	s.logger.InfoContext(ctx, "dispute resolved",
		"deposit_id", depositID.String(),
		"refund_amount", refundAmount,
		"final_status", string(settled.Status),
		"request_id", requestcontext.RequestID(ctx),
	)
	return settled, nil
}

// ReceiveFunds credits an incoming transfer to the sender's custody balance.
// Unsolicited transfers are accepted and recorded, never bounced.
func (s *Service) ReceiveFunds(ctx context.Context, from id.Account, amount uint64) error {
	if amount == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.funds.Credit(ctx, from, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to credit funds")
		}
		s.emit(ctx, events.Event{
			Type:    events.TypeFundsReceived,
			Account: from.String(),
			Amount:  amount,
		})
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "funds received",
		"account", from.String(),
		"amount", amount,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Balance reports an account's free custody balance.
func (s *Service) Balance(ctx context.Context, account id.Account) (uint64, error) {
	return s.funds.Balance(ctx, account)
}

// Deposit returns a deposit by id.
func (s *Service) Deposit(ctx context.Context, depositID id.DepositID) (*Deposit, error) {
	return s.findDeposit(ctx, depositID)
}

// ExtendedInfo returns the deposit joined with its property and landlord,
// the view receipt metadata is rendered from.
func (s *Service) ExtendedInfo(ctx context.Context, depositID id.DepositID) (*receipt.DepositSnapshot, error) {
	deposit, prop, err := s.findDepositAndProperty(ctx, depositID)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(deposit, prop), nil
}

// DepositIDFromProperty returns the property's active deposit id.
func (s *Service) DepositIDFromProperty(ctx context.Context, propertyID id.PropertyID) (id.DepositID, error) {
	prop, err := s.findProperty(ctx, propertyID)
	if err != nil {
		return 0, err
	}
	if prop.CurrentDepositID.IsNil() {
		return 0, dErrors.Newf(dErrors.CodeNotFound, "no active deposit for property %s", propertyID)
	}
	return prop.CurrentDepositID, nil
}

// PropertyIDFromDeposit returns the property a deposit is bound to. Only the
// tenant of record may resolve it.
func (s *Service) PropertyIDFromDeposit(ctx context.Context, caller id.Account, depositID id.DepositID) (id.PropertyID, error) {
	deposit, err := s.findDeposit(ctx, depositID)
	if err != nil {
		return 0, err
	}
	if deposit.Tenant != caller {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "only the tenant may look up the property")
	}
	return deposit.PropertyID, nil
}

// TenantDeposits returns every deposit the tenant has paid, oldest first.
func (s *Service) TenantDeposits(ctx context.Context, tenant id.Account) ([]*Deposit, error) {
	deposits, err := s.deposits.ListByTenant(ctx, tenant)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list deposits")
	}
	return deposits, nil
}

// PropertyDeposits returns the property's full deposit history, oldest
// first. Landlord only.
func (s *Service) PropertyDeposits(ctx context.Context, caller id.Account, propertyID id.PropertyID) ([]*Deposit, error) {
	prop, err := s.findProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if prop.Landlord != caller {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the landlord may list deposits")
	}
	deposits, err := s.deposits.ListByProperty(ctx, propertyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list deposits")
	}
	return deposits, nil
}

// LandlordOf resolves the landlord controlling a deposit. Implements
// files.DepositDirectory; returns sentinel.ErrNotFound for unknown deposits.
func (s *Service) LandlordOf(ctx context.Context, depositID id.DepositID) (id.Account, error) {
	deposit, err := s.deposits.FindByID(ctx, depositID)
	if err != nil {
		return id.Account{}, err
	}
	prop, err := s.properties.FindByID(ctx, deposit.PropertyID)
	if err != nil {
		return id.Account{}, err
	}
	return prop.Landlord, nil
}

// releaseProperty returns a property to the open market after settlement.
func (s *Service) releaseProperty(ctx context.Context, prop *property.Property) error {
	prop.Status = property.StatusNotRented
	prop.CurrentDepositID = 0
	if err := s.properties.Update(ctx, prop); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update property")
	}
	return nil
}

// refreshReceipt re-renders the receipt metadata after a transition on a
// deposit that reached PAID. A missing token at this point breaks the
// one-token-per-paid-deposit invariant, so it surfaces as an internal error.
func (s *Service) refreshReceipt(ctx context.Context, deposit *Deposit, prop *property.Property) error {
	refreshed, err := s.receipts.Refresh(ctx, buildSnapshot(deposit, prop))
	if err != nil {
		return err
	}
	if !refreshed {
		return dErrors.Newf(dErrors.CodeInternal, "receipt missing for deposit %s", deposit.ID)
	}
	return nil
}

// emit stages events for the surrounding transaction and publishes them only
// after it commits; a rolled-back transition never reaches the sinks.
func (s *Service) emit(ctx context.Context, evts ...events.Event) {
	if s.events == nil {
		return
	}
	for _, event := range evts {
		tx.OnCommit(ctx, func(ctx context.Context) {
			if err := s.events.Emit(ctx, event); err != nil {
				s.logger.WarnContext(ctx, "failed to record event", "type", string(event.Type), "error", err)
				return
			}
			if s.metrics != nil {
				s.metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()
			}
		})
	}
}

func (s *Service) updateHeldGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	total, err := s.funds.TotalHeld(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to read total held funds", "error", err)
		return
	}
	s.metrics.CustodyHeld.Set(float64(total))
}

func (s *Service) findDeposit(ctx context.Context, depositID id.DepositID) (*Deposit, error) {
	deposit, err := s.deposits.FindByID(ctx, depositID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "deposit %s not found", depositID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deposit")
	}
	return deposit, nil
}

func (s *Service) findProperty(ctx context.Context, propertyID id.PropertyID) (*property.Property, error) {
	prop, err := s.properties.FindByID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "property %s not found", propertyID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load property")
	}
	return prop, nil
}

func (s *Service) findDepositAndProperty(ctx context.Context, depositID id.DepositID) (*Deposit, *property.Property, error) {
	deposit, err := s.findDeposit(ctx, depositID)
	if err != nil {
		return nil, nil, err
	}
	prop, err := s.findProperty(ctx, deposit.PropertyID)
	if err != nil {
		return nil, nil, err
	}
	return deposit, prop, nil
}
