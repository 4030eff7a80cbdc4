package property

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"garant/internal/events"
	"garant/internal/platform/metrics"
	id "garant/pkg/domain"
	dErrors "garant/pkg/domain-errors"
	"garant/pkg/platform/sentinel"
	"garant/pkg/platform/tx"
	"garant/pkg/requestcontext"
)

// Service orchestrates the property registry. Deposit-driven status changes
// do not pass through here; the escrow engine writes them directly inside its
// own transactional boundary.
type Service struct {
	properties Store
	history    DepositHistory
	events     events.Recorder
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tx         tx.Runner
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
	return func(s *Service) { s.tx = r }
}

func NewService(store Store, history DepositHistory, opts ...Option) *Service {
	s := &Service{
		properties: store,
		history:    history,
		logger:     slog.Default(),
		tx:         tx.NewMutexRunner(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a property for the caller. Any authenticated principal may
// become a landlord.
func (s *Service) Create(ctx context.Context, caller id.Account, name, location string) (*Property, error) {
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	name = strings.TrimSpace(name)
	location = strings.TrimSpace(location)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "property name is required")
	}
	if location == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "property location is required")
	}

	p := &Property{
		Landlord:  caller,
		Name:      name,
		Location:  location,
		Status:    StatusNotRented,
		CreatedAt: requestcontext.Now(ctx),
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.properties.Create(txCtx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create property")
		}
		s.emit(txCtx, events.Event{
			Type:       events.TypePropertyCreated,
			PropertyID: p.ID,
			Account:    caller.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PropertiesCreated.Inc()
	}
	s.logger.InfoContext(ctx, "property created",
		"property_id", p.ID.String(),
		"landlord", caller.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return p, nil
}

// Get returns a property by id.
func (s *Service) Get(ctx context.Context, propertyID id.PropertyID) (*Property, error) {
	p, err := s.properties.FindByID(ctx, propertyID)
	if err != nil {
		return nil, translateStoreErr(err, propertyID)
	}
	return p, nil
}

// Delete removes a property. Only allowed for the landlord, only while no
// deposit is active, and only when no deposit ever existed for the property:
// deposits are retained permanently, and their history pins the property.
func (s *Service) Delete(ctx context.Context, caller id.Account, propertyID id.PropertyID) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.properties.FindByID(txCtx, propertyID)
		if err != nil {
			return translateStoreErr(err, propertyID)
		}
		if p.Landlord != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "only the landlord may delete a property")
		}
		if !p.CurrentDepositID.IsNil() {
			return dErrors.New(dErrors.CodeInvalidState, "active deposit")
		}
		has, err := s.history.HasForProperty(txCtx, propertyID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check deposit history")
		}
		if has {
			return dErrors.New(dErrors.CodeInvalidState, "has history")
		}
		if err := s.properties.Delete(txCtx, propertyID); err != nil {
			return translateStoreErr(err, propertyID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.PropertiesDeleted.Inc()
	}
	s.logger.InfoContext(ctx, "property deleted",
		"property_id", propertyID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// LandlordProperties lists a landlord's property ids.
func (s *Service) LandlordProperties(ctx context.Context, landlord id.Account) ([]id.PropertyID, error) {
	return s.properties.ListByLandlord(ctx, landlord)
}

// emit publishes after the surrounding transaction commits; a rolled-back
// transition never reaches the sinks.
func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
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

func translateStoreErr(err error, propertyID id.PropertyID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "property %s not found", propertyID)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "property store failure")
}
