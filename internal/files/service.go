package files

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
	"garant/pkg/requestcontext"
)

// Service gates writes to the file registry. Current policy authorizes only
// the landlord to attach documents, including the exit inventory.
type Service struct {
	store     Store
	directory DepositDirectory
	events    events.Recorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
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

func NewService(store Store, directory DepositDirectory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends a document record to a deposit's file list.
func (s *Service) Add(ctx context.Context, caller id.Account, depositID id.DepositID, fileType Type, contentID, name string) (*File, error) {
	if !fileType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown file type %q", fileType)
	}
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "content id is required")
	}

	landlord, err := s.directory.LandlordOf(ctx, depositID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "deposit %s not found", depositID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve deposit")
	}
	if landlord != caller {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the landlord may attach files")
	}

	file := &File{
		DepositID:  depositID,
		Type:       fileType,
		ContentID:  contentID,
		Uploader:   caller,
		UploadedAt: requestcontext.Now(ctx),
		Name:       name,
	}
	if err := s.store.Append(ctx, file); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append file")
	}

	if s.events != nil {
		if err := s.events.Emit(ctx, events.Event{
			Type:      events.TypeFileAdded,
			DepositID: depositID,
			Account:   caller.String(),
			Status:    string(fileType),
		}); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record event")
		}
	}
	if s.metrics != nil {
		s.metrics.FilesAdded.Inc()
	}
	s.logger.InfoContext(ctx, "file added",
		"deposit_id", depositID.String(),
		"file_type", string(fileType),
		"request_id", requestcontext.RequestID(ctx),
	)
	return file, nil
}

// List returns all records attached to a deposit, in insertion order.
func (s *Service) List(ctx context.Context, depositID id.DepositID) ([]*File, error) {
	if _, err := s.directory.LandlordOf(ctx, depositID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "deposit %s not found", depositID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve deposit")
	}
	return s.store.ListByDeposit(ctx, depositID)
}
