package reservation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/metrics"
)

// Service is the call surface of the reservation store. Input is validated here,
// before any statement reaches the database.
type Service interface {
	// Reserve stores a new reservation. The status defaults to pending.
	Reserve(ctx context.Context, r *Reservation) (*Reservation, error)
	// Confirm moves a pending reservation to confirmed.
	Confirm(ctx context.Context, id int64) (*Reservation, error)
	// Update replaces the note of a reservation.
	Update(ctx context.Context, id int64, note string) (*Reservation, error)
	// Delete cancels a reservation and returns the removed record.
	Delete(ctx context.Context, id int64) (*Reservation, error)
	Get(ctx context.Context, id int64) (*Reservation, error)
	// Query streams reservations contained in the query range, ordered by start.
	// Cancel ctx to stop the stream early.
	Query(ctx context.Context, q Query) (<-chan QueryResult, error)
	// Filter returns one page of reservations ordered by id.
	Filter(ctx context.Context, f Filter) ([]*Reservation, error)
}

type service struct {
	repo    Repository
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewService(repo Repository, log *zap.Logger, m *metrics.Metrics) Service {
	return &service{
		repo:    repo,
		log:     log.Named("reservation"),
		metrics: m,
	}
}

func (s *service) Reserve(ctx context.Context, r *Reservation) (res *Reservation, err error) {
	defer s.observe("reserve", time.Now(), &err)

	if r == nil {
		return nil, ErrMissingPayload
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	res, err = s.repo.Reserve(ctx, r)
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			s.log.Info("reservation conflict",
				zap.String("resource_id", r.ResourceID),
				zap.String("user_id", r.UserID),
				zap.Error(err))
		}
		return nil, err
	}

	s.log.Debug("reservation created",
		zap.Int64("id", res.ID),
		zap.String("resource_id", res.ResourceID),
		zap.Stringer("status", res.Status))
	return res, nil
}

func (s *service) Confirm(ctx context.Context, id int64) (res *Reservation, err error) {
	defer s.observe("confirm", time.Now(), &err)

	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return s.repo.Confirm(ctx, id)
}

func (s *service) Update(ctx context.Context, id int64, note string) (res *Reservation, err error) {
	defer s.observe("update", time.Now(), &err)

	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return s.repo.UpdateNote(ctx, id, note)
}

func (s *service) Delete(ctx context.Context, id int64) (res *Reservation, err error) {
	defer s.observe("delete", time.Now(), &err)

	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return s.repo.Delete(ctx, id)
}

func (s *service) Get(ctx context.Context, id int64) (res *Reservation, err error) {
	defer s.observe("get", time.Now(), &err)

	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *service) Query(ctx context.Context, q Query) (out <-chan QueryResult, err error) {
	defer s.observe("query", time.Now(), &err)

	nq, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	return s.repo.Query(ctx, nq), nil
}

func (s *service) Filter(ctx context.Context, f Filter) (items []*Reservation, err error) {
	defer s.observe("filter", time.Now(), &err)

	nf, err := f.Normalize()
	if err != nil {
		return nil, err
	}
	return s.repo.Filter(ctx, nf)
}

func (s *service) observe(op string, start time.Time, errp *error) {
	err := *errp
	outcome := outcomeOf(err)
	if s.metrics != nil {
		s.metrics.Operations.WithLabelValues(op, outcome).Inc()
		s.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	if outcome == "error" {
		s.log.Error("reservation operation failed", zap.String("operation", op), zap.Error(err))
	}
}

func outcomeOf(err error) string {
	var appErr *apperror.AppError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDatabase):
		return "error"
	case errors.As(err, &appErr) && appErr.Code < 500:
		return "invalid"
	default:
		return "error"
	}
}
