package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

// Repository is the durable reservation store. Every error it returns is already
// classified as a ConflictError, ErrNotFound or ErrDatabase.
type Repository interface {
	Reserve(ctx context.Context, r *Reservation) (*Reservation, error)
	Confirm(ctx context.Context, id int64) (*Reservation, error)
	UpdateNote(ctx context.Context, id int64, note string) (*Reservation, error)
	Delete(ctx context.Context, id int64) (*Reservation, error)
	Get(ctx context.Context, id int64) (*Reservation, error)

	// Query streams the matching rows. q must be normalized.
	Query(ctx context.Context, q Query) <-chan QueryResult
	// Filter returns one page of rows. f must be normalized.
	Filter(ctx context.Context, f Filter) ([]*Reservation, error)
}

type pgxRepository struct {
	pool       *pgxpool.Pool
	bufferSize int
}

// NewPgxRepository creates a store on top of pool. bufferSize is the capacity of
// the channel returned by Query.
func NewPgxRepository(pool *pgxpool.Pool, bufferSize int) Repository {
	return &pgxRepository{pool: pool, bufferSize: bufferSize}
}

const returning = "RETURNING id, user_id, resource_id, timespan, note, status"

func (r *pgxRepository) Reserve(ctx context.Context, res *Reservation) (*Reservation, error) {
	status := res.Status
	if status == StatusUnknown {
		status = StatusPending
	}

	query, args, err := psql.Insert(tableName).
		Columns("user_id", "resource_id", "timespan", "note", "status").
		Values(res.UserID, res.ResourceID, ToRange(res.Start, res.End), res.Note, status.String()).
		Suffix(returning).
		ToSql()
	if err != nil {
		return nil, apperror.Wrap(ErrDatabase, fmt.Errorf("build reserve query failed: %w", err))
	}

	saved, err := scanReservation(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, classifyError(err)
	}
	return saved, nil
}

func (r *pgxRepository) Confirm(ctx context.Context, id int64) (*Reservation, error) {
	query, args, err := psql.Update(tableName).
		Set("status", StatusConfirmed.String()).
		Where(squirrel.Eq{"id": id, "status": StatusPending.String()}).
		Suffix(returning).
		ToSql()
	if err != nil {
		return nil, apperror.Wrap(ErrDatabase, fmt.Errorf("build confirm query failed: %w", err))
	}
	return r.queryOne(ctx, query, args)
}

func (r *pgxRepository) UpdateNote(ctx context.Context, id int64, note string) (*Reservation, error) {
	query, args, err := psql.Update(tableName).
		Set("note", note).
		Where(squirrel.Eq{"id": id}).
		Suffix(returning).
		ToSql()
	if err != nil {
		return nil, apperror.Wrap(ErrDatabase, fmt.Errorf("build update note query failed: %w", err))
	}
	return r.queryOne(ctx, query, args)
}

func (r *pgxRepository) Delete(ctx context.Context, id int64) (*Reservation, error) {
	query, args, err := psql.Delete(tableName).
		Where(squirrel.Eq{"id": id}).
		Suffix(returning).
		ToSql()
	if err != nil {
		return nil, apperror.Wrap(ErrDatabase, fmt.Errorf("build delete query failed: %w", err))
	}
	return r.queryOne(ctx, query, args)
}

func (r *pgxRepository) Get(ctx context.Context, id int64) (*Reservation, error) {
	query, args, err := psql.Select(columns...).
		From(tableName).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, apperror.Wrap(ErrDatabase, fmt.Errorf("build get query failed: %w", err))
	}
	return r.queryOne(ctx, query, args)
}

func (r *pgxRepository) Query(ctx context.Context, q Query) <-chan QueryResult {
	return startStream(ctx, r.bufferSize, func(ctx context.Context) (pgx.Rows, error) {
		query, args, err := q.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build query failed: %w", err)
		}
		return r.pool.Query(ctx, query, args...)
	})
}

func (r *pgxRepository) Filter(ctx context.Context, f Filter) ([]*Reservation, error) {
	query, args, err := f.ToSql()
	if err != nil {
		return nil, apperror.Wrap(ErrDatabase, fmt.Errorf("build filter query failed: %w", err))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyError(err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Reservation, error) {
		return scanReservation(row)
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return items, nil
}

func (r *pgxRepository) queryOne(ctx context.Context, query string, args []any) (*Reservation, error) {
	res, err := scanReservation(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, classifyError(err)
	}
	return res, nil
}

// scanReservation decodes a row selected with the reservation column list.
func scanReservation(row pgx.Row) (*Reservation, error) {
	var (
		res      Reservation
		timespan Timespan
		status   string
	)
	if err := row.Scan(&res.ID, &res.UserID, &res.ResourceID, &timespan, &res.Note, &status); err != nil {
		return nil, err
	}

	start, end, err := FromRange(timespan)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", res.ID, err)
	}
	res.Start, res.End = start, end

	res.Status, err = ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", res.ID, err)
	}
	return &res, nil
}

// classifyError maps a database error onto the store's error kinds.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ExclusionViolation, pgerrcode.UniqueViolation:
			detail := pgErr.Detail
			if detail == "" {
				detail = pgErr.Message
			}
			return &ConflictError{Info: ParseConflict(detail)}
		}
	}

	return apperror.Wrap(ErrDatabase, err)
}
