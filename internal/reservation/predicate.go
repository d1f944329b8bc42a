package reservation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

const (
	DefaultPageSize = 10
	MinPageSize     = 10
	MaxPageSize     = 100

	tableName = "reservations"
)

// ErrNotNormalized guards the predicate builders against raw Query/Filter values.
var ErrNotNormalized = errors.New("query must be normalized before building sql")

var columns = []string{"id", "user_id", "resource_id", "timespan", "note", "status"}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Query selects reservations whose window lies inside [Start, End).
// A nil bound is unbounded. Results are ordered by window start.
type Query struct {
	UserID     string
	ResourceID string
	Status     Status
	Start      *time.Time
	End        *time.Time
	Desc       bool

	normalized bool
}

// Normalize validates q and returns a copy with defaults applied.
func (q Query) Normalize() (Query, error) {
	if !q.Status.Valid() {
		return Query{}, apperror.Wrap(ErrInvalidStatus, fmt.Errorf("status %d", int(q.Status)))
	}
	if err := validateRange(q.Start, q.End, false); err != nil {
		return Query{}, err
	}
	if q.Status == StatusUnknown {
		q.Status = StatusPending
	}
	q.normalized = true
	return q, nil
}

// ToSql renders the query predicate. It implements squirrel.Sqlizer.
func (q Query) ToSql() (string, []any, error) {
	if !q.normalized {
		return "", nil, ErrNotNormalized
	}
	direction := "ASC"
	if q.Desc {
		direction = "DESC"
	}

	builder := psql.Select(columns...).
		From(tableName).
		Where(squirrel.Eq{"status": q.Status.String()}).
		Where(squirrel.Expr("tstzrange(?, ?) @> timespan", rangeBound(q.Start, "-infinity"), rangeBound(q.End, "infinity")))
	builder = whereParticipants(builder, q.UserID, q.ResourceID)

	return builder.OrderBy("lower(timespan) " + direction).ToSql()
}

// Filter pages through reservations ordered by id, starting at Cursor (inclusive).
type Filter struct {
	UserID     string
	ResourceID string
	Status     Status
	Cursor     *int64
	Desc       bool
	PageSize   int64

	normalized bool
}

// NewFilter returns a filter with the default page size.
func NewFilter() Filter {
	return Filter{PageSize: DefaultPageSize}
}

// Normalize validates f and returns a copy with defaults applied.
func (f Filter) Normalize() (Filter, error) {
	if f.PageSize < MinPageSize || f.PageSize > MaxPageSize {
		return Filter{}, apperror.Wrap(ErrInvalidPageSize, fmt.Errorf("page size %d", f.PageSize))
	}
	if f.Cursor != nil && *f.Cursor < 0 {
		return Filter{}, apperror.Wrap(ErrInvalidCursor, fmt.Errorf("cursor %d", *f.Cursor))
	}
	if !f.Status.Valid() {
		return Filter{}, apperror.Wrap(ErrInvalidStatus, fmt.Errorf("status %d", int(f.Status)))
	}
	if f.Status == StatusUnknown {
		f.Status = StatusPending
	}
	f.normalized = true
	return f, nil
}

// CursorOrDefault returns the cursor, or the first id in iteration order when unset.
func (f Filter) CursorOrDefault() int64 {
	if f.Cursor != nil {
		return *f.Cursor
	}
	if f.Desc {
		return math.MaxInt64
	}
	return 0
}

// ToSql renders the filter predicate. It implements squirrel.Sqlizer.
func (f Filter) ToSql() (string, []any, error) {
	if !f.normalized {
		return "", nil, ErrNotNormalized
	}
	var cursorCond squirrel.Sqlizer = squirrel.GtOrEq{"id": f.CursorOrDefault()}
	direction := "ASC"
	if f.Desc {
		cursorCond = squirrel.LtOrEq{"id": f.CursorOrDefault()}
		direction = "DESC"
	}

	builder := psql.Select(columns...).
		From(tableName).
		Where(squirrel.Eq{"status": f.Status.String()}).
		Where(cursorCond)
	builder = whereParticipants(builder, f.UserID, f.ResourceID)

	return builder.
		OrderBy("id " + direction).
		Limit(uint64(f.PageSize)).
		ToSql()
}

// whereParticipants adds the user/resource equality clauses; empty means any.
func whereParticipants(b squirrel.SelectBuilder, userID, resourceID string) squirrel.SelectBuilder {
	if userID != "" {
		b = b.Where(squirrel.Eq{"user_id": userID})
	}
	if resourceID != "" {
		b = b.Where(squirrel.Eq{"resource_id": resourceID})
	}
	return b
}

func rangeBound(t *time.Time, infinity string) string {
	if t == nil || t.IsZero() {
		return infinity
	}
	return t.UTC().Format(time.RFC3339Nano)
}
