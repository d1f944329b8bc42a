package reservation

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ErrUnboundedRange is returned when a stored timespan lacks a finite bound.
// Persisted reservations always have both bounds, so this indicates corrupt data.
var ErrUnboundedRange = errors.New("timespan must have finite lower and upper bounds")

// Timespan is the tstzrange representation used by the reservations table.
type Timespan = pgtype.Range[pgtype.Timestamptz]

// ToRange maps start and end to the half-open UTC range [start, end).
func ToRange(start, end time.Time) Timespan {
	return Timespan{
		Lower:     pgtype.Timestamptz{Time: start.UTC(), Valid: true},
		Upper:     pgtype.Timestamptz{Time: end.UTC(), Valid: true},
		LowerType: pgtype.Inclusive,
		UpperType: pgtype.Exclusive,
		Valid:     true,
	}
}

// FromRange is the inverse of ToRange. Bound inclusivity is not reported;
// both bounds are returned as UTC instants.
func FromRange(r Timespan) (time.Time, time.Time, error) {
	if !r.Valid || r.LowerType == pgtype.Empty {
		return time.Time{}, time.Time{}, ErrUnboundedRange
	}
	start, ok := finiteBound(r.Lower, r.LowerType)
	if !ok {
		return time.Time{}, time.Time{}, ErrUnboundedRange
	}
	end, ok := finiteBound(r.Upper, r.UpperType)
	if !ok {
		return time.Time{}, time.Time{}, ErrUnboundedRange
	}
	return start, end, nil
}

func finiteBound(ts pgtype.Timestamptz, bound pgtype.BoundType) (time.Time, bool) {
	if bound == pgtype.Unbounded || !ts.Valid || ts.InfinityModifier != pgtype.Finite {
		return time.Time{}, false
	}
	return ts.Time.UTC(), true
}
