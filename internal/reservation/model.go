package reservation

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

var (
	ErrInvalidUserID        = apperror.New(http.StatusBadRequest, "invalid_user_id", "user id must not be empty")
	ErrInvalidResourceID    = apperror.New(http.StatusBadRequest, "invalid_resource_id", "resource id must not be empty")
	ErrInvalidTime          = apperror.New(http.StatusBadRequest, "invalid_time", "start and end must be set and start must be before end")
	ErrInvalidPageSize      = apperror.New(http.StatusBadRequest, "invalid_page_size", "page size must be between 10 and 100")
	ErrInvalidCursor        = apperror.New(http.StatusBadRequest, "invalid_cursor", "cursor must not be negative")
	ErrInvalidStatus        = apperror.New(http.StatusBadRequest, "invalid_status", "invalid reservation status")
	ErrInvalidReservationID = apperror.New(http.StatusBadRequest, "invalid_reservation_id", "reservation id must be positive")
	ErrMissingPayload       = apperror.New(http.StatusBadRequest, "missing_payload", "request payload is missing")
	ErrConflict             = apperror.New(http.StatusConflict, "conflict_reservation", "reservation conflicts with an existing reservation")
	ErrNotFound             = apperror.New(http.StatusNotFound, "not_found", "reservation not found")
	ErrDatabase             = apperror.New(http.StatusInternalServerError, "database_error", "database error")
)

// Status is the lifecycle state of a reservation.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusConfirmed
	StatusBlocked
)

// String returns the stored representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusBlocked:
		return "blocked"
	case StatusUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	return s >= StatusUnknown && s <= StatusBlocked
}

// ParseStatus maps a stored or wire status name back to a Status.
// The empty string is treated as StatusUnknown.
func ParseStatus(v string) (Status, error) {
	switch v {
	case "", "unknown":
		return StatusUnknown, nil
	case "pending":
		return StatusPending, nil
	case "confirmed":
		return StatusConfirmed, nil
	case "blocked":
		return StatusBlocked, nil
	default:
		return StatusUnknown, apperror.Wrap(ErrInvalidStatus, fmt.Errorf("status %q", v))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, apperror.Wrap(ErrInvalidStatus, fmt.Errorf("status %d", int(s)))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Reservation is a time-bounded exclusive hold of a resource by a user.
type Reservation struct {
	ID         int64
	UserID     string
	ResourceID string
	Start      time.Time
	End        time.Time
	Note       string
	Status     Status
}

// New builds an unsaved reservation. Both bounds are converted to UTC.
func New(userID, resourceID string, start, end time.Time, note string, status Status) *Reservation {
	return &Reservation{
		UserID:     userID,
		ResourceID: resourceID,
		Start:      start.UTC(),
		End:        end.UTC(),
		Note:       note,
		Status:     status,
	}
}

// Validate checks the shape of a reservation before it is created.
func (r *Reservation) Validate() error {
	if r.UserID == "" {
		return ErrInvalidUserID
	}
	if r.ResourceID == "" {
		return ErrInvalidResourceID
	}
	if err := validateRange(&r.Start, &r.End, true); err != nil {
		return err
	}
	if !r.Status.Valid() {
		return apperror.Wrap(ErrInvalidStatus, fmt.Errorf("status %d", int(r.Status)))
	}
	return nil
}

// Window returns the conflict-domain view of the reservation.
func (r *Reservation) Window() Window {
	return Window{ResourceID: r.ResourceID, Start: r.Start, End: r.End}
}

// ValidateID rejects ids that can never have been assigned by the store.
func ValidateID(id int64) error {
	if id <= 0 {
		return apperror.Wrap(ErrInvalidReservationID, fmt.Errorf("id %d", id))
	}
	return nil
}

// validateRange checks start < end. When required is set, both bounds must be present
// (non-nil and non-zero); otherwise only present bounds are compared.
func validateRange(start, end *time.Time, required bool) error {
	hasStart := start != nil && !start.IsZero()
	hasEnd := end != nil && !end.IsZero()
	if required && (!hasStart || !hasEnd) {
		return ErrInvalidTime
	}
	if hasStart && hasEnd && !start.Before(*end) {
		return apperror.Wrap(ErrInvalidTime, fmt.Errorf("start %s is not before end %s",
			start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano)))
	}
	return nil
}
