package http

import (
	"time"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/response"
	"github.com/nekogravitycat/reservation-backend/internal/reservation"
)

// ReservationBody is the wire form of a reservation submitted by a client.
type ReservationBody struct {
	UserID     string             `json:"user_id"`
	ResourceID string             `json:"resource_id"`
	Start      *time.Time         `json:"start"`
	End        *time.Time         `json:"end"`
	Note       string             `json:"note"`
	Status     reservation.Status `json:"status"`
}

// ToReservation converts the body into an unsaved reservation. Missing bounds
// stay zero so validation reports them.
func (b *ReservationBody) ToReservation() *reservation.Reservation {
	var start, end time.Time
	if b.Start != nil {
		start = *b.Start
	}
	if b.End != nil {
		end = *b.End
	}
	return reservation.New(b.UserID, b.ResourceID, start, end, b.Note, b.Status)
}

type ReserveRequest struct {
	Reservation *ReservationBody `json:"reservation"`
}

type UpdateReservationRequest struct {
	Note *string `json:"note" binding:"required"`
}

// QueryBody selects reservations fully contained in [start, end).
type QueryBody struct {
	UserID     string             `json:"user_id"`
	ResourceID string             `json:"resource_id"`
	Status     reservation.Status `json:"status"`
	Start      *time.Time         `json:"start"`
	End        *time.Time         `json:"end"`
	Desc       bool               `json:"desc"`
}

func (b *QueryBody) ToQuery() reservation.Query {
	return reservation.Query{
		UserID:     b.UserID,
		ResourceID: b.ResourceID,
		Status:     b.Status,
		Start:      b.Start,
		End:        b.End,
		Desc:       b.Desc,
	}
}

type QueryRequest struct {
	Query *QueryBody `json:"query"`
}

// FilterBody pages through reservations by id. PageSize defaults to 10.
type FilterBody struct {
	UserID     string             `json:"user_id"`
	ResourceID string             `json:"resource_id"`
	Status     reservation.Status `json:"status"`
	Cursor     *int64             `json:"cursor"`
	Desc       bool               `json:"desc"`
	PageSize   *int64             `json:"page_size"`
}

func (b *FilterBody) ToFilter() reservation.Filter {
	f := reservation.NewFilter()
	f.UserID = b.UserID
	f.ResourceID = b.ResourceID
	f.Status = b.Status
	f.Cursor = b.Cursor
	f.Desc = b.Desc
	if b.PageSize != nil {
		f.PageSize = *b.PageSize
	}
	return f
}

type FilterRequest struct {
	Filter *FilterBody `json:"filter"`
}

type ReservationResponse struct {
	ID         int64              `json:"id"`
	UserID     string             `json:"user_id"`
	ResourceID string             `json:"resource_id"`
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
	Note       string             `json:"note"`
	Status     reservation.Status `json:"status"`
}

func NewReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:         r.ID,
		UserID:     r.UserID,
		ResourceID: r.ResourceID,
		Start:      r.Start,
		End:        r.End,
		Note:       r.Note,
		Status:     r.Status,
	}
}

// NewFilterResponse wraps a page of reservations with the cursor of the next page.
// A short page means the listing is exhausted.
func NewFilterResponse(items []*reservation.Reservation, f reservation.Filter) response.CursorPageResponse[ReservationResponse] {
	out := make([]ReservationResponse, len(items))
	for i, r := range items {
		out[i] = NewReservationResponse(r)
	}

	var next *int64
	if n := len(items); n > 0 && int64(n) == f.PageSize {
		last := items[n-1].ID
		switch {
		case !f.Desc:
			v := last + 1
			next = &v
		case last > 1:
			v := last - 1
			next = &v
		}
	}
	return response.NewCursorPageResponse(out, f.PageSize, next)
}

type WindowResponse struct {
	ResourceID string    `json:"resource_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

type ConflictDetail struct {
	New *WindowResponse `json:"new,omitempty"`
	Old *WindowResponse `json:"old,omitempty"`
	Raw string          `json:"raw,omitempty"`
}

type ConflictResponse struct {
	response.ErrorResponse
	Conflict ConflictDetail `json:"conflict"`
}

func NewConflictResponse(err *reservation.ConflictError) ConflictResponse {
	resp := ConflictResponse{
		ErrorResponse: response.NewErrorResponse(reservation.ErrConflict),
	}
	switch info := err.Info.(type) {
	case reservation.ParsedConflict:
		resp.Conflict.New = newWindowResponse(info.New)
		resp.Conflict.Old = newWindowResponse(info.Old)
	case reservation.UnparsedConflict:
		resp.Conflict.Raw = info.Raw
	}
	return resp
}

func newWindowResponse(w reservation.Window) *WindowResponse {
	return &WindowResponse{ResourceID: w.ResourceID, Start: w.Start, End: w.End}
}
