package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/request"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/response"
	"github.com/nekogravitycat/reservation-backend/internal/reservation"
)

const (
	eventReservation = "reservation"
	eventError       = "error"

	// Same value gin's SSE renderer writes, so an empty stream is labelled alike.
	eventStreamContentType = "text/event-stream;charset=utf-8"
)

type Handler struct {
	service reservation.Service
}

func NewHandler(service reservation.Service) *Handler {
	return &Handler{service: service}
}

// bindJSON binds the request body. A bad status value is reported with its own
// code; any other decoding failure is a generic bad request.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		if errors.Is(err, reservation.ErrInvalidStatus) {
			response.Error(c, err)
		} else {
			response.BadRequest(c, err)
		}
		return false
	}
	return true
}

func bindID(c *gin.Context) (int64, bool) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, err)
		return 0, false
	}
	return req.ID, true
}

// writeError renders service errors. Conflicts carry the overlapping windows.
func writeError(c *gin.Context, err error) {
	var conflict *reservation.ConflictError
	if errors.As(err, &conflict) {
		_ = c.Error(err)
		c.JSON(http.StatusConflict, NewConflictResponse(conflict))
		return
	}
	response.Error(c, err)
}

func errorEvent(err error) any {
	var conflict *reservation.ConflictError
	if errors.As(err, &conflict) {
		return NewConflictResponse(conflict)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return response.NewErrorResponse(appErr)
	}
	return response.ErrorResponse{Error: "internal server error", Code: "internal"}
}

func (h *Handler) Reserve(c *gin.Context) {
	var req ReserveRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Reservation == nil {
		response.Error(c, reservation.ErrMissingPayload)
		return
	}

	r, err := h.service.Reserve(c.Request.Context(), req.Reservation.ToReservation())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewReservationResponse(r))
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	r, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) Confirm(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	r, err := h.service.Confirm(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	var req UpdateReservationRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := h.service.Update(c.Request.Context(), id, *req.Note)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

// Delete cancels a reservation and echoes the removed record.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}

	r, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

// Query streams matching reservations as server-sent events. Each row is a
// "reservation" event and a row-level failure is an "error" event. The stream
// stops producing as soon as the client goes away.
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Query == nil {
		response.Error(c, reservation.ErrMissingPayload)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	results, err := h.service.Query(ctx, req.Query.ToQuery())
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", eventStreamContentType)
	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		res, ok := <-results
		if !ok {
			return false
		}
		if res.Err != nil {
			_ = c.Error(res.Err)
			c.SSEvent(eventError, errorEvent(res.Err))
			return true
		}
		c.SSEvent(eventReservation, NewReservationResponse(res.Reservation))
		return true
	})
}

func (h *Handler) Filter(c *gin.Context) {
	var req FilterRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Filter == nil {
		response.Error(c, reservation.ErrMissingPayload)
		return
	}

	f := req.Filter.ToFilter()
	items, err := h.service.Filter(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewFilterResponse(items, f))
}
