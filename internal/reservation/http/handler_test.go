package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/response"
	"github.com/nekogravitycat/reservation-backend/internal/reservation"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) one(args mock.Arguments) (*reservation.Reservation, error) {
	r, _ := args.Get(0).(*reservation.Reservation)
	return r, args.Error(1)
}

func (m *mockService) Reserve(ctx context.Context, r *reservation.Reservation) (*reservation.Reservation, error) {
	return m.one(m.Called(ctx, r))
}

func (m *mockService) Confirm(ctx context.Context, id int64) (*reservation.Reservation, error) {
	return m.one(m.Called(ctx, id))
}

func (m *mockService) Update(ctx context.Context, id int64, note string) (*reservation.Reservation, error) {
	return m.one(m.Called(ctx, id, note))
}

func (m *mockService) Delete(ctx context.Context, id int64) (*reservation.Reservation, error) {
	return m.one(m.Called(ctx, id))
}

func (m *mockService) Get(ctx context.Context, id int64) (*reservation.Reservation, error) {
	return m.one(m.Called(ctx, id))
}

func (m *mockService) Query(ctx context.Context, q reservation.Query) (<-chan reservation.QueryResult, error) {
	args := m.Called(ctx, q)
	ch, _ := args.Get(0).(<-chan reservation.QueryResult)
	return ch, args.Error(1)
}

func (m *mockService) Filter(ctx context.Context, f reservation.Filter) ([]*reservation.Reservation, error) {
	args := m.Called(ctx, f)
	items, _ := args.Get(0).([]*reservation.Reservation)
	return items, args.Error(1)
}

// streamRecorder adds the CloseNotify support gin's Stream expects.
type streamRecorder struct {
	*httptest.ResponseRecorder
}

func (streamRecorder) CloseNotify() <-chan bool { return make(chan bool) }

func newTestRouter(svc reservation.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/v1"), NewHandler(svc))
	return r
}

func executeRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reqBody []byte
	switch b := body.(type) {
	case nil:
	case string:
		reqBody = []byte(b)
	default:
		reqBody, _ = json.Marshal(b)
	}

	req, _ := http.NewRequest(method, path, bytes.NewBuffer(reqBody))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(streamRecorder{w}, req)
	return w
}

var (
	testStart = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	testEnd   = testStart.Add(time.Hour)
)

func stored(id int64) *reservation.Reservation {
	r := reservation.New("alice", "room-1", testStart, testEnd, "sync", reservation.StatusPending)
	r.ID = id
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorResponse {
	t.Helper()
	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestReserveHandler(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		svc := &mockService{}
		router := newTestRouter(svc)
		svc.On("Reserve", mock.Anything, mock.MatchedBy(func(r *reservation.Reservation) bool {
			return r.UserID == "alice" && r.Start.Equal(testStart) && r.Status == reservation.StatusUnknown
		})).Return(stored(1), nil).Once()

		w := executeRequest(router, "POST", "/v1/reservations", ReserveRequest{Reservation: &ReservationBody{
			UserID: "alice", ResourceID: "room-1", Start: &testStart, End: &testEnd, Note: "sync",
		}})

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var resp ReservationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.ID)
		assert.Equal(t, reservation.StatusPending, resp.Status)
		assert.True(t, resp.Start.Equal(testStart))
		svc.AssertExpectations(t)
	})

	t.Run("Missing Payload", func(t *testing.T) {
		svc := &mockService{}
		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "missing_payload", decodeError(t, w).Code)
		svc.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
	})

	t.Run("Unknown Status Name", func(t *testing.T) {
		svc := &mockService{}
		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations",
			`{"reservation":{"user_id":"alice","resource_id":"room-1","status":"cancelled"}}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_status", decodeError(t, w).Code)
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		w := executeRequest(newTestRouter(&mockService{}), "POST", "/v1/reservations", `{"reservation":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_request", decodeError(t, w).Code)
	})

	t.Run("Validation Error From Service", func(t *testing.T) {
		svc := &mockService{}
		svc.On("Reserve", mock.Anything, mock.Anything).Return(nil, reservation.ErrInvalidTime).Once()

		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations", `{"reservation":{"user_id":"alice","resource_id":"room-1"}}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_time", decodeError(t, w).Code)
	})

	t.Run("Conflict Carries Windows", func(t *testing.T) {
		svc := &mockService{}
		conflict := &reservation.ConflictError{Info: reservation.ParsedConflict{
			New: reservation.Window{ResourceID: "room-1", Start: testStart, End: testEnd},
			Old: reservation.Window{ResourceID: "room-1", Start: testStart.Add(-30 * time.Minute), End: testStart.Add(30 * time.Minute)},
		}}
		svc.On("Reserve", mock.Anything, mock.Anything).Return(nil, conflict).Once()

		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations", ReserveRequest{Reservation: &ReservationBody{
			UserID: "bob", ResourceID: "room-1", Start: &testStart, End: &testEnd,
		}})

		require.Equal(t, http.StatusConflict, w.Code)
		var resp ConflictResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "conflict_reservation", resp.Code)
		require.NotNil(t, resp.Conflict.Old)
		assert.True(t, resp.Conflict.Old.Start.Equal(testStart.Add(-30*time.Minute)))
		assert.Empty(t, resp.Conflict.Raw)
	})

	t.Run("Unparsed Conflict Carries Raw Detail", func(t *testing.T) {
		svc := &mockService{}
		svc.On("Reserve", mock.Anything, mock.Anything).
			Return(nil, &reservation.ConflictError{Info: reservation.UnparsedConflict{Raw: "detail"}}).Once()

		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations", `{"reservation":{}}`)

		require.Equal(t, http.StatusConflict, w.Code)
		var resp ConflictResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "detail", resp.Conflict.Raw)
		assert.Nil(t, resp.Conflict.New)
	})
}

func TestByIDHandlers(t *testing.T) {
	t.Run("Get", func(t *testing.T) {
		svc := &mockService{}
		svc.On("Get", mock.Anything, int64(5)).Return(stored(5), nil).Once()

		w := executeRequest(newTestRouter(svc), "GET", "/v1/reservations/5", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"pending"`)
	})

	t.Run("Non Numeric ID", func(t *testing.T) {
		svc := &mockService{}
		w := executeRequest(newTestRouter(svc), "GET", "/v1/reservations/abc", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("Not Found", func(t *testing.T) {
		svc := &mockService{}
		svc.On("Confirm", mock.Anything, int64(9)).Return(nil, reservation.ErrNotFound).Once()

		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations/9/confirm", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decodeError(t, w).Code)
	})

	t.Run("Update Note", func(t *testing.T) {
		svc := &mockService{}
		updated := stored(3)
		updated.Note = ""
		svc.On("Update", mock.Anything, int64(3), "").Return(updated, nil).Once()

		w := executeRequest(newTestRouter(svc), "PATCH", "/v1/reservations/3", `{"note":""}`)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("Update Without Note", func(t *testing.T) {
		svc := &mockService{}
		w := executeRequest(newTestRouter(svc), "PATCH", "/v1/reservations/3", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Delete Echoes Record", func(t *testing.T) {
		svc := &mockService{}
		svc.On("Delete", mock.Anything, int64(4)).Return(stored(4), nil).Once()

		w := executeRequest(newTestRouter(svc), "DELETE", "/v1/reservations/4", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp ReservationResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(4), resp.ID)
	})
}

func TestFilterHandler(t *testing.T) {
	page := func(from int64, n int, step int64) []*reservation.Reservation {
		out := make([]*reservation.Reservation, n)
		for i := range out {
			out[i] = stored(from + int64(i)*step)
		}
		return out
	}

	t.Run("Full Page Has Next Cursor", func(t *testing.T) {
		svc := &mockService{}
		svc.On("Filter", mock.Anything, mock.MatchedBy(func(f reservation.Filter) bool {
			return f.PageSize == reservation.DefaultPageSize && f.UserID == "alice"
		})).Return(page(1, 10, 1), nil).Once()

		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations/filter", `{"filter":{"user_id":"alice"}}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp response.CursorPageResponse[ReservationResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Items, 10)
		require.NotNil(t, resp.Pager.Next)
		assert.Equal(t, int64(11), *resp.Pager.Next)
	})

	t.Run("Descending Next Cursor", func(t *testing.T) {
		svc := &mockService{}
		svc.On("Filter", mock.Anything, mock.Anything).Return(page(30, 10, -1), nil).Once()

		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations/filter", `{"filter":{"desc":true}}`)

		var resp response.CursorPageResponse[ReservationResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Pager.Next)
		assert.Equal(t, int64(20), *resp.Pager.Next)
	})

	t.Run("Short Page Ends Listing", func(t *testing.T) {
		svc := &mockService{}
		svc.On("Filter", mock.Anything, mock.Anything).Return(page(1, 3, 1), nil).Once()

		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations/filter", `{"filter":{}}`)

		var resp response.CursorPageResponse[ReservationResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Nil(t, resp.Pager.Next)
		assert.Equal(t, int64(10), resp.Pager.PageSize)
	})

	t.Run("Empty Page Is Empty List", func(t *testing.T) {
		svc := &mockService{}
		svc.On("Filter", mock.Anything, mock.Anything).Return(nil, nil).Once()

		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations/filter", `{"filter":{}}`)

		assert.Contains(t, w.Body.String(), `"items":[]`)
	})

	t.Run("Invalid Page Size", func(t *testing.T) {
		svc := &mockService{}
		svc.On("Filter", mock.Anything, mock.Anything).Return(nil, reservation.ErrInvalidPageSize).Once()

		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations/filter", `{"filter":{"page_size":500}}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_page_size", decodeError(t, w).Code)
	})

	t.Run("Missing Payload", func(t *testing.T) {
		w := executeRequest(newTestRouter(&mockService{}), "POST", "/v1/reservations/filter", `{}`)

		assert.Equal(t, "missing_payload", decodeError(t, w).Code)
	})
}

func TestQueryHandler(t *testing.T) {
	t.Run("Streams Events", func(t *testing.T) {
		svc := &mockService{}
		ch := make(chan reservation.QueryResult, 3)
		ch <- reservation.QueryResult{Reservation: stored(1)}
		ch <- reservation.QueryResult{Err: reservation.ErrDatabase}
		ch <- reservation.QueryResult{Reservation: stored(2)}
		close(ch)
		svc.On("Query", mock.Anything, mock.MatchedBy(func(q reservation.Query) bool {
			return q.ResourceID == "room-1" && q.Start != nil && q.End == nil
		})).Return((<-chan reservation.QueryResult)(ch), nil).Once()

		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations/query",
			`{"query":{"resource_id":"room-1","start":"2024-06-01T00:00:00Z"}}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream"))
		body := w.Body.String()
		assert.Equal(t, 2, strings.Count(body, "event:reservation"))
		assert.Equal(t, 1, strings.Count(body, "event:error"))
		assert.Contains(t, body, `"code":"database_error"`)
		assert.Less(t, strings.Index(body, `"id":1`), strings.Index(body, `"id":2`))
	})

	t.Run("Empty Result Is Still An Event Stream", func(t *testing.T) {
		svc := &mockService{}
		ch := make(chan reservation.QueryResult)
		close(ch)
		svc.On("Query", mock.Anything, mock.Anything).Return((<-chan reservation.QueryResult)(ch), nil).Once()

		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations/query", `{"query":{}}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream"))
		assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
		assert.Empty(t, w.Body.String())
	})

	t.Run("Rejected Before Streaming", func(t *testing.T) {
		svc := &mockService{}
		svc.On("Query", mock.Anything, mock.Anything).Return(nil, reservation.ErrInvalidTime).Once()

		w := executeRequest(newTestRouter(svc), "POST", "/v1/reservations/query", `{"query":{}}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_time", decodeError(t, w).Code)
	})
}
