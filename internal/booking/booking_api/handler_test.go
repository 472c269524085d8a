package booking_api

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	bookingdb "ms-booking/internal/booking/db"
	lock "ms-booking/internal/booking/redis"
	"ms-booking/internal/models"
	"ms-booking/internal/pass"
	"ms-booking/internal/registry"
	"ms-booking/internal/sse"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type testEnv struct {
	router  http.Handler
	handler *Handler
	events  *sse.BookingEventEmitter
}

func setupTestEnv(t *testing.T) *testEnv {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	ctx := context.Background()
	require.NoError(t, bookingdb.CreateSchema(ctx, bunDB))

	reg := &registry.DB{Bun: bunDB}
	now := time.Now()
	require.NoError(t, reg.UpsertTenant(ctx, &models.Tenant{ID: "T1", Name: "Salon", Timezone: "UTC", CreatedAt: now}))
	require.NoError(t, reg.UpsertTenant(ctx, &models.Tenant{ID: "T3", Name: "Studio", CreatedAt: now}))
	require.NoError(t, reg.UpsertResource(ctx, &models.Resource{ID: "R1", TenantID: "T1", Name: "Chair", Kind: "room", CreatedAt: now}))
	require.NoError(t, reg.UpsertResource(ctx, &models.Resource{ID: "R2", TenantID: "T1", Name: "Asha", Kind: "staff", Timezone: "Asia/Kolkata", CreatedAt: now}))
	require.NoError(t, reg.UpsertResource(ctx, &models.Resource{ID: "R4", TenantID: "T3", Name: "Mat", Kind: "room", CreatedAt: now}))

	events := sse.NewBookingEventEmitter()
	ledger := booking.NewLedger(&bookingdb.DB{Bun: bunDB}, reg, nil, events, nil)
	h := NewHandler(ledger, pass.NewGenerator("test-secret"), events, nil)

	r := chi.NewRouter()
	r.Use(auth.Middleware(auth.UnverifiedVerifier{}, nil))
	h.RegisterRoutes(r)
	return &testEnv{router: r, handler: h, events: events}
}

func tokenFor(t *testing.T, tenantID string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1", "tenant_id": tenantID})
	s, err := tok.SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return s
}

func (e *testEnv) do(t *testing.T, method, path, tenantID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if tenantID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, tenantID))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

var day = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func createReq(clientID, resourceID string, start, end time.Time) models.CreateBookingRequest {
	return models.CreateBookingRequest{
		ClientGeneratedID: clientID,
		ResourceID:        resourceID,
		StartAt:           start,
		EndAt:             end,
		AttendeeCount:     1,
	}
}

func (e *testEnv) create(t *testing.T, clientID, resourceID string, start, end time.Time) models.Booking {
	w := e.do(t, http.MethodPost, "/api/bookings", "T1", createReq(clientID, resourceID, start, end))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp models.BookingResponse
	decode(t, w, &resp)
	return resp.Booking
}

func TestCreateAndReplay(t *testing.T) {
	env := setupTestEnv(t)
	first := env.create(t, "req-1", "R1", at(14, 0), at(15, 0))
	assert.Equal(t, models.BookingStatusPending, first.Status)
	assert.Equal(t, "UTC", first.BookingTZ)

	w := env.do(t, http.MethodPost, "/api/bookings", "T1", createReq("req-1", "R1", at(14, 0), at(15, 0)))
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.BookingResponse
	decode(t, w, &resp)
	assert.True(t, resp.Replayed)
	assert.Equal(t, first.ID, resp.Booking.ID)
}

func TestCreateOverlapConflict(t *testing.T) {
	env := setupTestEnv(t)
	first := env.create(t, "req-1", "R1", at(14, 0), at(15, 0))

	w := env.do(t, http.MethodPost, "/api/bookings", "T1", createReq("req-2", "R1", at(14, 30), at(15, 30)))
	require.Equal(t, http.StatusConflict, w.Code)
	var details ConflictDetails
	env2 := decode(t, w, &details)
	assert.Equal(t, CodeOverlapConflict, env2.Code)
	assert.Equal(t, first.ID, details.ConflictingBookingID)

	// touching bounds do not overlap
	env.create(t, "req-3", "R1", at(15, 0), at(16, 0))
}

// stuckLock never hands out the admission lock
type stuckLock struct{}

func (stuckLock) Acquire(ctx context.Context, resourceID, owner string) error {
	return fmt.Errorf("%w: %s", lock.ErrLockTimeout, resourceID)
}

func (stuckLock) Release(ctx context.Context, resourceID, owner string) error { return nil }

func TestCreateWithStuckLock(t *testing.T) {
	env := setupTestEnv(t)
	env.handler.Ledger.Lock = stuckLock{}

	env.create(t, "req-1", "R1", at(8, 0), at(9, 0))
	env.create(t, "req-2", "R1", at(10, 0), at(11, 0))

	w := env.do(t, http.MethodPost, "/api/bookings", "T1", createReq("req-3", "R1", at(8, 30), at(9, 30)))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStatusForCanceledRequest(t *testing.T) {
	status, code := statusFor(fmt.Errorf("admit: %w", context.Canceled))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, CodeUnavailable, code)
}

func TestCreateValidationErrors(t *testing.T) {
	env := setupTestEnv(t)

	cases := []struct {
		name   string
		tenant string
		req    models.CreateBookingRequest
		status int
		code   string
	}{
		{"inverted range", "T1", createReq("a", "R1", at(15, 0), at(14, 0)), http.StatusBadRequest, CodeInvalidTimeRange},
		{"no attendees", "T1", func() models.CreateBookingRequest {
			r := createReq("b", "R1", at(9, 0), at(10, 0))
			r.AttendeeCount = 0
			return r
		}(), http.StatusBadRequest, CodeInvalidAttendees},
		{"bad zone", "T1", func() models.CreateBookingRequest {
			r := createReq("c", "R1", at(9, 0), at(10, 0))
			r.Timezone = "Mars/Olympus"
			return r
		}(), http.StatusBadRequest, CodeInvalidTimezone},
		{"no zone anywhere", "T3", createReq("d", "R4", at(9, 0), at(10, 0)), http.StatusUnprocessableEntity, CodeTimezoneRequired},
		{"unknown resource", "T1", createReq("e", "R404", at(9, 0), at(10, 0)), http.StatusNotFound, CodeNotFound},
		{"missing client id", "T1", createReq("", "R1", at(9, 0), at(10, 0)), http.StatusBadRequest, CodeInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/bookings", tc.tenant, tc.req)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, decode(t, w, nil).Code)
		})
	}
}

func TestCreateUsesResourceZone(t *testing.T) {
	env := setupTestEnv(t)
	b := env.create(t, "req-1", "R2", at(9, 0), at(10, 0))
	assert.Equal(t, "Asia/Kolkata", b.BookingTZ)
}

func TestRequestsNeedActor(t *testing.T) {
	env := setupTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/bookings", "", createReq("req-1", "R1", at(9, 0), at(10, 0)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/bookings", "T1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBookingIsTenantScoped(t *testing.T) {
	env := setupTestEnv(t)
	b := env.create(t, "req-1", "R1", at(9, 0), at(10, 0))

	w := env.do(t, http.MethodGet, "/api/bookings/"+b.ID, "T1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Booking
	decode(t, w, &got)
	assert.Equal(t, b.ID, got.ID)

	w = env.do(t, http.MethodGet, "/api/bookings/"+b.ID, "T3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelFreesSlot(t *testing.T) {
	env := setupTestEnv(t)
	b := env.create(t, "req-1", "R1", at(14, 0), at(15, 0))

	canceledAt := at(12, 0)
	w := env.do(t, http.MethodPatch, "/api/bookings/"+b.ID+"/lifecycle", "T1", models.LifecycleUpdate{CanceledAt: &canceledAt})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Booking
	decode(t, w, &updated)
	assert.Equal(t, models.BookingStatusCanceled, updated.Status)

	env.create(t, "req-2", "R1", at(14, 30), at(15, 30))
}

func TestLifecycleRejectsFlagOwnedStatus(t *testing.T) {
	env := setupTestEnv(t)
	b := env.create(t, "req-1", "R1", at(14, 0), at(15, 0))

	status := models.BookingStatusCanceled
	w := env.do(t, http.MethodPatch, "/api/bookings/"+b.ID+"/lifecycle", "T1", models.LifecycleUpdate{Status: &status})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, CodeInvalidStatus, decode(t, w, nil).Code)

	confirmed := models.BookingStatusConfirmed
	w = env.do(t, http.MethodPatch, "/api/bookings/missing/lifecycle", "T1", models.LifecycleUpdate{Status: &confirmed})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReschedule(t *testing.T) {
	env := setupTestEnv(t)
	b := env.create(t, "req-1", "R1", at(14, 0), at(15, 0))

	req := models.RescheduleRequest{ClientGeneratedID: "req-2", StartAt: at(14, 30), EndAt: at(15, 30)}
	w := env.do(t, http.MethodPost, "/api/bookings/"+b.ID+"/reschedule", "T1", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.RescheduleResponse
	decode(t, w, &resp)
	assert.Equal(t, models.BookingStatusCanceled, resp.Original.Status)
	require.NotNil(t, resp.Replacement.RescheduledFrom)
	assert.Equal(t, b.ID, *resp.Replacement.RescheduledFrom)
	assert.Equal(t, "R1", resp.Replacement.ResourceID)

	w = env.do(t, http.MethodPost, "/api/bookings/"+b.ID+"/reschedule", "T1", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &resp)
	assert.True(t, resp.Replayed)
}

func TestListResourceBookings(t *testing.T) {
	env := setupTestEnv(t)
	a := env.create(t, "req-1", "R1", at(9, 0), at(10, 0))
	env.create(t, "req-2", "R1", at(11, 0), at(12, 0))
	env.create(t, "req-3", "R2", at(9, 0), at(10, 0))

	now := at(8, 0)
	w := env.do(t, http.MethodPatch, "/api/bookings/"+a.ID+"/lifecycle", "T1", models.LifecycleUpdate{CanceledAt: &now})
	require.Equal(t, http.StatusOK, w.Code)

	var all []models.Booking
	w = env.do(t, http.MethodGet, "/api/resources/R1/bookings", "T1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &all)
	assert.Len(t, all, 2)

	var active []models.Booking
	w = env.do(t, http.MethodGet, "/api/resources/R1/bookings?active=true", "T1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &active)
	require.Len(t, active, 1)
	assert.Equal(t, "req-2", active[0].ClientGeneratedID)

	var window []models.Booking
	path := fmt.Sprintf("/api/resources/R1/bookings?from=%s&to=%s", at(10, 30).Format(time.RFC3339), at(13, 0).Format(time.RFC3339))
	w = env.do(t, http.MethodGet, path, "T1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &window)
	assert.Len(t, window, 1)

	w = env.do(t, http.MethodGet, "/api/resources/R1/bookings?from=yesterday", "T1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/resources/R1/bookings?active=maybe", "T1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPassAndCheckIn(t *testing.T) {
	env := setupTestEnv(t)
	b := env.create(t, "req-1", "R1", at(14, 0), at(15, 0))

	w := env.do(t, http.MethodGet, "/api/bookings/"+b.ID+"/pass", "T1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	token, err := env.handler.Passes.Token(b)
	require.NoError(t, err)

	// another tenant cannot redeem it
	w = env.do(t, http.MethodPost, "/api/passes/check-in", "T3", map[string]string{"token": token})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/passes/check-in", "T1", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var checkedIn models.Booking
	decode(t, w, &checkedIn)
	assert.Equal(t, models.BookingStatusCheckedIn, checkedIn.Status)

	w = env.do(t, http.MethodPost, "/api/passes/check-in", "T1", map[string]string{"token": "garbage"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPassForCanceledBooking(t *testing.T) {
	env := setupTestEnv(t)
	b := env.create(t, "req-1", "R1", at(14, 0), at(15, 0))
	token, err := env.handler.Passes.Token(b)
	require.NoError(t, err)

	now := at(9, 0)
	w := env.do(t, http.MethodPatch, "/api/bookings/"+b.ID+"/lifecycle", "T1", models.LifecycleUpdate{CanceledAt: &now})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/bookings/"+b.ID+"/pass", "T1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeBookingInactive, decode(t, w, nil).Code)

	w = env.do(t, http.MethodPost, "/api/passes/check-in", "T1", map[string]string{"token": token})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStreamResourceBookings(t *testing.T) {
	env := setupTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/resources/R1/bookings/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "T1"))
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for lines.Scan() {
			line := lines.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && name != "":
				return name, data
			}
		}
		return name, data
	}

	name, _ := readEvent()
	require.Equal(t, "connected", name)

	// other resources are not streamed
	env.create(t, "req-0", "R2", at(9, 0), at(10, 0))
	b := env.create(t, "req-1", "R1", at(9, 0), at(10, 0))

	name, data := readEvent()
	assert.Equal(t, string(models.BookingEventCreated), name)
	var event models.BookingEvent
	require.NoError(t, json.Unmarshal([]byte(data), &event))
	assert.Equal(t, b.ID, event.BookingID)
	assert.Equal(t, "R1", event.ResourceID)
}
