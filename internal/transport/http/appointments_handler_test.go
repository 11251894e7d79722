package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"coachly/internal/authz"
	"coachly/internal/domain"
	"coachly/internal/service/appointments"
	"coachly/internal/store"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	listFn         func(ctx context.Context, actor domain.Actor, in appointments.ListInput) (appointments.ListResult, error)
	getFn          func(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Appointment, error)
	createFn       func(ctx context.Context, actor domain.Actor, in appointments.CreateInput) (domain.Appointment, error)
	updateFn       func(ctx context.Context, actor domain.Actor, id uuid.UUID, in appointments.UpdateInput) (domain.Appointment, error)
	deleteFn       func(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	availabilityFn func(ctx context.Context, instructorID, date string) ([]domain.TimeSpan, error)
	statsFn        func(ctx context.Context, from, to *time.Time) (domain.Stats, error)
}

func (f *fakeService) List(ctx context.Context, actor domain.Actor, in appointments.ListInput) (appointments.ListResult, error) {
	if f.listFn == nil {
		panic("unexpected List call")
	}
	return f.listFn(ctx, actor, in)
}

func (f *fakeService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("unexpected Get call")
	}
	return f.getFn(ctx, actor, id)
}

func (f *fakeService) Create(ctx context.Context, actor domain.Actor, in appointments.CreateInput) (domain.Appointment, error) {
	if f.createFn == nil {
		panic("unexpected Create call")
	}
	return f.createFn(ctx, actor, in)
}

func (f *fakeService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in appointments.UpdateInput) (domain.Appointment, error) {
	if f.updateFn == nil {
		panic("unexpected Update call")
	}
	return f.updateFn(ctx, actor, id, in)
}

func (f *fakeService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if f.deleteFn == nil {
		panic("unexpected Delete call")
	}
	return f.deleteFn(ctx, actor, id)
}

func (f *fakeService) Availability(ctx context.Context, instructorID, date string) ([]domain.TimeSpan, error) {
	if f.availabilityFn == nil {
		panic("unexpected Availability call")
	}
	return f.availabilityFn(ctx, instructorID, date)
}

func (f *fakeService) Stats(ctx context.Context, from, to *time.Time) (domain.Stats, error) {
	if f.statsFn == nil {
		panic("unexpected Stats call")
	}
	return f.statsFn(ctx, from, to)
}

func testRouter(svc *fakeService) *gin.Engine {
	h := NewAppointmentsHandler(svc, nil)
	return NewRouter(h, RouterConfig{
		JWTSecret:      testSecret,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}, nil)
}

func signToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func doRequest(r *gin.Engine, method, target, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestMissingTokenRejected(t *testing.T) {
	r := testRouter(&fakeService{})

	w := doRequest(r, http.MethodGet, "/api/appointments", "", "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if got := decodeBody(t, w)["error"]; got != "Access token required" {
		t.Fatalf("error = %q", got)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	r := testRouter(&fakeService{})
	token := signToken(t, "wrong-secret", "ins-1", string(domain.RoleInstructor))

	w := doRequest(r, http.MethodGet, "/api/appointments", token, "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if got := decodeBody(t, w)["error"]; got != "Invalid or expired token" {
		t.Fatalf("error = %q", got)
	}
}

func TestListPassesActorAndFilters(t *testing.T) {
	var gotActor domain.Actor
	var gotIn appointments.ListInput
	svc := &fakeService{
		listFn: func(_ context.Context, actor domain.Actor, in appointments.ListInput) (appointments.ListResult, error) {
			gotActor = actor
			gotIn = in
			return appointments.ListResult{
				Appointments: []domain.Appointment{},
				Page:         2,
				PageSize:     5,
				Total:        11,
				Pages:        3,
			}, nil
		},
	}
	r := testRouter(svc)
	token := signToken(t, testSecret, "ins-1", string(domain.RoleInstructor))

	w := doRequest(r, http.MethodGet,
		"/api/appointments?page=2&limit=5&status=SCHEDULED&type=TRAINING&studentId=stu-1&startDate=2026-03-01", token, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if gotActor.ID != "ins-1" || gotActor.Role != domain.RoleInstructor {
		t.Fatalf("actor = %+v", gotActor)
	}
	if gotIn.Page != 2 || gotIn.PageSize != 5 {
		t.Fatalf("page = %d size = %d", gotIn.Page, gotIn.PageSize)
	}
	if gotIn.Status != domain.StatusScheduled || gotIn.Type != domain.TypeTraining || gotIn.StudentID != "stu-1" {
		t.Fatalf("filters = %+v", gotIn)
	}
	if gotIn.From == nil || !gotIn.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from = %v", gotIn.From)
	}

	body := decodeBody(t, w)
	pagination, ok := body["pagination"].(map[string]any)
	if !ok {
		t.Fatalf("pagination missing: %v", body)
	}
	if pagination["page"] != float64(2) || pagination["limit"] != float64(5) ||
		pagination["total"] != float64(11) || pagination["pages"] != float64(3) {
		t.Fatalf("pagination = %v", pagination)
	}
	if _, ok := body["appointments"]; !ok {
		t.Fatalf("appointments missing: %v", body)
	}
}

func TestListRejectsMalformedDate(t *testing.T) {
	r := testRouter(&fakeService{})
	token := signToken(t, testSecret, "ins-1", string(domain.RoleInstructor))

	w := doRequest(r, http.MethodGet, "/api/appointments?startDate=yesterday", token, "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetMapsErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"forbidden", authz.ErrForbidden, http.StatusForbidden, "Insufficient permissions"},
		{"not found", store.ErrNotFound, http.StatusNotFound, "Appointment not found"},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError, "Internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{
				getFn: func(context.Context, domain.Actor, uuid.UUID) (domain.Appointment, error) {
					return domain.Appointment{}, tc.err
				},
			}
			r := testRouter(svc)
			token := signToken(t, testSecret, "ins-1", string(domain.RoleInstructor))

			w := doRequest(r, http.MethodGet, "/api/appointments/"+uuid.NewString(), token, "")

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if got := decodeBody(t, w)["error"]; got != tc.wantError {
				t.Fatalf("error = %q, want %q", got, tc.wantError)
			}
		})
	}
}

func TestGetRejectsMalformedID(t *testing.T) {
	r := testRouter(&fakeService{})
	token := signToken(t, testSecret, "ins-1", string(domain.RoleInstructor))

	w := doRequest(r, http.MethodGet, "/api/appointments/not-a-uuid", token, "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestCreateReturnsEnvelope(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{
		createFn: func(_ context.Context, _ domain.Actor, in appointments.CreateInput) (domain.Appointment, error) {
			if in.InstructorID != "ins-1" || in.Type != domain.TypeTraining {
				t.Fatalf("input = %+v", in)
			}
			return domain.Appointment{
				ID:           id,
				InstructorID: in.InstructorID,
				StudentID:    in.StudentID,
				StartTime:    in.StartTime,
				EndTime:      in.EndTime,
				Status:       domain.StatusScheduled,
				Type:         in.Type,
			}, nil
		},
	}
	r := testRouter(svc)
	token := signToken(t, testSecret, "ins-1", string(domain.RoleInstructor))

	body := `{
		"instructorId": "ins-1",
		"studentId": "stu-1",
		"startTime": "2026-03-01T10:00:00Z",
		"endTime": "2026-03-01T11:00:00Z",
		"type": "TRAINING"
	}`
	w := doRequest(r, http.MethodPost, "/api/appointments", token, body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["message"] != "Appointment created successfully" {
		t.Fatalf("message = %q", resp["message"])
	}
	appt, ok := resp["appointment"].(map[string]any)
	if !ok || appt["id"] != id.String() {
		t.Fatalf("appointment = %v", resp["appointment"])
	}
}

func TestCreateMissingFieldsRejected(t *testing.T) {
	r := testRouter(&fakeService{})
	token := signToken(t, testSecret, "ins-1", string(domain.RoleInstructor))

	w := doRequest(r, http.MethodPost, "/api/appointments", token, `{"instructorId": "ins-1"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["error"] != "Validation failed" {
		t.Fatalf("error = %q", resp["error"])
	}
	fields, ok := resp["fields"].(map[string]any)
	if !ok {
		t.Fatalf("fields missing: %v", resp)
	}
	for _, name := range []string{"studentId", "startTime", "endTime", "type"} {
		if _, ok := fields[name]; !ok {
			t.Errorf("missing field report for %s: %v", name, fields)
		}
	}
}

func TestCreateConflictResponse(t *testing.T) {
	svc := &fakeService{
		createFn: func(context.Context, domain.Actor, appointments.CreateInput) (domain.Appointment, error) {
			return domain.Appointment{}, store.ErrConflict
		},
	}
	r := testRouter(svc)
	token := signToken(t, testSecret, "ins-1", string(domain.RoleInstructor))

	body := `{
		"instructorId": "ins-1",
		"studentId": "stu-1",
		"startTime": "2026-03-01T10:00:00Z",
		"endTime": "2026-03-01T11:00:00Z",
		"type": "TRAINING"
	}`
	w := doRequest(r, http.MethodPost, "/api/appointments", token, body)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["error"] != "Time slot already booked" {
		t.Fatalf("error = %q", resp["error"])
	}
	if resp["message"] != "The instructor already has an appointment at this time" {
		t.Fatalf("message = %q", resp["message"])
	}
}

func TestCreateServiceValidationMapped(t *testing.T) {
	svc := &fakeService{
		createFn: func(context.Context, domain.Actor, appointments.CreateInput) (domain.Appointment, error) {
			return domain.Appointment{}, appointments.NewValidationError("end_time must be after start_time")
		},
	}
	r := testRouter(svc)
	token := signToken(t, testSecret, "ins-1", string(domain.RoleInstructor))

	body := `{
		"instructorId": "ins-1",
		"studentId": "stu-1",
		"startTime": "2026-03-01T11:00:00Z",
		"endTime": "2026-03-01T10:00:00Z",
		"type": "TRAINING"
	}`
	w := doRequest(r, http.MethodPost, "/api/appointments", token, body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "end_time must be after start_time" {
		t.Fatalf("error = %q", got)
	}
}

func TestUpdateForwardsSuppliedFieldsOnly(t *testing.T) {
	var gotIn appointments.UpdateInput
	svc := &fakeService{
		updateFn: func(_ context.Context, _ domain.Actor, _ uuid.UUID, in appointments.UpdateInput) (domain.Appointment, error) {
			gotIn = in
			return domain.Appointment{ID: uuid.New(), Status: domain.StatusCompleted}, nil
		},
	}
	r := testRouter(svc)
	token := signToken(t, testSecret, "admin-1", string(domain.RoleAdmin))

	w := doRequest(r, http.MethodPut, "/api/appointments/"+uuid.NewString(), token, `{"status": "COMPLETED"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if gotIn.Status == nil || *gotIn.Status != domain.StatusCompleted {
		t.Fatalf("status = %v", gotIn.Status)
	}
	if gotIn.StudentID != nil || gotIn.StartTime != nil || gotIn.EndTime != nil || gotIn.Type != nil || gotIn.Notes != nil {
		t.Fatalf("unexpected fields forwarded: %+v", gotIn)
	}
	if got := decodeBody(t, w)["message"]; got != "Appointment updated successfully" {
		t.Fatalf("message = %q", got)
	}
}

func TestDeleteResponse(t *testing.T) {
	svc := &fakeService{
		deleteFn: func(context.Context, domain.Actor, uuid.UUID) error { return nil },
	}
	r := testRouter(svc)
	token := signToken(t, testSecret, "admin-1", string(domain.RoleAdmin))

	w := doRequest(r, http.MethodDelete, "/api/appointments/"+uuid.NewString(), token, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := decodeBody(t, w)["message"]; got != "Appointment deleted successfully" {
		t.Fatalf("message = %q", got)
	}
}

func TestAvailabilityResponse(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := &fakeService{
		availabilityFn: func(_ context.Context, instructorID, date string) ([]domain.TimeSpan, error) {
			if instructorID != "ins-1" || date != "2026-03-01" {
				t.Fatalf("args = %q %q", instructorID, date)
			}
			return []domain.TimeSpan{{StartTime: start, EndTime: start.Add(time.Hour)}}, nil
		},
	}
	r := testRouter(svc)
	token := signToken(t, testSecret, "ins-1", string(domain.RoleInstructor))

	w := doRequest(r, http.MethodGet, "/api/appointments/availability/ins-1?date=2026-03-01", token, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	spans, ok := resp["appointments"].([]any)
	if !ok || len(spans) != 1 {
		t.Fatalf("appointments = %v", resp["appointments"])
	}
}

func TestStatsResponse(t *testing.T) {
	svc := &fakeService{
		statsFn: func(context.Context, *time.Time, *time.Time) (domain.Stats, error) {
			return domain.Stats{Total: 4, Completed: 2, AttendanceRate: 50}, nil
		},
	}
	r := testRouter(svc)
	token := signToken(t, testSecret, "admin-1", string(domain.RoleAdmin))

	w := doRequest(r, http.MethodGet, "/api/appointments/stats", token, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["total"] != float64(4) || resp["attendanceRate"] != float64(50) {
		t.Fatalf("stats = %v", resp)
	}
}

func TestHealthEndpoint(t *testing.T) {
	r := testRouter(&fakeService{})

	w := doRequest(r, http.MethodGet, "/health", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["status"] != "OK" {
		t.Fatalf("status = %q", resp["status"])
	}
	ts, ok := resp["timestamp"].(string)
	if !ok {
		t.Fatalf("timestamp missing: %v", resp)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Fatalf("timestamp %q not RFC 3339: %v", ts, err)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	h := NewAppointmentsHandler(&fakeService{}, nil)
	r := NewRouter(h, RouterConfig{
		JWTSecret:      testSecret,
		RateLimitRPS:   0.1,
		RateLimitBurst: 1,
	}, nil)

	first := doRequest(r, http.MethodGet, "/api/appointments", "", "")
	if first.Code == http.StatusTooManyRequests {
		t.Fatalf("first request throttled")
	}

	second := doRequest(r, http.MethodGet, "/api/appointments", "", "")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", second.Code, http.StatusTooManyRequests)
	}
	if got := decodeBody(t, second)["error"]; got != "Too many requests" {
		t.Fatalf("error = %q", got)
	}
}
