package router

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
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/config"
	adminHandler "github.com/jwalitptl/clinic-api/internal/handler/admin"
	appointmentHandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	authHandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	doctorHandler "github.com/jwalitptl/clinic-api/internal/handler/doctor"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-api/internal/handler/patient"
	"github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	authService "github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/booking"
	"github.com/jwalitptl/clinic-api/internal/service/dashboard"
	doctorService "github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	patientService "github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type testAPI struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	log := logger.Nop()
	m := metrics.New("test")
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	patientSvc := patientService.NewService(store.Patients(), hasher, log)
	doctorSvc := doctorService.NewService(store.Doctors(), store.Ledger(), hasher, time.Minute, m, log)
	bookingSvc := booking.NewService(store.Doctors(), store.Patients(), store.Appointments(), store.Ledger(), event.Nop{}, m, log)
	dashboardSvc := dashboard.NewService(store.Doctors(), store.Patients(), store.Appointments())
	authSvc, err := authService.NewService(config.AuthConfig{
		AdminEmail:    "admin@clinic.test",
		AdminPassword: "Admin1234",
		JWTSecret:     "test-secret",
		Issuer:        "clinic-api",
		TokenTTL:      time.Hour,
	}, store.Patients(), hasher, log)
	require.NoError(t, err)

	metricsHandler, err := prometheus.New("test", m)
	require.NoError(t, err)

	r := NewRouter(
		middleware.NewAuthMiddleware(authSvc),
		Handlers{
			Auth:        authHandler.NewHandler(authSvc, patientSvc),
			Doctor:      doctorHandler.NewHandler(doctorSvc),
			Patient:     patientHandler.NewHandler(patientSvc),
			Appointment: appointmentHandler.NewHandler(bookingSvc),
			Admin:       adminHandler.NewHandler(doctorSvc, bookingSvc, dashboardSvc),
			Health:      health.NewHandler(health.CheckFunc("memory", func(context.Context) error { return nil })),
			Metrics:     metricsHandler,
		},
		log,
		RouterConfig{
			CORSConfig:   middleware.DefaultCORSConfig(nil),
			MaxBodyBytes: 1 << 20,
		},
	)
	r.Setup()
	return &testAPI{t: t, engine: r.Engine()}
}

func (a *testAPI) do(method, path string, body interface{}, token string) (int, apiResponse) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func (a *testAPI) token(path string, body interface{}, want int) string {
	a.t.Helper()
	code, resp := a.do(http.MethodPost, path, body, "")
	require.Equal(a.t, want, code, resp.Message)

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(a.t, json.Unmarshal(resp.Data, &tok))
	require.NotEmpty(a.t, tok.AccessToken)
	return tok.AccessToken
}

func (a *testAPI) addDoctor(adminToken, email string) string {
	a.t.Helper()
	code, resp := a.do(http.MethodPost, "/api/v1/admin/doctors", map[string]interface{}{
		"name":           "Dr. Who",
		"email":          email,
		"password":       "Doctor123",
		"specialization": "General physician",
		"degree":         "MBBS",
		"experience":     "4 Years",
		"about":          "Time travelling GP",
		"available":      true,
		"fee":            50,
	}, adminToken)
	require.Equal(a.t, http.StatusCreated, code, resp.Message)

	var d struct {
		ID string `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(resp.Data, &d))
	return d.ID
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	admin := api.token("/api/v1/admin/login", map[string]string{"email": "admin@clinic.test", "password": "Admin1234"}, http.StatusOK)
	doctorID := api.addDoctor(admin, "who@clinic.test")
	patient := api.token("/api/v1/auth/register", map[string]string{
		"name": "Rose", "email": "rose@example.com", "password": "longenough",
	}, http.StatusCreated)

	booking := map[string]string{"doctor_id": doctorID, "slot_date": "10_5_2024", "slot_time": "10:00 am"}
	code, resp := api.do(http.MethodPost, "/api/v1/appointments", booking, patient)
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var booked struct {
		AppointmentID string  `json:"appointment_id"`
		Amount        float64 `json:"amount"`
		SlotDate      string  `json:"slot_date"`
		SlotTime      string  `json:"slot_time"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &booked))
	assert.Equal(t, "10_05_2024", booked.SlotDate)
	assert.Equal(t, "10:00 AM", booked.SlotTime)
	assert.Equal(t, float64(50), booked.Amount)

	code, resp = api.do(http.MethodPost, "/api/v1/appointments", booking, patient)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", resp.Status)

	code, resp = api.do(http.MethodGet, "/api/v1/doctors/"+doctorID, nil, "")
	require.Equal(t, http.StatusOK, code)
	var d struct {
		SlotsBooked map[string][]string `json:"slots_booked"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &d))
	assert.Equal(t, map[string][]string{"10_05_2024": {"10:00 AM"}}, d.SlotsBooked)

	cancelPath := "/api/v1/admin/appointments/" + booked.AppointmentID + "/cancel"
	for i := 0; i < 2; i++ {
		code, resp = api.do(http.MethodPost, cancelPath, nil, admin)
		require.Equal(t, http.StatusOK, code, resp.Message)
		assert.JSONEq(t, `{"success":true}`, string(resp.Data))
	}

	code, _ = api.do(http.MethodPost, "/api/v1/appointments", booking, patient)
	assert.Equal(t, http.StatusCreated, code)

	code, resp = api.do(http.MethodGet, "/api/v1/appointments", nil, patient)
	require.Equal(t, http.StatusOK, code)
	var mine []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &mine))
	assert.Len(t, mine, 2)

	code, resp = api.do(http.MethodGet, "/api/v1/admin/dashboard", nil, admin)
	require.Equal(t, http.StatusOK, code)
	var summary struct {
		AppointmentCount int64  `json:"appointment_count"`
		CancelledCount   int64  `json:"cancelled_count"`
		CountingPolicy   string `json:"counting_policy"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.Equal(t, int64(2), summary.AppointmentCount)
	assert.Equal(t, int64(1), summary.CancelledCount)
	assert.Equal(t, "includes_cancelled", summary.CountingPolicy)
}

func TestUnavailableDoctorOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	admin := api.token("/api/v1/admin/login", map[string]string{"email": "admin@clinic.test", "password": "Admin1234"}, http.StatusOK)
	doctorID := api.addDoctor(admin, "off@clinic.test")
	patient := api.token("/api/v1/auth/register", map[string]string{
		"name": "Martha", "email": "martha@example.com", "password": "longenough",
	}, http.StatusCreated)

	code, resp := api.do(http.MethodPatch, "/api/v1/admin/doctors/"+doctorID+"/availability", nil, admin)
	require.Equal(t, http.StatusOK, code)
	var toggled struct {
		Available bool `json:"available"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &toggled))
	assert.False(t, toggled.Available)

	code, _ = api.do(http.MethodPost, "/api/v1/appointments", map[string]string{
		"doctor_id": doctorID, "slot_date": "11_05_2024", "slot_time": "09:30 AM",
	}, patient)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestAccessControl(t *testing.T) {
	api := newTestAPI(t)
	patient := api.token("/api/v1/auth/register", map[string]string{
		"name": "Donna", "email": "donna@example.com", "password": "longenough",
	}, http.StatusCreated)

	code, _ := api.do(http.MethodGet, "/api/v1/admin/dashboard", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(http.MethodGet, "/api/v1/admin/dashboard", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(http.MethodGet, "/api/v1/admin/dashboard", nil, patient)
	assert.Equal(t, http.StatusForbidden, code)

	code, resp := api.do(http.MethodGet, "/api/v1/patients/me", nil, patient)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(resp.Data), "password")

	code, _ = api.do(http.MethodPost, "/api/v1/admin/login", map[string]string{"email": "admin@clinic.test", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRequestValidation(t *testing.T) {
	api := newTestAPI(t)
	patient := api.token("/api/v1/auth/register", map[string]string{
		"name": "Amy", "email": "amy@example.com", "password": "longenough",
	}, http.StatusCreated)

	code, _ := api.do(http.MethodPost, "/api/v1/appointments", map[string]string{
		"doctor_id": "00000000-0000-0000-0000-000000000001", "slot_date": "2024-05-10", "slot_time": "10:00 AM",
	}, patient)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodGet, "/api/v1/doctors/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name": "Amy", "email": "amy@example.com", "password": "longenough",
	}, "")
	assert.Equal(t, http.StatusConflict, code)
}

func TestOpsEndpoints(t *testing.T) {
	api := newTestAPI(t)

	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	api.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
}
