package admin

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/booking"
	"github.com/jwalitptl/clinic-api/internal/service/dashboard"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Handler struct {
	doctors   *doctor.Service
	bookings  *booking.Service
	dashboard *dashboard.Service
}

func NewHandler(doctors *doctor.Service, bookings *booking.Service, dashboard *dashboard.Service) *Handler {
	return &Handler{doctors: doctors, bookings: bookings, dashboard: dashboard}
}

// RegisterRoutes expects rg to be the /admin group, authenticated as admin.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	doctors := rg.Group("/doctors")
	{
		doctors.POST("", h.AddDoctor)
		doctors.GET("", h.ListDoctors)
		doctors.PATCH("/:id/availability", h.ToggleAvailability)
	}

	appointments := rg.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.POST("/:id/cancel", h.CancelAppointment)
	}

	rg.GET("/dashboard", h.Dashboard)
}

func (h *Handler) AddDoctor(c *gin.Context) {
	var req model.CreateDoctorRequest
	if !handler.BindJSON(c, nil, &req) {
		return
	}

	d, err := h.doctors.AddDoctor(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, "doctor added", d)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.doctors.ListDoctors(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", doctors)
}

func (h *Handler) ToggleAvailability(c *gin.Context) {
	id, ok := handler.ParseID(c, "id", "doctor")
	if !ok {
		return
	}

	resp, err := h.doctors.ToggleAvailability(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "availability changed", resp)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	page, ok := handler.PaginationFrom(c)
	if !ok {
		return
	}
	filters := &model.AppointmentFilters{Pagination: page}

	if v := c.Query("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid doctor ID", err))
			return
		}
		filters.DoctorID = id
	}
	if v := c.Query("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid patient ID", err))
			return
		}
		filters.PatientID = id
	}
	if v := c.Query("cancelled"); v != "" {
		cancelled, err := strconv.ParseBool(v)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid cancelled filter", err))
			return
		}
		filters.Cancelled = &cancelled
	}

	appointments, err := h.bookings.ListAppointments(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", appointments)
}

// CancelAppointment succeeds for appointments that are already cancelled.
func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := handler.ParseID(c, "id", "appointment")
	if !ok {
		return
	}

	resp, err := h.bookings.CancelAppointment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "appointment cancelled", resp)
}

func (h *Handler) Dashboard(c *gin.Context) {
	summary, err := h.dashboard.Summary(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", summary)
}
