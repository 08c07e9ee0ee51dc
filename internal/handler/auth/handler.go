package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
	clinicvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

type Handler struct {
	svc      *auth.Service
	patients *patient.Service
	validate *validator.Validate
}

func NewHandler(svc *auth.Service, patients *patient.Service) *Handler {
	return &Handler{svc: svc, patients: patients, validate: clinicvalidator.New()}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}
	r.POST("/admin/login", h.AdminLogin)
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterPatientRequest
	if !handler.BindJSON(c, nil, &req) {
		return
	}

	p, err := h.patients.Register(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	token, err := h.svc.IssueToken(model.Principal{Subject: p.ID, Email: p.Email, Role: model.RolePatient})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, "patient registered", token)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, h.validate, &req) {
		return
	}

	token, err := h.svc.LoginPatient(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", token)
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, h.validate, &req) {
		return
	}

	token, err := h.svc.LoginAdmin(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, "", token)
}
