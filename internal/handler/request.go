package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
	clinicvalidator "github.com/jwalitptl/clinic-api/pkg/validator"
)

// BindJSON decodes the body into dst and, when v is set, validates it.
// On failure the error envelope has been written and false is returned.
func BindJSON(c *gin.Context, v *validator.Validate, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return false
	}
	if v == nil {
		return true
	}
	if err := v.Struct(dst); err != nil {
		httputil.RespondWithError(c, errors.BadRequest(clinicvalidator.Summary(err), err))
		return false
	}
	return true
}

// ParseID reads a UUID path parameter.
func ParseID(c *gin.Context, param, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid "+resource+" ID", err))
		return uuid.Nil, false
	}
	return id, true
}

func PaginationFrom(c *gin.Context) (model.Pagination, bool) {
	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid pagination", err))
		return page, false
	}
	return page, true
}
