package handler

import (
	"errors"
	"net/http"
	"strconv"

	"ajo/internal/service"

	"github.com/gin-gonic/gin"
)

var kindStatus = map[service.Kind]int{
	service.KindValidation:          http.StatusBadRequest,
	service.KindNotFound:            http.StatusNotFound,
	service.KindForbidden:           http.StatusForbidden,
	service.KindStateConflict:       http.StatusConflict,
	service.KindInsufficientBalance: http.StatusPaymentRequired,
	service.KindExternal:            http.StatusBadGateway,
	service.KindDataIntegrity:       http.StatusInternalServerError,
	service.KindInternal:            http.StatusInternalServerError,
}

// respondError writes a service error as {"error", "code"}. Internal causes are never echoed.
func respondError(c *gin.Context, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		se = service.ErrInternal
	}
	status, ok := kindStatus[se.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := se.Message
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		if se.Kind == service.KindInternal {
			msg = service.ErrInternal.Message
		}
	}
	c.JSON(status, gin.H{"error": msg, "code": se.Code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": service.ErrValidation.Code})
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}
