package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

type HandlerFunc func(ctx *gin.Context) (any, *Error)

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		if apiErr != nil {
			ctx.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
			return
		}
		if result == nil {
			ctx.Status(http.StatusNoContent)
			return
		}

		ctx.JSON(http.StatusOK, result)
	}
}

func BadRequest(err error) *Error {
	return &Error{Code: http.StatusBadRequest, Message: err.Error()}
}
