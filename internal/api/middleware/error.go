package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nourselim0/http-process-wrapper/internal/api/dto"
)

// ErrorHandlerMiddleware turns panics and unhandled gin errors into JSON
// error responses so no request ends with an empty body.
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				c.Abort()
				c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
					Error:   "Internal Server Error",
					Message: "An unexpected error occurred",
					Code:    http.StatusInternalServerError,
				})
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal Server Error",
			Message: c.Errors.Last().Error(),
			Code:    http.StatusInternalServerError,
		})
	}
}
