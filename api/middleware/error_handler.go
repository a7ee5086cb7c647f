// api/middleware/error_handler.go
package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Annany2002/nebula-cms/api/models"
	"github.com/Annany2002/nebula-cms/internal/auth"
	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
	"github.com/Annany2002/nebula-cms/internal/form"
	"github.com/Annany2002/nebula-cms/internal/storage"
)

// ErrorHandler creates a Gin middleware for centralized error handling.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// Only the last attached error decides the response
		err := c.Errors.Last().Err
		customLog.Debugf("[ErrorHandler] Detected error: %v | Type: %T", err, err)

		if c.Writer.Written() {
			customLog.Debugf("[ErrorHandler] Response already written for error: %v", err)
			return
		}

		// Record validation keeps its per-field map
		var validationErr *form.ValidationError
		if errors.As(err, &validationErr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ValidationErrorResponse{
				Error:  "Validation failed. Please check your input.",
				Errors: validationErr.Errors,
			})
			return
		}

		statusCode, userMessage := statusFor(err)
		c.AbortWithStatusJSON(statusCode, gin.H{"error": userMessage})
	}
}

func statusFor(err error) (int, string) {
	var (
		validationErrs validator.ValidationErrors
		syntaxErr      *json.SyntaxError
		typeErr        *json.UnmarshalTypeError
	)

	switch {
	case errors.Is(err, storage.ErrUserNotFound),
		errors.Is(err, storage.ErrRecordNotFound),
		errors.Is(err, storage.ErrAgentNotFound),
		errors.Is(err, cmsconfig.ErrTableNotFound):
		return http.StatusNotFound, err.Error()

	case errors.Is(err, storage.ErrEmailExists),
		errors.Is(err, storage.ErrRecordExists):
		return http.StatusConflict, err.Error()

	case errors.Is(err, storage.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password."

	case errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenClaimsInvalid),
		errors.Is(err, auth.ErrUnexpectedSigningMethod),
		errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "Invalid or malformed authentication token."

	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "Authentication token has expired."

	case errors.As(err, &validationErrs):
		for _, fe := range validationErrs {
			customLog.Debugf("Validation Error: Field %s failed on %s", fe.Field(), fe.Tag())
		}
		return http.StatusBadRequest, "Validation failed. Please check your input."

	case errors.As(err, &syntaxErr),
		errors.As(err, &typeErr),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return http.StatusBadRequest, "Invalid JSON request body."

	case errors.Is(err, form.ErrUpload),
		errors.Is(err, storage.ErrInvalidFilterValue),
		errors.Is(err, auth.ErrBadRequest):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, form.ErrConfiguration):
		// Only the affected view fails; the message names the table and field
		return http.StatusInternalServerError, err.Error()

	default:
		customLog.Warnf("Unhandled error type: %T, Error: %v", err, err)
		return http.StatusInternalServerError, "An unexpected internal server error occurred."
	}
}
