package apiutil

import (
	"net/http"

	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/gin-gonic/gin"
)

// ProblemContentType is the media type of RFC 7807 bodies
const ProblemContentType = "application/problem+json"

// RFC7807ErrorMiddleware renders the last error attached with c.Error as problem details,
// unless the handler already wrote a response.
func RFC7807ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last()
		var problemDetails *errors.ProblemDetails
		if err.Type == gin.ErrorTypeBind {
			problemDetails = errors.ToProblemDetails(
				errors.Invalid.Explain("request binding failed").Wrap(err.Err), c.Request.URL.Path)
		} else {
			problemDetails = errors.ToProblemDetails(err.Err, c.Request.URL.Path)
		}
		RFC7807ErrorResponse(c, problemDetails)
		c.Abort()
	}
}

// RFC7807ErrorResponse writes an RFC 7807 compliant error response
func RFC7807ErrorResponse(c *gin.Context, problemDetails *errors.ProblemDetails) {
	if traceID := GetTraceID(c); traceID != "" {
		problemDetails.WithTraceID(traceID)
	}

	c.Header("Content-Type", ProblemContentType)
	c.JSON(problemDetails.Status, problemDetails)
}

// WriteError converts err to problem details and writes it
func WriteError(c *gin.Context, err error) {
	RFC7807ErrorResponse(c, errors.ToProblemDetails(err, c.Request.URL.Path))
}

// RFC7807NotFoundResponse writes a not found error response
func RFC7807NotFoundResponse(c *gin.Context, detail string) {
	RFC7807ErrorResponse(c, errors.NewNotFoundError(detail, c.Request.URL.Path))
}

// NoRoute answers unknown routes with a not found problem
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		RFC7807NotFoundResponse(c, http.StatusText(http.StatusNotFound))
	}
}
