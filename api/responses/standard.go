package responses

import (
	"net/http"
	"time"

	"github.com/Aidin1998/catalogue/common/apiutil"
	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/gin-gonic/gin"
)

// StandardResponse represents a standard API response format
type StandardResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// PaginationMeta contains pagination metadata
type PaginationMeta struct {
	CurrentPage  int   `json:"current_page"`
	PerPage      int   `json:"per_page"`
	TotalPages   int   `json:"total_pages"`
	TotalRecords int64 `json:"total_records"`
	HasNext      bool  `json:"has_next"`
	HasPrev      bool  `json:"has_prev"`
	NextPage     int   `json:"next_page,omitempty"`
	PrevPage     int   `json:"prev_page,omitempty"`
}

// Page is the template data of every HTML page
type Page struct {
	Data    interface{}
	User    interface{}
	Path    string
	TraceID string
}

// ErrorTemplate renders problems for browsers
const ErrorTemplate = "error.html"

// WantsHTML reports whether the client prefers an HTML page over JSON.
func WantsHTML(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) == gin.MIMEHTML
}

// Render answers with the named template for browsers and a JSON envelope otherwise.
func Render(c *gin.Context, status int, template string, data interface{}) {
	if WantsHTML(c) {
		user, _ := c.Get("user")
		c.HTML(status, template, Page{
			Data:    data,
			User:    user,
			Path:    c.Request.URL.Path,
			TraceID: apiutil.GetTraceID(c),
		})
		return
	}

	c.JSON(status, StandardResponse{
		Success:   status < http.StatusBadRequest,
		Data:      data,
		Timestamp: time.Now().UTC(),
		TraceID:   apiutil.GetTraceID(c),
	})
}

// Success sends a 200 response
func Success(c *gin.Context, template string, data interface{}) {
	Render(c, http.StatusOK, template, data)
}

// SeeOther redirects a POST to location with 303 See Other
func SeeOther(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

// Error sends err as problem details, or as the error page for browsers
func Error(c *gin.Context, err error) {
	problemDetails := errors.ToProblemDetails(err, c.Request.URL.Path)
	if problemDetails.TraceID == "" {
		if traceID := apiutil.GetTraceID(c); traceID != "" {
			problemDetails.WithTraceID(traceID)
		}
	}
	if problemDetails.Extra == nil {
		problemDetails.WithExtra("timestamp", time.Now().UTC().Format(time.RFC3339))
	}

	if WantsHTML(c) {
		c.HTML(problemDetails.Status, ErrorTemplate, Page{
			Data:    problemDetails,
			Path:    c.Request.URL.Path,
			TraceID: problemDetails.TraceID,
		})
		return
	}

	apiutil.RFC7807ErrorResponse(c, problemDetails)
}

// FieldErrors maps the field errors carried by err by field name.
func FieldErrors(err error) map[string]string {
	var e *errors.Error
	if !errors.As(err, &e) {
		return nil
	}
	fields := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := fields[f.Field]; !ok {
			fields[f.Field] = f.Message
		}
	}
	return fields
}

// CreatePaginationMeta creates pagination metadata
func CreatePaginationMeta(currentPage, perPage int, totalRecords int64) *PaginationMeta {
	totalPages := int((totalRecords + int64(perPage) - 1) / int64(perPage))
	if totalPages < 1 {
		totalPages = 1
	}

	meta := &PaginationMeta{
		CurrentPage:  currentPage,
		PerPage:      perPage,
		TotalPages:   totalPages,
		TotalRecords: totalRecords,
		HasNext:      currentPage < totalPages,
		HasPrev:      currentPage > 1,
	}
	if meta.HasNext {
		meta.NextPage = currentPage + 1
	}
	if meta.HasPrev {
		meta.PrevPage = currentPage - 1
	}
	return meta
}
