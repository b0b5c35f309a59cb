package apiutil

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceIDKey    = "trace_id"
	TraceIDHeader = "X-Trace-ID"
)

// TraceIDMiddleware tags the request with a trace id: the active span's, the caller's
// X-Trace-ID header, or a fresh uuid.
func TraceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var traceID string
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		} else if header := c.GetHeader(TraceIDHeader); header != "" {
			traceID = header
		} else {
			traceID = uuid.NewString()
		}
		c.Set(traceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Next()
	}
}

// GetTraceID extracts trace ID from context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(traceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return c.GetHeader(TraceIDHeader)
}
