package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/subscriber/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ErrorClassifier maps a handler error to the type and code returned to the client.
type ErrorClassifier func(error) (errType string, errCode string)

// GinMiddleware opens a server span per request. Handlers and the services
// below them add payment and oracle attributes through Annotate; rejected
// requests carry the same error type and code the client received.
func GinMiddleware(classify ErrorClassifier) gin.HandlerFunc {
	tracer := otel.Tracer("subscriber/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+strings.ToUpper(c.Request.Method), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + strings.ToUpper(c.Request.Method) + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)

		// the auth middleware replaces the request context, so the caller is visible here
		if actor := obscontext.ActorFromContext(c.Request.Context()); actor != "" {
			span.SetAttributes(attribute.String("enduser.id", actor))
		}

		lastErr := c.Errors.Last()
		if lastErr != nil && classify != nil && status >= http.StatusBadRequest {
			errType, errCode := classify(lastErr.Err)
			span.SetAttributes(SafeAttributes(
				attribute.String("error.type", errType),
				attribute.String("error.code", errCode),
			)...)
		}
		if status >= http.StatusInternalServerError {
			if lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}
