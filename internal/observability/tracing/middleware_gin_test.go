package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestGinMiddlewareCarriesPaymentOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware(nil))
	r.POST("/v1/transfers", func(c *gin.Context) {
		Annotate(c.Request.Context(),
			attribute.String("payment.outcome", "created"),
			attribute.Int64("subscription.id", 1),
			attribute.String("payer", "alice"),
		)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/transfers", nil))
	require.Equal(t, http.StatusOK, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP POST /v1/transfers", spans[0].Name())
	attrs := spanAttrs(spans[0])
	assert.Equal(t, "created", attrs["payment.outcome"].AsString())
	assert.Equal(t, int64(1), attrs["subscription.id"].AsInt64())
	assert.NotContains(t, attrs, attribute.Key("payer"))
}

func TestGinMiddlewareClassifiesRejections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	classify := func(err error) (string, string) { return "conflict", err.Error() }
	r := gin.New()
	r.Use(GinMiddleware(classify))
	r.POST("/v1/transfers", func(c *gin.Context) {
		_ = c.Error(errors.New("insufficient_payment"))
		c.Status(http.StatusConflict)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/transfers", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := spanAttrs(spans[0])
	assert.Equal(t, "conflict", attrs["error.type"].AsString())
	assert.Equal(t, "insufficient_payment", attrs["error.code"].AsString())
	assert.Equal(t, int64(http.StatusConflict), attrs["http.status_code"].AsInt64())
}
