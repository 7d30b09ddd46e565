package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	switch {
	case out.Counter != nil:
		return out.GetCounter().GetValue()
	case out.Gauge != nil:
		return out.GetGauge().GetValue()
	}
	t.Fatalf("unsupported metric %v", m.Desc())
	return 0
}

func TestGinMiddleware_CollapsesUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/v1/templates/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/v1/templates/a", "/v1/templates/b", "/nope/1", "/nope/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := value(t, httpResponses.WithLabelValues("GET", "/v1/templates/:id", "200")); got != 2 {
		t.Fatalf("matched route count = %v, want 2", got)
	}
	if got := value(t, httpResponses.WithLabelValues("GET", unmatchedRoute, "404")); got != 2 {
		t.Fatalf("unmatched route count = %v, want 2", got)
	}
}

func TestWSOpened_ClosedIsIdempotent(t *testing.T) {
	before := value(t, wsConnections.WithLabelValues("editor"))
	closed := WSOpened("editor")
	if got := value(t, wsConnections.WithLabelValues("editor")); got != before+1 {
		t.Fatalf("gauge = %v, want %v", got, before+1)
	}
	closed()
	closed()
	if got := value(t, wsConnections.WithLabelValues("editor")); got != before {
		t.Fatalf("gauge = %v after close, want %v", got, before)
	}
}

func TestTaskOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":         nil,
		"retry":      errors.New("redis down"),
		"skip_retry": fmt.Errorf("bad payload: %w", asynq.SkipRetry),
	}
	for want, err := range cases {
		if got := taskOutcome(err); got != want {
			t.Fatalf("taskOutcome(%v) = %q, want %q", err, got, want)
		}
	}

	h := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return nil }))
	if err := h.ProcessTask(context.Background(), asynq.NewTask("test:noop", nil)); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if got := value(t, taskOutcomes.WithLabelValues("test:noop", "ok")); got != 1 {
		t.Fatalf("ok outcome = %v, want 1", got)
	}
}
