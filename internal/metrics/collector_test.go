package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"designer/internal/domain"
)

func TestCollectorCountsGenerations(t *testing.T) {
	c := NewCollector(nil)

	c.GenerationCompleted(domain.ProviderMock, nil)
	c.GenerationCompleted(domain.ProviderMock, nil)
	c.GenerationCompleted(domain.ProviderReal, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.generationsTotal.WithLabelValues("mock", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.generationsTotal.WithLabelValues("real", "error")))
}

func TestCollectorCountsPipelineEvents(t *testing.T) {
	c := NewCollector(nil)

	c.PersistCompleted(domain.PersistStored)
	c.PersistCompleted(domain.PersistDegraded)
	c.SignedURLCacheHit()
	c.SignedURLCacheMiss()
	c.SignedURLCacheMiss()
	c.ProxyResponded(http.StatusNotFound)
	c.PromptFallback("static")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.persistOutcomes.WithLabelValues("degraded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.signedCacheLookup.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.proxyResponses.WithLabelValues("404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.promptFallbacks.WithLabelValues("static")))
}

func TestCollectorHandlerExposesMetrics(t *testing.T) {
	c := NewCollector(nil)
	c.RecordHTTPRequest(http.MethodGet, "/v1/healthz", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `designer_http_requests_total{method="GET",route="/v1/healthz",status="200"} 1`), body)
}
