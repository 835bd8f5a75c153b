package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domainsec "github.com/seoforge/seoforge-backend/internal/domain/security"
	"github.com/seoforge/seoforge-backend/internal/infrastructure/cache"
	"github.com/seoforge/seoforge-backend/internal/infrastructure/config"
	"github.com/seoforge/seoforge-backend/internal/metrics"
	exportsvc "github.com/seoforge/seoforge-backend/internal/service/export"
	securitysvc "github.com/seoforge/seoforge-backend/internal/service/security"
)

type testEnv struct {
	server   *Server
	security *securitysvc.Service
	limiter  *cache.RateLimiter
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	logger := zaptest.NewLogger(t)
	promReg := prometheus.NewRegistry()
	reg := metrics.NewRegistry(promReg)

	security, err := securitysvc.NewService(securitysvc.DefaultConfig(), logger, reg)
	require.NoError(t, err)

	store := cache.NewMemoryStore()
	secure, err := cache.NewSecureCache(store, "test-secret", time.Hour, logger, reg, security)
	require.NoError(t, err)

	limiter := cache.NewRateLimiter(logger, reg, security)

	exports, err := exportsvc.NewManager(exportsvc.NewFileSink(t.TempDir()), logger, reg,
		exportsvc.WithBatchDelay(time.Millisecond))
	require.NoError(t, err)

	server, err := NewServer(&config.ServerConfig{Port: 0}, logger, security, exports, secure, limiter, promReg)
	require.NoError(t, err)

	return &testEnv{server: server, security: security, limiter: limiter}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ResponseEnvelope {
	t.Helper()

	var envelope ResponseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestServer_Health(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeEnvelope(t, rec).Success)
}

func TestServer_Metrics(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_SecurityMetrics(t *testing.T) {
	env := setupTestServer(t)
	require.NoError(t, env.security.Log(context.Background(), domainsec.EventSuspiciousActivity, domainsec.SeverityHigh, nil))

	rec := env.do(t, http.MethodGet, "/api/v1/security/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	data, err := json.Marshal(envelope.Data)
	require.NoError(t, err)

	var resp securityMetricsResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, 90, resp.Score)
	assert.Equal(t, 1, resp.TotalEvents)
	assert.Equal(t, 1, resp.UnresolvedAlerts)
}

func TestServer_ResolveAlert(t *testing.T) {
	env := setupTestServer(t)
	require.NoError(t, env.security.Log(context.Background(), domainsec.EventSuspiciousActivity, domainsec.SeverityHigh, nil))

	alerts := env.security.UnresolvedAlerts()
	require.Len(t, alerts, 1)

	rec := env.do(t, http.MethodPost, "/api/v1/security/alerts/"+alerts[0].ID.String()+"/resolve", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.security.UnresolvedAlerts())

	t.Run("bad id", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/security/alerts/not-a-uuid/resolve", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, decodeEnvelope(t, rec).Success)
	})
}

func TestServer_SecurityReport(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodGet, "/api/v1/security/report", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# Security Report")
}

func exportBody(format string) map[string]interface{} {
	return map[string]interface{}{
		"document": map[string]interface{}{
			"toolName":     "keyword tracker",
			"analysisDate": "2026-08-30",
			"metrics":      map[string]interface{}{"rank": 4},
		},
		"options": map[string]interface{}{
			"format": format,
			"includeSections": map[string]bool{
				"summary": true,
			},
		},
	}
}

func TestServer_Export(t *testing.T) {
	env := setupTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/v1/exports", exportBody("json"))
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("unsupported format", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/exports", exportBody("docx"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/exports", bytes.NewReader([]byte("{broken")))
		rec := httptest.NewRecorder()
		env.server.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_ExportRateLimited(t *testing.T) {
	env := setupTestServer(t)
	env.limiter.Configure(exportOperation, 1, time.Minute)

	rec := env.do(t, http.MethodPost, "/api/v1/exports", exportBody("json"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/exports", exportBody("json"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", envelope.Error.Code)
}

func TestServer_BatchExport(t *testing.T) {
	env := setupTestServer(t)

	body := map[string]interface{}{
		"documents": []interface{}{
			exportBody("json")["document"],
			exportBody("json")["document"],
		},
		"options": []interface{}{exportBody("csv")["options"]},
	}

	rec := env.do(t, http.MethodPost, "/api/v1/exports/batch", body)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_CacheLifecycle(t *testing.T) {
	env := setupTestServer(t)

	put := map[string]interface{}{"value": map[string]int{"score": 91}, "ttlMs": 60000}
	rec := env.do(t, http.MethodPut, "/api/v1/cache/audit:example.com", put)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/cache/audit:example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	data, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score":91}`, string(data))

	rec = env.do(t, http.MethodDelete, "/api/v1/cache/audit:example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/cache/audit:example.com", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CacheKeyIsolation(t *testing.T) {
	env := setupTestServer(t)

	for i := 0; i < 3; i++ {
		put := map[string]interface{}{"value": i}
		rec := env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/cache/key-%d", i), put)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/cache/key-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	data, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))
}
