package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ogurasousui/codex-http-clean-arch/internal/core/company"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRouter_Healthz(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterParams{Health: stubPinger{}})
	rec := serve(router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	router = NewRouter(RouterParams{Logger: zaptest.NewLogger(t), Health: stubPinger{err: errors.New("down")}})
	rec = serve(router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_RequestID(t *testing.T) {
	t.Parallel()

	router := NewRouter(RouterParams{})

	rec := serve(router, http.MethodGet, "/healthz", "")
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "trace-123")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get(HeaderRequestID))
}

func TestRouter_SecurityHeaders(t *testing.T) {
	t.Parallel()

	rec := serve(NewRouter(RouterParams{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRouter_NotFoundProblem(t *testing.T) {
	t.Parallel()

	rec := serve(NewRouter(RouterParams{}), http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	p := decodeProblem(t, rec)
	assert.Equal(t, ProblemTypeNotFound, p.Type)
	assert.NotEmpty(t, p.RequestID)
}

func TestRouter_CustomBasePath(t *testing.T) {
	t.Parallel()

	svc := &stubUseCase{getFn: func(_ context.Context, in company.GetCompanyInput) (*company.Company, error) {
		return sampleCompany(in.ID, "Acme"), nil
	}}
	router := NewRouter(RouterParams{Companies: NewCompanyHandler(svc, "/api/v1/companies", nil)})

	rec := serve(router, http.MethodGet, "/api/v1/companies/8", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/v1/companies/8", rec.Header().Get("Location"))
}

func TestRouter_RateLimit(t *testing.T) {
	t.Parallel()

	svc := &stubUseCase{getFn: func(_ context.Context, in company.GetCompanyInput) (*company.Company, error) {
		return sampleCompany(in.ID, "Acme"), nil
	}}
	router := NewRouter(RouterParams{
		Companies:          NewCompanyHandler(svc, "/companies", nil),
		RateLimitPerMinute: 1,
	})

	rec := serve(router, http.MethodGet, "/companies/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodGet, "/companies/1", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, ProblemTypeRateLimited, decodeProblem(t, rec).Type)

	rec = serve(router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
