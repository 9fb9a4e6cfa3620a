package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/settlement"
	"github.com/meridian-erp/meridian-erp/jobs"
)

func TestRouterMountsJobsHealth(t *testing.T) {
	router := NewRouter(RouterParams{
		Logger:            slog.Default(),
		Config:            &Config{},
		SettlementHandler: settlement.NewHandler(slog.Default(), nil),
		JobsHandler:       jobs.NewHandler(nil, slog.Default()),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}

func TestRouterHealthzWithoutPool(t *testing.T) {
	router := NewRouter(RouterParams{
		Logger:            slog.Default(),
		Config:            &Config{},
		SettlementHandler: settlement.NewHandler(slog.Default(), nil),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
