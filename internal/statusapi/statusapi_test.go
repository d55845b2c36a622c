package statusapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthReportsOK(t *testing.T) {
	s := New()
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStatusReturnsNotFoundForUnknownTask(t *testing.T) {
	s := New()
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFlashRejectsBadJSON(t *testing.T) {
	s := New()
	router := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/flash", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
