package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Jiwaru/pss-uas-lms-backend/internal/telemetry/metrics"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicRecovery(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/boom", func(_ http.ResponseWriter, _ *http.Request) {
		panic("handler gone wrong")
	}).Methods("GET")
	r.Use(PanicRecovery(metrics.NewTestManager()))

	req := httptest.NewRequest("GET", "/boom", nil)
	rr := httptest.NewRecorder()

	require.NotPanics(t, func() {
		r.ServeHTTP(rr, req)
	})
	// nothing was written by the handler, the recovery only swallows the panic
	assert.Equal(t, http.StatusOK, rr.Code)
}
