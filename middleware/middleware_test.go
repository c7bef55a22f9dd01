package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionID(t *testing.T) {
	var ctxID string
	handler := NewTransactionID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = TransactionID(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	headerID := rr.Header().Get("X-Transaction-Id")
	require.NotEmpty(t, headerID)
	assert.Equal(t, headerID, ctxID)
}

func TestTransactionIDMissing(t *testing.T) {
	assert.Empty(t, TransactionID(context.Background()))
}
