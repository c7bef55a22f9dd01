package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/models"
)

func testBatch(n int) []models.CanonicalRejectionRecord {
	batch := make([]models.CanonicalRejectionRecord, n)
	for i := range batch {
		batch[i].ID = fmt.Sprintf("REJ-20260820-%08d", i)
	}
	return batch
}

func TestDeliverBatch(t *testing.T) {
	var gotAuth, gotContentType string
	var gotRecords []models.CanonicalRejectionRecord
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/rejections/batch", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotRecords)
		_ = json.NewEncoder(w).Encode(map[string]int{"imported": len(gotRecords)})
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok-123")
	err := client.DeliverBatch(context.Background(), testBatch(3))

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	require.Len(t, gotRecords, 3)
	assert.Equal(t, "REJ-20260820-00000000", gotRecords[0].ID)
}

func TestDeliverBatchServerErrorFails(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "upstream database down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok-123")
	err := client.DeliverBatch(context.Background(), testBatch(1))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	// HTTP error statuses do not retry; only transport failures do.
	assert.Equal(t, 1, calls)
}

func TestDeliverBatchUnreachablePlatform(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "tok-123")
	err := client.DeliverBatch(context.Background(), testBatch(1))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch delivery failed")
}
