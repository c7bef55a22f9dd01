// Package platform delivers canonical rejection batches to the RCM platform
// API. Delivery is one synchronous call per run; a non-2xx response is total
// run failure because nothing was durably imported.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Fadil369/brainsait-rcm-sub002/log"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/models"
	"github.com/Fadil369/brainsait-rcm-sub002/rcmsync/utils"
)

const batchPath = "/api/v1/rejections/batch"

// Sink accepts one batch per run. The orchestrator depends on this interface
// so tests can substitute a recording sink.
type Sink interface {
	DeliverBatch(ctx context.Context, records []models.CanonicalRejectionRecord) error
}

// Client is the retryablehttp-backed Sink. Retries cover transient transport
// failures only; an HTTP error status fails the delivery immediately since
// the run will re-attempt from a fresh window anyway.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

func NewClient(baseURL, token string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = utils.GetEnvInt("PLATFORM_RETRY_MAX", 1)
	rc.Logger = nil
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// Only connection-level failures retry; server errors surface as-is.
		return err != nil, nil
	}
	return &Client{baseURL: baseURL, token: token, http: rc}
}

// DeliverBatch POSTs the full batch as a JSON array with bearer auth.
func (c *Client) DeliverBatch(ctx context.Context, records []models.CanonicalRejectionRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "could not encode rejection batch")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+batchPath, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "could not build batch request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "batch delivery failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("platform rejected batch: status %d: %s", resp.StatusCode, string(body))
	}

	// The platform echoes the imported count; log a mismatch but trust the
	// 2xx as durable import.
	var ack struct {
		Imported int `json:"imported"`
	}
	if err := json.Unmarshal(body, &ack); err == nil && ack.Imported != len(records) {
		log.Sync.WithFields(logrus.Fields{
			"sent":     len(records),
			"imported": ack.Imported,
		}).Warn("platform imported count differs from batch size")
	}

	return nil
}
