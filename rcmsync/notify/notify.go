// Package notify pushes new-rejection summaries to the WhatsApp bridge
// webhook. Notification is a best-effort side effect: failures are logged
// and never change a run's outcome.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Fadil369/brainsait-rcm-sub002/log"
)

// Summary is the payload a completed run pushes to the notification target.
type Summary struct {
	RejectionCount int     `json:"rejectionCount"`
	TotalAmount    float64 `json:"totalAmount"`
	Currency       string  `json:"currency"`
	RunID          string  `json:"runId"`
	DashboardURL   string  `json:"dashboardUrl,omitempty"`
}

// Notifier posts summaries to a webhook. A zero webhook URL disables it.
type Notifier struct {
	webhookURL string
	http       *http.Client
}

func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a target is configured.
func (n *Notifier) Enabled() bool { return n != nil && n.webhookURL != "" }

// Send posts the summary with a bounded exponential backoff. Errors are
// swallowed after logging; the caller never fails because of notification.
func (n *Notifier) Send(ctx context.Context, summary Summary) {
	if !n.Enabled() {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		log.Notify.WithError(err).Error("could not encode notification")
		return
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	err = backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("webhook returned %d", resp.StatusCode))
		}
		return nil
	}, policy)

	if err != nil {
		log.Notify.WithError(err).Warn("rejection notification failed")
		return
	}
	log.Notify.WithField("rejections", summary.RejectionCount).Info("rejection notification sent")
}
