// internal/catalog/notifier.go
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Notifier delivers enrollment-completed notifications to whoever
// subscribed to them (in practice, the reconciler's attribution tagger).
type Notifier interface {
	EnrollmentCompleted(ctx context.Context, e *Enrollment) error
}

// WebhookNotifier posts enrollment-completed events to a callback URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) EnrollmentCompleted(ctx context.Context, e *Enrollment) error {
	event := EnrollmentCompletedEvent{
		EventID:      uuid.NewString(),
		EnrollmentID: e.ID,
		UserID:       e.UserID,
		CourseID:     e.CourseID,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
