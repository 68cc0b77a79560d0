package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Message is one outbound mail.
type Message struct {
	To      string `json:"email"`
	Subject string `json:"subject"`
	Body    string `json:"message"`
}

// Relay delivers a single message. The mail relay offers no delivery
// confirmation beyond HTTP-level success.
type Relay interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPRelay posts messages to a fire-and-forget HTTP endpoint.
type HTTPRelay struct {
	url    string
	client *http.Client
}

// NewHTTPRelay builds a relay client with a request timeout.
func NewHTTPRelay(url string, timeout time.Duration) *HTTPRelay {
	return &HTTPRelay{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Send implements Relay.
func (r *HTTPRelay) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay returned status %d", resp.StatusCode)
	}
	return nil
}
