package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/scheduling-engine/pkg/logging"
)

// OutboundMessage is one reminder payload handed to a channel provider.
type OutboundMessage struct {
	OrgID      uuid.UUID
	ReminderID uuid.UUID
	To         string
	Body       string
}

// Sender pushes one message through a single channel provider.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// DeliveryError classifies a provider failure. Transient failures are
// retried with backoff; terminal ones (permanently rejected address and the
// like) burn all remaining attempts.
type DeliveryError struct {
	Transient  bool
	StatusCode int
	Message    string
}

func (e *DeliveryError) Error() string {
	kind := "terminal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s delivery error (status %d): %s", kind, e.StatusCode, e.Message)
}

// IsTransient reports whether err should be retried. Errors that are not
// DeliveryErrors (timeouts, connection resets) count as transient.
func IsTransient(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Transient
	}
	return true
}

// HTTPSender posts messages to a channel provider's JSON API, in the shape
// both the WhatsApp and SMS gateways accept. The client timeout is the hard
// cap on one attempt; a timed-out attempt counts as a transient failure.
type HTTPSender struct {
	apiURL     string
	apiKey     string
	channel    Channel
	httpClient *http.Client
	logger     *logging.Logger
}

func NewHTTPSender(apiURL, apiKey string, channel Channel, timeout time.Duration, logger *logging.Logger) *HTTPSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPSender{
		apiURL:  apiURL,
		apiKey:  apiKey,
		channel: channel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

var _ Sender = (*HTTPSender)(nil)

func (s *HTTPSender) Send(ctx context.Context, msg OutboundMessage) error {
	if s.apiKey == "" {
		return &DeliveryError{Transient: false, Message: fmt.Sprintf("%s provider credentials missing", s.channel)}
	}
	if msg.To == "" {
		return &DeliveryError{Transient: false, Message: "recipient address required"}
	}
	if strings.TrimSpace(msg.Body) == "" {
		return &DeliveryError{Transient: false, Message: "message body required"}
	}

	payload := map[string]any{
		"to":   msg.To,
		"text": msg.Body,
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal provider payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Timeout or transport failure: retryable.
		return &DeliveryError{Transient: true, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := strings.TrimSpace(string(respBody))

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return &DeliveryError{Transient: true, StatusCode: resp.StatusCode, Message: detail}
	}

	s.logger.Warn("provider rejected message permanently",
		"channel", string(s.channel),
		"status", resp.StatusCode,
		"reminder_id", msg.ReminderID,
	)
	return &DeliveryError{Transient: false, StatusCode: resp.StatusCode, Message: detail}
}

// SenderRegistry routes a reminder to the Sender for its channel.
type SenderRegistry map[Channel]Sender

func (r SenderRegistry) Send(ctx context.Context, channel Channel, msg OutboundMessage) error {
	s, ok := r[channel]
	if !ok {
		return &DeliveryError{Transient: false, Message: fmt.Sprintf("no sender configured for channel %q", channel)}
	}
	return s.Send(ctx, msg)
}
