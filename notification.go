package raidguard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/oarkflow/log"
)

// SecurityNotice is the payload delivered to notification senders whenever
// the engine records a security action.
type SecurityNotice struct {
	CommunityID string    `json:"communityId"`
	Action      string    `json:"action"`
	Target      string    `json:"target"`
	Reason      string    `json:"reason"`
	Details     string    `json:"details,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NotificationRegistry manages notification senders
type NotificationRegistry struct {
	senders map[string]NotificationSender
	logger  *log.Logger
	mu      sync.RWMutex
}

// NewNotificationRegistry creates a registry with the built-in log sender
// registered. Additional senders (webhook) are registered by the caller.
func NewNotificationRegistry(logger *log.Logger) *NotificationRegistry {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	registry := &NotificationRegistry{
		senders: make(map[string]NotificationSender),
		logger:  logger,
	}
	registry.Register(&LogNotificationSender{logger: logger})
	return registry
}

// Register adds a notification sender
func (nr *NotificationRegistry) Register(sender NotificationSender) {
	nr.mu.Lock()
	defer nr.mu.Unlock()
	nr.senders[sender.Name()] = sender
}

// Get retrieves a notification sender
func (nr *NotificationRegistry) Get(channel string) (NotificationSender, bool) {
	nr.mu.RLock()
	defer nr.mu.RUnlock()
	sender, exists := nr.senders[channel]
	return sender, exists
}

// Broadcast delivers the notice to every registered sender. Delivery runs
// asynchronously so protective logic is never blocked; failures are logged
// and suppressed.
func (nr *NotificationRegistry) Broadcast(notice *SecurityNotice) {
	if notice == nil {
		return
	}
	nr.mu.RLock()
	senders := make([]NotificationSender, 0, len(nr.senders))
	for _, s := range nr.senders {
		senders = append(senders, s)
	}
	nr.mu.RUnlock()

	for _, sender := range senders {
		go func(s NotificationSender) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := s.Send(ctx, notice); err != nil {
				nr.logger.Error().Err(err).Str("sender", s.Name()).Msg("notification delivery failed")
			}
		}(sender)
	}
}

// LogNotificationSender writes notices to the structured log.
type LogNotificationSender struct {
	logger *log.Logger
}

func (s *LogNotificationSender) Name() string { return "log" }

func (s *LogNotificationSender) Send(_ context.Context, notice *SecurityNotice) error {
	s.logger.Info().
		Str("community", notice.CommunityID).
		Str("action", notice.Action).
		Str("target", notice.Target).
		Str("reason", notice.Reason).
		Msg("security notice")
	return nil
}

// WebhookNotificationSender posts notices as JSON to an HTTP endpoint.
type WebhookNotificationSender struct {
	URL    string
	client *http.Client
}

func NewWebhookNotificationSender(url string) *WebhookNotificationSender {
	return &WebhookNotificationSender{
		URL:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookNotificationSender) Name() string { return "webhook" }

func (s *WebhookNotificationSender) Send(ctx context.Context, notice *SecurityNotice) error {
	if s.URL == "" {
		return fmt.Errorf("webhook URL not configured")
	}
	jsonData, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", s.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "RaidGuard-Notification/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status code: %d", resp.StatusCode)
	}
	return nil
}
