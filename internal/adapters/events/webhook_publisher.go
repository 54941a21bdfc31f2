package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
	"github.com/atvirokodosprendimai/pcm/internal/core/ports"
)

const (
	defaultWebhookTimeout = 10 * time.Second
	webhookUserAgent      = "pcm-webhook/1"
	maxErrorBodyBytes     = 512
)

// Webhook request headers. Receivers can route on the collection id and event type without
// decoding the body; the signature covers the body only.
const (
	HeaderTopic         = "X-Pcm-Topic"
	HeaderEventType     = "X-Pcm-Event-Type"
	HeaderEventID       = "X-Pcm-Event-Id"
	HeaderCollectionID  = "X-Pcm-Collection-Id"
	HeaderSchemaVersion = "X-Pcm-Schema-Version"
	HeaderRequestID     = "X-Pcm-Request-Id"
	HeaderCorrelationID = "X-Pcm-Correlation-Id"
	HeaderSignature     = "X-Hub-Signature-256"
)

// WebhookPublisher POSTs collection lifecycle events to one endpoint. A non-2xx answer is an
// error, which leaves the outbox row pending for the dispatcher's next attempt.
type WebhookPublisher struct {
	url    string
	secret []byte
	client *http.Client
}

var _ ports.EventPublisher = (*WebhookPublisher)(nil)

func NewWebhookPublisher(url, secret string, timeout time.Duration) *WebhookPublisher {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookPublisher{url: url, secret: []byte(secret), client: &http.Client{Timeout: timeout}}
}

func (p *WebhookPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event %s: %w", event.EventType, event.EventID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	for k, v := range p.headers(topic, event, body) {
		req.Header[k] = v
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s for collection %s: %w", event.EventType, event.AggregateID, err)
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg := strings.TrimSpace(string(snippet)); msg != "" {
			return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *WebhookPublisher) headers(topic string, event domain.EventEnvelope, body []byte) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", webhookUserAgent)
	h.Set(HeaderTopic, topic)
	h.Set(HeaderEventType, event.EventType)
	h.Set(HeaderEventID, event.EventID)
	h.Set(HeaderSchemaVersion, strconv.Itoa(event.SchemaVersion))
	if event.AggregateType == "collection" {
		h.Set(HeaderCollectionID, event.AggregateID)
	}
	if event.RequestID != "" {
		h.Set(HeaderRequestID, event.RequestID)
	}
	if event.CorrelationID != "" {
		h.Set(HeaderCorrelationID, event.CorrelationID)
	}
	if len(p.secret) > 0 {
		h.Set(HeaderSignature, "sha256="+Sign(p.secret, body))
	}
	return h
}

// Sign returns the hex HMAC-SHA256 of body, the value receivers compare against the
// signature header after stripping its "sha256=" prefix.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
