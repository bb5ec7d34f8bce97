// Package webhook posts chat-ops messages to incoming-webhook URLs.
package webhook

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker"

	"complaint_triage/core/port/out"
	"complaint_triage/pkg/httputil"
	"complaint_triage/pkg/logger"
	"complaint_triage/pkg/resilience"
)

// Poster implements out.WebhookPoster over a pooled client and a breaker.
type Poster struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

var _ out.WebhookPoster = (*Poster)(nil)

// NewPoster creates a poster. A nil client uses httputil.WebhookClientConfig.
func NewPoster(client *http.Client, log *logger.Logger) *Poster {
	if client == nil {
		client = httputil.NewClient(httputil.WebhookClientConfig())
	}
	bc := resilience.DefaultBreakerConfig("slack-webhook")
	bc.ConsecutiveFailures = 3
	return &Poster{
		client:  client,
		breaker: resilience.NewBreaker(bc, log),
	}
}

// PostJSON implements out.WebhookPoster. Non-retryable status codes come
// back as resilience.Permanent so the notifier stops retrying.
func (p *Poster) PostJSON(ctx context.Context, url string, payload any) error {
	_, err := resilience.Call(p.breaker, func() (struct{}, error) {
		return struct{}{}, httputil.PostJSON(ctx, p.client, url, payload)
	})
	if err == nil {
		return nil
	}

	var se *httputil.StatusError
	if errors.As(err, &se) && !se.Retryable() {
		return &resilience.Permanent{Err: err}
	}
	return err
}
