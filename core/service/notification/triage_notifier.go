// Package notification delivers the acknowledgment, team, escalation and
// chat-ops messages for a routed complaint.
package notification

import (
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"complaint_triage/core/domain"
	"complaint_triage/core/port/out"
	"complaint_triage/pkg/logger"
	"complaint_triage/pkg/resilience"
)

var (
	ErrMailDisabled    = errors.New("mail sender not configured")
	ErrNoRecipient     = errors.New("no recipient address")
	ErrWebhookDisabled = errors.New("slack webhook not configured")
)

// Config tunes delivery.
type Config struct {
	// Timeout bounds each channel, retries included.
	Timeout         time.Duration
	SlackWebhookURL string
	Retry           resilience.RetryPolicy
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Retry.Attempts <= 0 {
		c.Retry = resilience.RetryPolicy{Attempts: 2, BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}
	}
	return c
}

// Options adjusts a single fan-out.
type Options struct {
	// SkipAcknowledgment suppresses the customer reply (reclassification).
	SkipAcknowledgment bool
	// SkipEscalation suppresses manager mail even when the decision asks for it.
	SkipEscalation bool
}

// Notifier fans a routed complaint out to every applicable channel. Channels
// are isolated: a failure or panic on one never affects the others.
type Notifier struct {
	mail    out.MailSender
	webhook out.WebhookPoster
	dir     domain.TeamDirectory
	cfg     Config
	now     func() time.Time
	log     *logger.Logger
}

// NewNotifier creates a notifier. mail and webhook may be nil; the matching
// channels then report failure without attempting delivery.
func NewNotifier(mail out.MailSender, webhook out.WebhookPoster, dir domain.TeamDirectory, cfg Config, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.Default()
	}
	return &Notifier{
		mail:    mail,
		webhook: webhook,
		dir:     dir,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		log:     log.WithField("component", "notifier"),
	}
}

// Notify delivers every channel the decision calls for and reports which
// succeeded. It never returns an error.
func (n *Notifier) Notify(ctx context.Context, d domain.RoutingDecision, c *domain.Complaint, opts Options) domain.NotificationOutcome {
	var outcome domain.NotificationOutcome
	view := newMailView(c, d)

	if !opts.SkipAcknowledgment {
		outcome.Record(domain.ChannelAcknowledgment, n.run(ctx, domain.ChannelAcknowledgment, func(ctx context.Context) error {
			return n.sendAcknowledgment(ctx, c, view)
		}))
	}

	outcome.Record(domain.ChannelTeamEmail, n.run(ctx, domain.ChannelTeamEmail, func(ctx context.Context) error {
		return n.sendMail(ctx, d.TeamContact, TeamSubject(c, d.Priority), teamTemplate, view)
	}))

	if n.cfg.SlackWebhookURL != "" && d.Priority.IsPageable() {
		outcome.Record(domain.ChannelSlack, n.run(ctx, domain.ChannelSlack, func(ctx context.Context) error {
			return n.sendSlack(ctx, c, d)
		}))
	}

	if d.Has(domain.EscalateManager) && !opts.SkipEscalation {
		outcome.Record(domain.ChannelEscalation, n.run(ctx, domain.ChannelEscalation, func(ctx context.Context) error {
			return n.sendEscalation(ctx, c, d.Priority, view)
		}))
	}

	n.log.WithContext(ctx).
		WithField("complaint_id", c.ID).
		Info("notifications sent - ack: %t, team: %t, slack: %t, escalation: %t",
			outcome.EmailAckSent, outcome.TeamEmailSent, outcome.SlackSent, outcome.EscalationSent)
	return outcome
}

// Escalate sends the manager escalation for c outside the routing fan-out.
func (n *Notifier) Escalate(ctx context.Context, c *domain.Complaint) error {
	d := domain.RoutingDecision{
		AssignedTeam: c.AssignedTeam,
		Priority:     c.Priority,
	}
	return n.run(ctx, domain.ChannelEscalation, func(ctx context.Context) error {
		return n.sendEscalation(ctx, c, c.Priority, newMailView(c, d))
	})
}

// run executes one channel under its own timeout. Panics become errors.
func (n *Notifier) run(ctx context.Context, ch domain.NotificationChannel, fn func(ctx context.Context) error) (err error) {
	chCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panic: %v", ch, r)
		}
		if err != nil {
			n.log.WithContext(ctx).WithError(err).WithField("channel", string(ch)).Warn("notification failed")
		}
	}()

	return resilience.Retry(chCtx, n.cfg.Retry, fn)
}

func (n *Notifier) sendAcknowledgment(ctx context.Context, c *domain.Complaint, view mailView) error {
	return n.sendMail(ctx, c.CustomerEmail, AcknowledgmentSubject(c), ackTemplate, view)
}

func (n *Notifier) sendEscalation(ctx context.Context, c *domain.Complaint, p domain.Priority, view mailView) error {
	view.Reason = EscalationReason(p)
	view.Team = domain.TeamManagement
	return n.sendMail(ctx, n.dir.Manager, EscalationSubject(c, p), teamTemplate, view)
}

func (n *Notifier) sendMail(ctx context.Context, to, subject string, tmpl *template.Template, view mailView) error {
	if n.mail == nil {
		return &resilience.Permanent{Err: ErrMailDisabled}
	}
	if to == "" {
		return &resilience.Permanent{Err: ErrNoRecipient}
	}
	body, err := render(tmpl, view)
	if err != nil {
		return &resilience.Permanent{Err: fmt.Errorf("render %s: %w", tmpl.Name(), err)}
	}
	return n.mail.Send(ctx, &out.MailMessage{
		To:      []string{to},
		Subject: subject,
		Body:    body,
	})
}

func (n *Notifier) sendSlack(ctx context.Context, c *domain.Complaint, d domain.RoutingDecision) error {
	if n.webhook == nil {
		return &resilience.Permanent{Err: ErrWebhookDisabled}
	}
	return n.webhook.PostJSON(ctx, n.cfg.SlackWebhookURL, BuildSlackMessage(c, d, n.now()))
}
