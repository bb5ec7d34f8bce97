package mail

import (
	"bytes"
	"context"
	"errors"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"complaint_triage/core/port/out"
	"complaint_triage/pkg/resilience"
)

type fakeDialer struct {
	sent  []*gomail.Message
	err   error
	delay time.Duration
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func newTestSender(d *fakeDialer) *SMTPSender {
	return &SMTPSender{dialer: d, from: "support@company.com", name: "Customer Support"}
}

func TestSMTPSender_Send(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSender(d)

	err := s.Send(context.Background(), &out.MailMessage{
		To:      []string{"john@x.com"},
		Subject: "Re: Unusual charge",
		Body:    "Dear John Doe,\n\nThank you.",
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"john@x.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Re: Unusual charge"}, m.GetHeader("Subject"))
	assert.Contains(t, m.GetHeader("From")[0], "support@company.com")

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/plain")
	assert.Contains(t, buf.String(), "Dear John Doe,")
}

func TestSMTPSender_Errors(t *testing.T) {
	t.Run("no recipient is permanent", func(t *testing.T) {
		err := newTestSender(&fakeDialer{}).Send(context.Background(), &out.MailMessage{Subject: "x"})
		var perm *resilience.Permanent
		assert.ErrorAs(t, err, &perm)
	})

	t.Run("5xx reply is permanent", func(t *testing.T) {
		d := &fakeDialer{err: &textproto.Error{Code: 550, Msg: "mailbox unavailable"}}
		err := newTestSender(d).Send(context.Background(), &out.MailMessage{To: []string{"a@b.c"}})
		var perm *resilience.Permanent
		assert.ErrorAs(t, err, &perm)
	})

	t.Run("4xx reply is retryable", func(t *testing.T) {
		d := &fakeDialer{err: &textproto.Error{Code: 421, Msg: "try later"}}
		err := newTestSender(d).Send(context.Background(), &out.MailMessage{To: []string{"a@b.c"}})
		require.Error(t, err)
		var perm *resilience.Permanent
		assert.False(t, errors.As(err, &perm))
	})

	t.Run("context bounds the wait", func(t *testing.T) {
		d := &fakeDialer{delay: time.Second}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := newTestSender(d).Send(ctx, &out.MailMessage{To: []string{"a@b.c"}})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{Host: "smtp.x.com"}.Enabled())
	assert.True(t, Config{Host: "smtp.x.com", From: "a@b.c"}.Enabled())
}
