package domain

import (
	"strings"
	"time"
)

// Submission is an unclassified complaint as handed to the pipeline by an
// intake surface (mail poller, web form, queue).
type Submission struct {
	Key           string    `json:"key" validate:"required,max=255"`
	CustomerName  string    `json:"customer_name" validate:"max=255"`
	CustomerEmail string    `json:"customer_email" validate:"required,email,max=320"`
	Sender        string    `json:"sender,omitempty"`
	Subject       string    `json:"subject" validate:"required,max=998"`
	Body          string    `json:"body" validate:"required"`
	Channel       Channel   `json:"channel,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

// Normalize trims fields and fills defaults that do not affect validation.
func (s *Submission) Normalize(now time.Time) {
	s.Key = strings.TrimSpace(s.Key)
	s.CustomerName = strings.TrimSpace(s.CustomerName)
	s.CustomerEmail = strings.TrimSpace(s.CustomerEmail)
	s.Subject = strings.TrimSpace(s.Subject)
	s.Body = strings.TrimSpace(s.Body)
	if s.Channel == "" {
		s.Channel = ChannelAPI
	}
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = now
	}
	if s.Sender == "" {
		if s.CustomerName != "" {
			s.Sender = s.CustomerName + " <" + s.CustomerEmail + ">"
		} else {
			s.Sender = s.CustomerEmail
		}
	}
}

// NewComplaint builds the pre-classification record for s.
func (s *Submission) NewComplaint() *Complaint {
	return &Complaint{
		Key:           s.Key,
		CustomerName:  s.CustomerName,
		CustomerEmail: s.CustomerEmail,
		Subject:       s.Subject,
		Body:          s.Body,
		Channel:       s.Channel,
		ReceivedAt:    s.ReceivedAt,
		Status:        StatusNew,
	}
}

// SubmissionFromComplaint rebuilds the classifier input for a stored record.
func SubmissionFromComplaint(c *Complaint) *Submission {
	return &Submission{
		Key:           c.Key,
		CustomerName:  c.CustomerName,
		CustomerEmail: c.CustomerEmail,
		Sender:        c.Sender(),
		Subject:       c.Subject,
		Body:          c.Body,
		Channel:       c.Channel,
		ReceivedAt:    c.ReceivedAt,
	}
}
