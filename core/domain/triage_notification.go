package domain

// NotificationChannel identifies one independent delivery path.
type NotificationChannel string

const (
	ChannelAcknowledgment NotificationChannel = "email_ack"
	ChannelTeamEmail      NotificationChannel = "team_email"
	ChannelSlack          NotificationChannel = "slack"
	ChannelEscalation     NotificationChannel = "escalation"
)

// NotificationOutcome holds per-channel success flags. It is reported and
// logged only; persistence never depends on it.
type NotificationOutcome struct {
	EmailAckSent   bool `json:"email_ack_sent"`
	TeamEmailSent  bool `json:"team_email_sent"`
	SlackSent      bool `json:"slack_sent"`
	EscalationSent bool `json:"escalation_sent"`

	// Attempted records which channels were tried at all.
	Attempted []NotificationChannel `json:"attempted,omitempty"`
	// Errors holds the failure text per channel.
	Errors map[NotificationChannel]string `json:"errors,omitempty"`
}

// WasAttempted reports whether ch was tried.
func (o *NotificationOutcome) WasAttempted(ch NotificationChannel) bool {
	for _, a := range o.Attempted {
		if a == ch {
			return true
		}
	}
	return false
}

// Record stores the result of one channel.
func (o *NotificationOutcome) Record(ch NotificationChannel, err error) {
	o.Attempted = append(o.Attempted, ch)
	ok := err == nil
	switch ch {
	case ChannelAcknowledgment:
		o.EmailAckSent = ok
	case ChannelTeamEmail:
		o.TeamEmailSent = ok
	case ChannelSlack:
		o.SlackSent = ok
	case ChannelEscalation:
		o.EscalationSent = ok
	}
	if err != nil {
		if o.Errors == nil {
			o.Errors = make(map[NotificationChannel]string)
		}
		o.Errors[ch] = err.Error()
	}
}

// AnySent reports whether at least one channel delivered.
func (o *NotificationOutcome) AnySent() bool {
	return o.EmailAckSent || o.TeamEmailSent || o.SlackSent || o.EscalationSent
}
