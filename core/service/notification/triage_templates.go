package notification

import (
	"bytes"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"complaint_triage/core/domain"
)

const (
	bodyExcerptRunes    = 500
	slackSummaryRunes   = 200
	slackFooter         = "Complaint Triage Agent"
	fallbackDisplayName = "Valued Customer"
)

// =============================================================================
// Email bodies
// =============================================================================

var templateFuncs = template.FuncMap{
	"lower": strings.ToLower,
}

var ackTemplate = template.Must(template.New("ack").Funcs(templateFuncs).Parse(`Dear {{.Name}},

Thank you for contacting us regarding {{lower .Category}}. We have received your message and want to assure you that we take all customer concerns seriously.

Your complaint has been:
- Categorized as: {{.Category}}
- Priority Level: {{.Priority}}
- Assigned to: {{.Team}}

We will respond to your inquiry {{.Promise}} during business hours.

Your complaint reference: #{{.Ref}}

If you have any additional information or urgent concerns, please reply to this email or contact us directly.

Thank you for your patience and for choosing our services.

Best regards,
Customer Service Team`))

var teamTemplate = template.Must(template.New("team").Parse(`{{if .Reason}}ESCALATED COMPLAINT

Reason: {{.Reason}}

{{end}}NEW CUSTOMER COMPLAINT ASSIGNED

Complaint ID: #{{.Ref}}
Priority: {{.Priority}}
Category: {{.Category}}
Sentiment: {{.Sentiment}}
Assigned Team: {{.Team}}

Customer Details:
- Name: {{.Name}}
- Email: {{.Email}}

Subject: {{.Subject}}

Complaint Summary:
{{.Summary}}

Suggested Action:
{{.Action}}

Key Entities:
{{.Entities}}

Full Complaint Body:
{{.Excerpt}}

Please respond promptly based on the priority level.`))

type mailView struct {
	Ref       string
	Name      string
	Email     string
	Subject   string
	Category  domain.Category
	Priority  domain.Priority
	Sentiment domain.Sentiment
	Team      domain.Team
	Promise   string
	Summary   string
	Action    string
	Entities  string
	Excerpt   string
	Reason    string
}

func newMailView(c *domain.Complaint, d domain.RoutingDecision) mailView {
	name := c.CustomerName
	if name == "" || name == domain.UnknownCustomer {
		name = fallbackDisplayName
	}
	return mailView{
		Ref:       reference(c.ID),
		Name:      name,
		Email:     c.CustomerEmail,
		Subject:   orDefault(c.Subject, "No subject"),
		Category:  c.Category,
		Priority:  d.Priority,
		Sentiment: c.Sentiment,
		Team:      d.AssignedTeam,
		Promise:   d.Priority.ResponsePromise(),
		Summary:   orDefault(c.Summary, "No summary available"),
		Action:    orDefault(c.SuggestedAction, "Review and respond appropriately"),
		Entities:  formatEntities(c.Entities),
		Excerpt:   excerpt(orDefault(c.Body, "No body content"), bodyExcerptRunes),
	}
}

func render(t *template.Template, v mailView) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// AcknowledgmentSubject is the customer-facing reply subject.
func AcknowledgmentSubject(c *domain.Complaint) string {
	return "Re: " + orDefault(c.Subject, "Your Complaint")
}

func TeamSubject(c *domain.Complaint, p domain.Priority) string {
	return "New " + string(p) + " Priority Complaint - #" + reference(c.ID)
}

func EscalationSubject(c *domain.Complaint, p domain.Priority) string {
	return "ESCALATION: " + string(p) + " Priority Complaint - #" + reference(c.ID)
}

// EscalationReason is the line quoted at the top of manager mail.
func EscalationReason(p domain.Priority) string {
	return "Complaint escalated due to " + string(p) + " priority level"
}

func reference(id int64) string {
	if id <= 0 {
		return "TBD"
	}
	return strconv.FormatInt(id, 10)
}

func formatEntities(e domain.Entities) string {
	var lines []string
	for _, k := range domain.AllEntityKinds() {
		if v, ok := e[k]; ok && v != "" {
			lines = append(lines, "- "+string(k)+": "+v)
		}
	}
	if len(lines) == 0 {
		return "None identified"
	}
	return strings.Join(lines, "\n")
}

// excerpt caps s at n runes and marks the cut with "...".
func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// =============================================================================
// Slack payload
// =============================================================================

// SlackMessage is the incoming-webhook body.
type SlackMessage struct {
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments"`
}

type SlackAttachment struct {
	Color  string       `json:"color"`
	Fields []SlackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// PriorityEmoji prefixes the Slack headline.
func PriorityEmoji(p domain.Priority) string {
	switch p {
	case domain.PriorityUrgent:
		return "🚨"
	case domain.PriorityHigh:
		return "⚠️"
	case domain.PriorityLow:
		return "ℹ️"
	}
	return "📋"
}

// PriorityColor is the attachment side-bar color.
func PriorityColor(p domain.Priority) string {
	switch p {
	case domain.PriorityUrgent:
		return "danger"
	case domain.PriorityHigh:
		return "warning"
	case domain.PriorityLow:
		return "#36a64f"
	}
	return "good"
}

// BuildSlackMessage renders the page for a routed complaint.
func BuildSlackMessage(c *domain.Complaint, d domain.RoutingDecision, now time.Time) *SlackMessage {
	name := c.CustomerName
	if name == "" {
		name = domain.UnknownCustomer
	}
	return &SlackMessage{
		Text: PriorityEmoji(d.Priority) + " New " + string(d.Priority) + " Priority Complaint",
		Attachments: []SlackAttachment{{
			Color: PriorityColor(d.Priority),
			Fields: []SlackField{
				{Title: "Complaint ID", Value: "#" + reference(c.ID), Short: true},
				{Title: "Category", Value: string(c.Category), Short: true},
				{Title: "Priority", Value: string(d.Priority), Short: true},
				{Title: "Assigned Team", Value: string(d.AssignedTeam), Short: true},
				{Title: "Customer", Value: name + " (" + orDefault(c.CustomerEmail, "Unknown") + ")"},
				{Title: "Summary", Value: truncate(orDefault(c.Summary, "No summary available"), slackSummaryRunes)},
			},
			Footer: slackFooter,
			Ts:     now.Unix(),
		}},
	}
}
