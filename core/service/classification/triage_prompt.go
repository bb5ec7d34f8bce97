package classification

import (
	"strings"
	"unicode/utf8"

	"complaint_triage/core/domain"
)

// DefaultMaxInputChars bounds the body sent to the classification service.
const DefaultMaxInputChars = 3000

const truncationMarker = "... [truncated]"

// SystemPrompt is the fixed instruction contract for the classification service.
const SystemPrompt = `You are a customer complaint triage specialist. Analyze the complaint and return a JSON object with:

{
  "customer_name": "extracted name or 'Unknown'",
  "category": "one of: Billing Issue, Product Defect, Refund Request, Technical Support, Delivery Problem, Account Issue, General Inquiry",
  "priority": "one of: Urgent, High, Medium, Low",
  "sentiment": "one of: Angry, Frustrated, Neutral, Satisfied",
  "key_entities": {
    "order_number": "if mentioned",
    "product_name": "if mentioned",
    "amount": "if mentioned",
    "phone_number": "if mentioned",
    "account_number": "if mentioned"
  },
  "summary": "one-sentence summary of the issue",
  "suggested_action": "brief recommendation for the team"
}

Priority Rules:
- Urgent: Angry sentiment + keywords like "immediately", "unacceptable", "lawyer", "sue", "legal action", "financial loss", "fraud"
- High: Frustrated sentiment + time-sensitive issues, "broken", "not working", "urgent", "asap"
- Medium: Neutral requests with clear issues, standard complaints
- Low: General inquiries, satisfied customers seeking info, minor questions

Category Rules:
- Billing Issue: charges, payment, invoice, billing, subscription, fees
- Product Defect: broken, defective, malfunction, not working, quality issue
- Refund Request: refund, return, cancel, money back
- Technical Support: technical problem, bug, error, login issue, software
- Delivery Problem: shipping, delivery, late, missing, wrong address
- Account Issue: account access, password, profile, settings
- General Inquiry: questions, information, how-to, general help

Omit key_entities you cannot find. Respond with the JSON object only.
Be objective and professional. Extract all relevant information accurately.`

// BuildInput renders the user message for sub. The body is cut to maxChars
// runes and marked when truncated.
func BuildInput(sub *domain.Submission, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}

	subject := sub.Subject
	if subject == "" {
		subject = "No subject"
	}
	sender := sub.Sender
	if sender == "" {
		sender = sub.CustomerEmail
	}
	if sender == "" {
		sender = "Unknown sender"
	}
	body := sub.Body
	if body == "" {
		body = "No body"
	}
	if utf8.RuneCountInString(body) > maxChars {
		body = truncateRunes(body, maxChars) + truncationMarker
	}

	var b strings.Builder
	b.WriteString("Subject: ")
	b.WriteString(subject)
	b.WriteString("\n\nFrom: ")
	b.WriteString(sender)
	b.WriteString("\n\nBody:\n")
	b.WriteString(body)
	b.WriteString("\n\nPlease analyze this customer complaint and provide the JSON classification.")
	return b.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
