package classification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaint_triage/core/domain"
	"complaint_triage/pkg/logger"
	"complaint_triage/pkg/metrics"
)

type stubLLM struct {
	resp    string
	err     error
	block   bool
	panics  bool
	calls   int
	lastIn  string
	lastSys string
}

func (s *stubLLM) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	s.calls++
	s.lastSys = system
	s.lastIn = user
	if s.panics {
		panic("boom")
	}
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.resp, s.err
}

func newTestClassifier(llm *stubLLM) *Classifier {
	cfg := Config{Timeout: 50 * time.Millisecond}
	if llm == nil {
		return NewClassifier(nil, cfg, metrics.NewRegistry(10), logger.Nop())
	}
	return NewClassifier(llm, cfg, metrics.NewRegistry(10), logger.Nop())
}

func unusualCharge() *domain.Submission {
	return &domain.Submission{
		Key:           "msg-1",
		CustomerEmail: "john@x.com",
		Sender:        "John Doe <john@x.com>",
		Subject:       "Unusual charge",
		Body:          "Charged $150 for a service I never ordered. Unacceptable.",
	}
}

func TestClassifier_FallbackOnServiceFailure(t *testing.T) {
	llm := &stubLLM{err: errors.New("connection refused")}
	c := newTestClassifier(llm)

	got := c.Classify(context.Background(), unusualCharge())

	assert.Equal(t, 1, llm.calls)
	assert.True(t, got.IsFallback())
	assert.Equal(t, domain.FallbackServiceUnavailable, got.Reason)
	assert.Equal(t, domain.CategoryBilling, got.Result.Category)
	assert.Equal(t, domain.PriorityUrgent, got.Result.Priority)
	assert.Equal(t, domain.SentimentAngry, got.Result.Sentiment)
	assert.Equal(t, "$150", got.Result.Entities[domain.EntityAmount])
	assert.Equal(t, "John Doe", got.Result.CustomerName)
	assert.Equal(t, "Customer complaint regarding billing issue", got.Result.Summary)
	assert.Equal(t, int64(1), c.Metrics().Counter(MetricFallbackPrefix+string(domain.FallbackServiceUnavailable)))
}

func TestClassifier_FallbackWhenNotConfigured(t *testing.T) {
	got := newTestClassifier(nil).Classify(context.Background(), unusualCharge())

	assert.Equal(t, domain.FallbackNotConfigured, got.Reason)
	assert.Equal(t, domain.CategoryBilling, got.Result.Category)
}

func TestClassifier_TimeoutIsBounded(t *testing.T) {
	llm := &stubLLM{block: true}
	c := newTestClassifier(llm)

	start := time.Now()
	got := c.Classify(context.Background(), unusualCharge())

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.FallbackServiceUnavailable, got.Reason)
}

func TestClassifier_PanickingClientFallsBack(t *testing.T) {
	got := newTestClassifier(&stubLLM{panics: true}).Classify(context.Background(), unusualCharge())
	assert.Equal(t, domain.FallbackServiceUnavailable, got.Reason)
}

func TestClassifier_Primary(t *testing.T) {
	llm := &stubLLM{resp: "Here is the analysis:\n```json\n" + `{
  "customer_name": "Johnny D",
  "category": "billing issue",
  "priority": "High",
  "sentiment": "Frustrated",
  "key_entities": {"amount": "$150.00", "order_number": "N/A", "product_name": "Premium plan"},
  "summary": "Customer disputes a $150 charge.",
  "suggested_action": "Verify the charge and refund if unauthorized."
}` + "\n```\nLet me know if you need more."}
	c := newTestClassifier(llm)

	got := c.Classify(context.Background(), unusualCharge())

	require.False(t, got.IsFallback())
	assert.Equal(t, domain.SourcePrimary, got.Source)
	assert.Equal(t, domain.CategoryBilling, got.Result.Category)
	assert.Equal(t, domain.PriorityHigh, got.Result.Priority)
	assert.Equal(t, domain.SentimentFrustrated, got.Result.Sentiment)
	// service value wins over the extractor's "$150"
	assert.Equal(t, "$150.00", got.Result.Entities[domain.EntityAmount])
	assert.Equal(t, "Premium plan", got.Result.Entities[domain.EntityProductName])
	_, hasOrder := got.Result.Entities[domain.EntityOrderNumber]
	assert.False(t, hasOrder)
	assert.Equal(t, "Johnny D", got.Result.CustomerName)
	assert.Equal(t, SystemPrompt, llm.lastSys)
	assert.Contains(t, llm.lastIn, "From: John Doe <john@x.com>")
}

func TestClassifier_UnknownNameFromServiceUsesSender(t *testing.T) {
	llm := &stubLLM{resp: `{"customer_name":"Unknown","category":"Delivery Problem","priority":"Medium","sentiment":"Neutral"}`}
	sub := unusualCharge()
	sub.Sender = `"Dr. Jane Roe" <jane@x.com>`

	got := newTestClassifier(llm).Classify(context.Background(), sub)

	assert.Equal(t, "Jane Roe", got.Result.CustomerName)
	assert.Equal(t, "Customer complaint regarding delivery problem", got.Result.Summary)
}

func TestClassifier_EnumsClosedUnderFailure(t *testing.T) {
	responses := []struct {
		name   string
		llm    *stubLLM
		reason domain.FallbackReason
	}{
		{"service error", &stubLLM{err: errors.New("503")}, domain.FallbackServiceUnavailable},
		{"prose only", &stubLLM{resp: "I cannot help with that."}, domain.FallbackParseFailure},
		{"broken json", &stubLLM{resp: `{"category": "Billing Issue", "priority": }`}, domain.FallbackParseFailure},
		{"missing sentiment", &stubLLM{resp: `{"category":"Billing Issue","priority":"High"}`}, domain.FallbackParseFailure},
		{"invented category", &stubLLM{resp: `{"category":"Complaints","priority":"High","sentiment":"Angry"}`}, domain.FallbackValidationFailure},
		{"invented priority", &stubLLM{resp: `{"category":"Billing Issue","priority":"P0","sentiment":"Angry"}`}, domain.FallbackValidationFailure},
	}

	bodies := []string{
		"",
		"Where is my package?",
		"My login keeps failing with error 500",
		"Thanks, great service!",
		strings.Repeat("x", 5000),
	}

	for _, r := range responses {
		for _, body := range bodies {
			t.Run(r.name, func(t *testing.T) {
				sub := &domain.Submission{Key: "k", CustomerEmail: "a@b.c", Subject: "s", Body: body}
				got := newTestClassifier(r.llm).Classify(context.Background(), sub)

				assert.Equal(t, r.reason, got.Reason)
				assert.True(t, got.Result.Category.Valid())
				assert.True(t, got.Result.Priority.Valid())
				assert.True(t, got.Result.Sentiment.Valid())
			})
		}
	}
}

func TestKeywordClassifier(t *testing.T) {
	k := NewKeywordClassifier()

	tests := []struct {
		subject, body string
		category      domain.Category
		priority      domain.Priority
		sentiment     domain.Sentiment
	}{
		{"Invoice", "My invoice shows a late fee", domain.CategoryBilling, domain.PriorityMedium, domain.SentimentNeutral},
		{"Kettle", "The kettle arrived broken and I'm frustrated", domain.CategoryDefect, domain.PriorityHigh, domain.SentimentFrustrated},
		{"Refund", "I'd like my money back please, thank you", domain.CategoryRefund, domain.PriorityMedium, domain.SentimentSatisfied},
		{"App", "Password reset gives an error", domain.CategoryTechnical, domain.PriorityMedium, domain.SentimentNeutral},
		{"Where", "My delivery is missing, I will contact my lawyer", domain.CategoryDelivery, domain.PriorityUrgent, domain.SentimentNeutral},
		{"Profile", "Quick question about profile settings", domain.CategoryAccount, domain.PriorityLow, domain.SentimentNeutral},
		{"Hello", "Just saying hi", domain.CategoryGeneral, domain.PriorityMedium, domain.SentimentNeutral},
		{"Suede", "Is this suede jacket in stock?", domain.CategoryGeneral, domain.PriorityMedium, domain.SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			got := k.Classify(tt.subject, tt.body)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.priority, got.Priority)
			assert.Equal(t, tt.sentiment, got.Sentiment)
		})
	}
}

func TestNameFromSender(t *testing.T) {
	tests := map[string]string{
		"John Doe <john@x.com>":       "John Doe",
		`"Jane Roe" <jane@x.com>`:     "Jane Roe",
		"Mrs. Ada Lovelace <a@b.com>": "Ada Lovelace",
		"dr smith <s@x.com>":          "smith",
		"Miss Jane Smith <j@x.com>":   "Jane Smith",
		"Prof. Alan Turing <a@x.com>": "Alan Turing",
		"Dr.Smith <d@x.com>":          "Smith",
		"Mr. John Doe <j@x.com>":      "John Doe",
		"Ms Kim <k@x.com>":            "Kim",
		"Drake Bell <d@x.com>":        "Drake Bell",
		"Missy Elliott <m@x.com>":     "Missy Elliott",
		"Profit Team <p@x.com>":       "Profit Team",
		"john@x.com":                  domain.UnknownCustomer,
		"<john@x.com>":                domain.UnknownCustomer,
		"Al <al@x.com>":               domain.UnknownCustomer,
		"":                            domain.UnknownCustomer,
	}
	for in, want := range tests {
		assert.Equal(t, want, NameFromSender(in), in)
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("skips malformed leading object", func(t *testing.T) {
		got, err := ParseResponse(`{oops} then {"category":"Account Issue","priority":"Low","sentiment":"Satisfied","summary":"has a } brace"}`)
		require.NoError(t, err)
		assert.Equal(t, "Account Issue", got.Category)
		assert.Equal(t, "has a } brace", got.Summary)
	})

	t.Run("no object", func(t *testing.T) {
		_, err := ParseResponse("nothing here")
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.ErrorIs(t, err, ErrNoJSONObject)
	})

	t.Run("missing field names the field", func(t *testing.T) {
		_, err := ParseResponse(`{"category":"Billing Issue","sentiment":"Angry"}`)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "priority", pe.Field)
		assert.ErrorIs(t, err, ErrMissingField)
	})

	t.Run("numeric entity", func(t *testing.T) {
		got, err := ParseResponse(`{"category":"x","priority":"y","sentiment":"z","key_entities":{"order_number":12345,"bogus":"v"}}`)
		require.NoError(t, err)
		assert.Equal(t, domain.Entities{domain.EntityOrderNumber: "12345"}, got.Entities)
	})
}

func TestBuildInput_Truncates(t *testing.T) {
	sub := &domain.Submission{Subject: "S", Sender: "a@b.c", Body: strings.Repeat("é", 3005)}
	in := BuildInput(sub, 3000)

	assert.True(t, strings.HasPrefix(in, "Subject: S\n\nFrom: a@b.c\n\nBody:\n"))
	assert.Contains(t, in, strings.Repeat("é", 3000)+"... [truncated]")
	assert.NotContains(t, in, strings.Repeat("é", 3001))
}
