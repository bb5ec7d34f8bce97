package classification

import (
	"regexp"
	"strings"

	"complaint_triage/core/domain"
)

// =============================================================================
// Keyword Rule Classifier (fallback path)
// =============================================================================

// KeywordClassifier is the deterministic substitute for the classification
// service. Families are evaluated in order and the first hit wins.
type KeywordClassifier struct {
	categories []keywordFamily[domain.Category]
	priorities []keywordFamily[domain.Priority]
	sentiments []keywordFamily[domain.Sentiment]
}

type keywordFamily[T any] struct {
	value   T
	pattern *regexp.Regexp
}

// family compiles terms into one alternation. Terms match at a word start,
// so "charge" also hits "charged" and "charges". Terms ending in '.' must
// match the whole word ("sue." does not hit "suede").
func family[T any](value T, terms ...string) keywordFamily[T] {
	alts := make([]string, 0, len(terms))
	for _, t := range terms {
		if strings.HasSuffix(t, ".") {
			alts = append(alts, regexp.QuoteMeta(strings.TrimSuffix(t, "."))+`\b`)
			continue
		}
		alts = append(alts, regexp.QuoteMeta(t))
	}
	return keywordFamily[T]{
		value:   value,
		pattern: regexp.MustCompile(`\b(?:` + strings.Join(alts, "|") + `)`),
	}
}

// NewKeywordClassifier builds the rule set.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		categories: []keywordFamily[domain.Category]{
			family(domain.CategoryBilling, "bill", "charge", "payment", "invoice", "subscription", "fee"),
			family(domain.CategoryDefect, "broken", "defective", "not working", "malfunction", "faulty"),
			family(domain.CategoryRefund, "refund", "return", "cancel", "money back"),
			family(domain.CategoryTechnical, "technical", "bug", "error", "login", "log in.", "password", "crash"),
			family(domain.CategoryDelivery, "delivery", "delivered", "shipping", "shipment", "late.", "missing", "package"),
			family(domain.CategoryAccount, "account", "profile", "settings"),
		},
		priorities: []keywordFamily[domain.Priority]{
			family(domain.PriorityUrgent, "urgent", "immediately", "asap.", "critical", "unacceptable",
				"lawyer", "attorney", "sue.", "legal action", "fraud", "financial loss"),
			family(domain.PriorityHigh, "broken", "not working", "frustrated", "angry", "still waiting"),
			family(domain.PriorityLow, "question", "info", "help", "wondering", "curious"),
		},
		sentiments: []keywordFamily[domain.Sentiment]{
			family(domain.SentimentAngry, "angry", "furious", "unacceptable", "terrible", "outraged", "ridiculous"),
			family(domain.SentimentFrustrated, "frustrat", "annoy", "disappoint", "fed up"),
			family(domain.SentimentSatisfied, "thank", "good", "satisfied", "happy", "great", "appreciate"),
		},
	}
}

// Classify runs the rules over the lower-cased subject and body.
func (k *KeywordClassifier) Classify(subject, body string) domain.ClassificationResult {
	text := strings.ToLower(subject + " " + body)

	category := firstMatch(k.categories, text, domain.CategoryGeneral)
	return domain.ClassificationResult{
		Category:        category,
		Priority:        firstMatch(k.priorities, text, domain.PriorityMedium),
		Sentiment:       firstMatch(k.sentiments, text, domain.SentimentNeutral),
		Entities:        domain.Entities{},
		Summary:         "Customer complaint regarding " + strings.ToLower(string(category)),
		SuggestedAction: "Review complaint and respond appropriately",
	}
}

func firstMatch[T any](families []keywordFamily[T], text string, def T) T {
	for _, f := range families {
		if f.pattern.MatchString(text) {
			return f.value
		}
	}
	return def
}

// DefaultResult is the neutral record used when nothing usable is known.
func DefaultResult() domain.ClassificationResult {
	return domain.ClassificationResult{
		CustomerName:    domain.UnknownCustomer,
		Category:        domain.CategoryGeneral,
		Priority:        domain.PriorityMedium,
		Sentiment:       domain.SentimentNeutral,
		Entities:        domain.Entities{},
		Summary:         "Unable to analyze complaint content",
		SuggestedAction: "Manual review required",
	}
}
