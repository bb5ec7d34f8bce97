// Package extraction pulls structured entities out of complaint text.
package extraction

import (
	"regexp"
	"strings"

	"complaint_triage/core/domain"
)

// =============================================================================
// Entity Extractor
// =============================================================================

// Extractor matches an ordered pattern list per entity kind. For each kind
// the first pattern that matches wins; kinds with no match are omitted.
type Extractor struct {
	rules []entityRule
}

type entityRule struct {
	kind     domain.EntityKind
	patterns []*regexp.Regexp
	format   func(string) string
}

var defaultExtractor = New()

// Extract runs the default extractor over text.
func Extract(text string) domain.Entities {
	return defaultExtractor.Extract(text)
}

// New creates an extractor with the built-in pattern set.
func New() *Extractor {
	return &Extractor{
		rules: []entityRule{
			{
				kind: domain.EntityOrderNumber,
				patterns: []*regexp.Regexp{
					regexp.MustCompile(`(?i)\border\s*#\s*(\w+)`),
					regexp.MustCompile(`(?i)\border\s+(?:number|no\.?)\s*:?\s*#?\s*(\w+)`),
					regexp.MustCompile(`#(\w{6,})`),
					regexp.MustCompile(`(?i)\bref(?:erence)?\b\.?\s*[:#]\s*(\w+)`),
				},
			},
			{
				kind: domain.EntityProductName,
				patterns: []*regexp.Regexp{
					regexp.MustCompile(`(?i)\bproduct(?:\s+name)?\s*:\s*([^\n,.;]+)`),
				},
				format: strings.TrimSpace,
			},
			{
				kind: domain.EntityAmount,
				patterns: []*regexp.Regexp{
					regexp.MustCompile(`\$(\d+(?:\.\d{2})?)`),
				},
				format: func(v string) string { return "$" + v },
			},
			{
				// North-American numbers, optional +1 and separators.
				kind: domain.EntityPhoneNumber,
				patterns: []*regexp.Regexp{
					regexp.MustCompile(`(?:^|[^\w(+#])((?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4})(?:\D|$)`),
				},
			},
			{
				kind: domain.EntityAccountNumber,
				patterns: []*regexp.Regexp{
					regexp.MustCompile(`(?i)\baccount\s*(?:number|no\.?|id|#)\s*:?\s*#?\s*([A-Za-z0-9-]{4,})`),
				},
			},
		},
	}
}

// Extract returns every entity kind found in text. It never fails.
func (e *Extractor) Extract(text string) domain.Entities {
	entities := make(domain.Entities)
	if strings.TrimSpace(text) == "" {
		return entities
	}

	for _, rule := range e.rules {
		for _, p := range rule.patterns {
			m := p.FindStringSubmatch(text)
			if len(m) < 2 || m[1] == "" {
				continue
			}
			v := m[1]
			if rule.format != nil {
				v = rule.format(v)
			}
			if v == "" {
				continue
			}
			entities[rule.kind] = v
			break
		}
	}

	// "Order # 5551234567" 같은 주문번호는 전화번호로 보지 않음
	if phone, ok := entities[domain.EntityPhoneNumber]; ok {
		if order, ok := entities[domain.EntityOrderNumber]; ok && digits(phone) == digits(order) {
			delete(entities, domain.EntityPhoneNumber)
		}
	}
	return entities
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Enrich fills kinds missing from existing with matches from text.
// Values already present in existing are kept.
func (e *Extractor) Enrich(existing domain.Entities, text string) domain.Entities {
	return existing.Merge(e.Extract(text))
}
