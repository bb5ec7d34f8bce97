package classification

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"complaint_triage/core/domain"
)

// =============================================================================
// Response Parser
// =============================================================================

var (
	ErrNoJSONObject = errors.New("no JSON object in response")
	ErrMissingField = errors.New("required field missing")
)

// ParseError is returned when the service text cannot be turned into a
// classification candidate.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse classification: %v: %s", e.Err, e.Field)
	}
	return fmt.Sprintf("parse classification: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParsedClassification is the service output before enum validation.
type ParsedClassification struct {
	CustomerName    string
	Category        string
	Priority        string
	Sentiment       string
	Entities        domain.Entities
	Summary         string
	SuggestedAction string
}

type responsePayload struct {
	CustomerName    *string        `json:"customer_name"`
	Category        *string        `json:"category"`
	Priority        *string        `json:"priority"`
	Sentiment       *string        `json:"sentiment"`
	KeyEntities     map[string]any `json:"key_entities"`
	Summary         string         `json:"summary"`
	SuggestedAction string         `json:"suggested_action"`
}

// ParseResponse extracts the first well-formed JSON object from raw and
// checks that category, priority and sentiment are present. Prose or code
// fences around the object are ignored.
func ParseResponse(raw string) (*ParsedClassification, error) {
	var (
		payload responsePayload
		found   bool
		lastErr error
	)

	for start := strings.IndexByte(raw, '{'); start >= 0; {
		if end := matchBrace(raw, start); end > start {
			var p responsePayload
			err := json.Unmarshal([]byte(raw[start:end+1]), &p)
			if err == nil {
				payload = p
				found = true
				break
			}
			lastErr = err
		}

		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	if !found {
		if lastErr != nil {
			return nil, &ParseError{Err: fmt.Errorf("%w: %v", ErrNoJSONObject, lastErr)}
		}
		return nil, &ParseError{Err: ErrNoJSONObject}
	}

	required := []struct {
		name string
		v    *string
	}{
		{"category", payload.Category},
		{"priority", payload.Priority},
		{"sentiment", payload.Sentiment},
	}
	for _, f := range required {
		if f.v == nil || strings.TrimSpace(*f.v) == "" {
			return nil, &ParseError{Field: f.name, Err: ErrMissingField}
		}
	}

	out := &ParsedClassification{
		Category:        strings.TrimSpace(*payload.Category),
		Priority:        strings.TrimSpace(*payload.Priority),
		Sentiment:       strings.TrimSpace(*payload.Sentiment),
		Entities:        entitiesFromPayload(payload.KeyEntities),
		Summary:         strings.TrimSpace(payload.Summary),
		SuggestedAction: strings.TrimSpace(payload.SuggestedAction),
	}
	if payload.CustomerName != nil {
		out.CustomerName = strings.TrimSpace(*payload.CustomerName)
	}
	return out, nil
}

// matchBrace returns the index of the brace closing the object opened at
// start, honoring string literals and escapes. -1 when unbalanced.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// placeholder values the service uses for "not found"
var emptyEntityValues = map[string]struct{}{
	"":              {},
	"n/a":           {},
	"na":            {},
	"none":          {},
	"null":          {},
	"unknown":       {},
	"not mentioned": {},
	"if mentioned":  {},
	"not provided":  {},
}

func entitiesFromPayload(m map[string]any) domain.Entities {
	entities := make(domain.Entities)
	for k, v := range m {
		kind := domain.EntityKind(strings.ToLower(strings.TrimSpace(k)))
		if !kind.Valid() {
			continue
		}

		var s string
		switch val := v.(type) {
		case string:
			s = strings.TrimSpace(val)
		case float64:
			s = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			continue
		}
		if _, skip := emptyEntityValues[strings.ToLower(s)]; skip {
			continue
		}
		entities[kind] = s
	}
	return entities
}
