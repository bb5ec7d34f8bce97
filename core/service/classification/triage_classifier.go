// Package classification turns complaint text into a validated classification,
// using the external classification service when it is usable and keyword
// rules when it is not.
package classification

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"complaint_triage/core/domain"
	"complaint_triage/core/port/out"
	"complaint_triage/core/service/extraction"
	"complaint_triage/pkg/logger"
	"complaint_triage/pkg/metrics"
)

// Config tunes the primary path.
type Config struct {
	// Timeout bounds one call to the classification service.
	Timeout time.Duration
	// MaxInputChars caps the body sent to the service.
	MaxInputChars int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = DefaultMaxInputChars
	}
	return c
}

// Metric names recorded by the classifier.
const (
	MetricPrimaryLatency  = "classifier.primary"
	MetricFallbackLatency = "classifier.fallback"
	MetricSourcePrefix    = "classifier.source."
	MetricFallbackPrefix  = "classifier.fallback_reason."
)

// Classifier never fails: every error on the primary path degrades to the
// keyword rules and is reported through ClassificationOutcome.
type Classifier struct {
	llm       out.LLMClient
	rules     *KeywordClassifier
	extractor *extraction.Extractor
	metrics   *metrics.Registry
	log       *logger.Logger
	cfg       Config
}

// NewClassifier creates a classifier. llm may be nil, in which case every
// complaint takes the fallback path.
func NewClassifier(llm out.LLMClient, cfg Config, reg *metrics.Registry, log *logger.Logger) *Classifier {
	if reg == nil {
		reg = metrics.NewRegistry(0)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Classifier{
		llm:       llm,
		rules:     NewKeywordClassifier(),
		extractor: extraction.New(),
		metrics:   reg,
		log:       log.WithField("component", "classifier"),
		cfg:       cfg.withDefaults(),
	}
}

// Metrics exposes the latency and source counters.
func (c *Classifier) Metrics() *metrics.Registry {
	return c.metrics
}

// Classify produces a validated classification for sub.
func (c *Classifier) Classify(ctx context.Context, sub *domain.Submission) domain.ClassificationOutcome {
	start := time.Now()

	outcome := c.classifyPrimary(ctx, sub)
	if outcome.IsFallback() {
		c.log.WithContext(ctx).
			WithField("key", sub.Key).
			WithField("reason", string(outcome.Reason)).
			Warn("using fallback classification")
		outcome.Result = c.fallback(sub)
	}

	outcome.Result = c.postProcess(outcome.Result, sub)
	outcome.Latency = time.Since(start)

	if outcome.IsFallback() {
		c.metrics.Observe(MetricFallbackLatency, outcome.Latency)
		c.metrics.Inc(MetricFallbackPrefix + string(outcome.Reason))
	} else {
		c.metrics.Observe(MetricPrimaryLatency, outcome.Latency)
	}
	c.metrics.Inc(MetricSourcePrefix + string(outcome.Source))

	c.log.WithContext(ctx).
		WithDuration(outcome.Latency).
		Debug("classified %s: %s / %s / %s (%s)", sub.Key,
			outcome.Result.Category, outcome.Result.Priority, outcome.Result.Sentiment, outcome.Source)
	return outcome
}

func fallbackOutcome(reason domain.FallbackReason, raw string) domain.ClassificationOutcome {
	return domain.ClassificationOutcome{
		Source:      domain.SourceFallback,
		Reason:      reason,
		RawResponse: raw,
	}
}

func (c *Classifier) classifyPrimary(ctx context.Context, sub *domain.Submission) domain.ClassificationOutcome {
	if c.llm == nil {
		return fallbackOutcome(domain.FallbackNotConfigured, "")
	}

	raw, err := c.complete(ctx, sub)
	if err != nil {
		c.log.WithContext(ctx).WithError(err).Warn("classification service call failed")
		return fallbackOutcome(domain.FallbackServiceUnavailable, "")
	}

	parsed, err := ParseResponse(raw)
	if err != nil {
		c.log.WithContext(ctx).WithError(err).Warn("classification response unusable")
		return fallbackOutcome(domain.FallbackParseFailure, raw)
	}

	result, err := validate(parsed)
	if err != nil {
		c.log.WithContext(ctx).WithError(err).Warn("classification response failed validation")
		return fallbackOutcome(domain.FallbackValidationFailure, raw)
	}

	return domain.ClassificationOutcome{
		Result:      result,
		Source:      domain.SourcePrimary,
		RawResponse: raw,
	}
}

// complete calls the service under the configured timeout. A panicking
// client is reported as an ordinary error.
func (c *Classifier) complete(ctx context.Context, sub *domain.Submission) (raw string, err error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classification client panic: %v", r)
		}
	}()

	return c.llm.CompleteWithSystem(callCtx, SystemPrompt, BuildInput(sub, c.cfg.MaxInputChars))
}

var errInvalidEnum = errors.New("value outside enumeration")

// validate maps the parsed strings onto the closed enumerations. Any value
// that does not name a member rejects the whole response.
func validate(p *ParsedClassification) (domain.ClassificationResult, error) {
	category, okC := domain.ParseCategory(p.Category)
	priority, okP := domain.ParsePriority(p.Priority)
	sentiment, okS := domain.ParseSentiment(p.Sentiment)

	switch {
	case !okC:
		return domain.ClassificationResult{}, fmt.Errorf("%w: category %q", errInvalidEnum, p.Category)
	case !okP:
		return domain.ClassificationResult{}, fmt.Errorf("%w: priority %q", errInvalidEnum, p.Priority)
	case !okS:
		return domain.ClassificationResult{}, fmt.Errorf("%w: sentiment %q", errInvalidEnum, p.Sentiment)
	}

	return domain.ClassificationResult{
		Category:        category,
		Priority:        priority,
		Sentiment:       sentiment,
		Entities:        p.Entities,
		Summary:         p.Summary,
		SuggestedAction: p.SuggestedAction,
		CustomerName:    p.CustomerName,
	}, nil
}

func (c *Classifier) fallback(sub *domain.Submission) (result domain.ClassificationResult) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("keyword classifier panic: %v", r)
			result = DefaultResult()
		}
	}()
	return c.rules.Classify(sub.Subject, sub.Body)
}

// postProcess clamps enums, merges extracted entities and settles the
// customer name. It runs on both paths.
func (c *Classifier) postProcess(r domain.ClassificationResult, sub *domain.Submission) domain.ClassificationResult {
	if !r.Category.Valid() {
		r.Category = domain.CategoryGeneral
	}
	if !r.Priority.Valid() {
		r.Priority = domain.PriorityMedium
	}
	if !r.Sentiment.Valid() {
		r.Sentiment = domain.SentimentNeutral
	}

	r.Entities = c.extractor.Enrich(r.Entities, sub.Subject+" "+sub.Body)

	if r.Summary == "" {
		r.Summary = "Customer complaint regarding " + strings.ToLower(string(r.Category))
	}
	if r.SuggestedAction == "" {
		r.SuggestedAction = "Review complaint and respond appropriately"
	}

	r.CustomerName = resolveCustomerName(r.CustomerName, sub)
	return r
}

// =============================================================================
// Customer Name
// =============================================================================

func resolveCustomerName(fromService string, sub *domain.Submission) string {
	if n := strings.TrimSpace(fromService); n != "" && !strings.EqualFold(n, domain.UnknownCustomer) {
		return n
	}
	if n := NameFromSender(sub.Sender); n != domain.UnknownCustomer {
		return n
	}
	if n := strings.TrimSpace(sub.CustomerName); len(n) > 2 {
		return n
	}
	return domain.UnknownCustomer
}

var (
	angleAddr  = regexp.MustCompile(`<[^>]*>`)
	honorific  = regexp.MustCompile(`(?i)^(?:mrs|mr|ms|miss|dr|prof)(?:\.\s*|\s+)`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NameFromSender derives a display name from a "Name <addr>" sender string.
// Quotes around the display name are dropped, bare addresses yield Unknown.
func NameFromSender(sender string) string {
	name := angleAddr.ReplaceAllString(sender, "")
	name = strings.Trim(strings.TrimSpace(name), `"'`)
	name = honorific.ReplaceAllString(strings.TrimSpace(name), "")
	name = whitespace.ReplaceAllString(strings.TrimSpace(name), " ")

	if strings.Contains(name, "@") || len(name) <= 2 {
		return domain.UnknownCustomer
	}
	return name
}
