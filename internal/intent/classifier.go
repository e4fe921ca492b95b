// Package intent classifies patron messages with a language model.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"libchat/internal/config"
	"libchat/internal/logger"
	"libchat/internal/metrics"
	"libchat/internal/models"
)

var (
	codeFenceRe  = regexp.MustCompile("(?s)^\\s*```[a-zA-Z]*\\s*(.*?)\\s*```\\s*$")
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// Classifier turns free text into an IntentResult. It never returns an error:
// every failure degrades to models.FallbackIntent.
type Classifier struct {
	provider Provider
	timeout  time.Duration
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewClassifier builds a classifier. provider may be nil, in which case every call degrades.
func NewClassifier(provider Provider, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Classifier {
	if timeout <= 0 {
		timeout = config.DefaultProviderTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Classifier{provider: provider, timeout: timeout, log: log.WithModule("intent"), metrics: m}
}

// ProviderName reports the selected provider, or "none".
func (c *Classifier) ProviderName() string {
	if c.provider == nil {
		return "none"
	}
	return c.provider.Name()
}

// Analyze classifies message; history is optional prior conversation text.
func (c *Classifier) Analyze(ctx context.Context, message, history string) (result models.IntentResult) {
	providerName := c.ProviderName()
	if c.provider == nil {
		c.metrics.RecordClassification(providerName, "no_provider", 0)
		c.log.WarnContext(ctx, "intent classification skipped", "reason", ErrNoProvider.Error())
		return models.FallbackIntent()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.metrics.RecordClassification(providerName, "provider_error", time.Since(start).Seconds())
			c.log.ErrorContext(ctx, "intent provider panicked", "provider", providerName, "panic", fmt.Sprint(r))
			result = models.FallbackIntent()
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.provider.Complete(callCtx, buildPrompt(message, history))
	elapsed := time.Since(start).Seconds()
	if err != nil {
		outcome := "provider_error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		c.metrics.RecordClassification(providerName, outcome, elapsed)
		c.log.WithError(err).WarnContext(ctx, "intent provider call failed", "provider", providerName, "outcome", outcome)
		return models.FallbackIntent()
	}

	parsed, err := ParseReply(raw)
	if err != nil {
		c.metrics.RecordClassification(providerName, "parse_error", elapsed)
		c.log.WithError(err).WarnContext(ctx, "intent reply not parseable", "provider", providerName, "reply_length", len(raw))
		return models.FallbackIntent()
	}

	c.metrics.RecordClassification(providerName, "success", elapsed)
	c.log.DebugContext(ctx, "intent classified", "provider", providerName, "intent", string(parsed.Intent))
	return parsed
}

type rawReply struct {
	Intent   string `json:"intent"`
	Keywords string `json:"keywords"`
	Response string `json:"response"`
}

// ParseReply decodes a model reply into an IntentResult. Code fences are stripped first;
// if the remainder is not JSON the first {...} span is tried.
func ParseReply(raw string) (models.IntentResult, error) {
	text := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if text == "" {
		return models.IntentResult{}, errors.New("empty reply")
	}

	var reply rawReply
	if err := json.Unmarshal([]byte(text), &reply); err != nil {
		obj := jsonObjectRe.FindString(text)
		if obj == "" {
			return models.IntentResult{}, fmt.Errorf("decode intent reply: %w", err)
		}
		if err := json.Unmarshal([]byte(obj), &reply); err != nil {
			return models.IntentResult{}, fmt.Errorf("decode intent reply: %w", err)
		}
	}

	result := models.IntentResult{
		Intent:   models.ParseIntent(reply.Intent),
		Keywords: strings.TrimSpace(reply.Keywords),
		Response: strings.TrimSpace(reply.Response),
	}
	if !result.Intent.NeedsKeywords() {
		result.Keywords = ""
	}
	return result, nil
}
