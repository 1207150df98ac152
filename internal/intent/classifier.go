// Package intent classifies free-text utterances for the booking flow.
// Deterministic pre-filters handle greetings, help requests and goodbyes
// without a model call; everything else goes to the LLM with a strict-JSON
// instruction template, falling back to keyword rules when the model cannot
// produce parseable output.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/slotwise/booking-assistant/internal/llm"
	"github.com/slotwise/booking-assistant/internal/retry"
	"github.com/slotwise/booking-assistant/pkg/logging"
)

type Intent string

const (
	IntentSchedule          Intent = "schedule"
	IntentCheckAvailability Intent = "check_availability"
	IntentModify            Intent = "modify"
	IntentCancel            Intent = "cancel"
	IntentClarification     Intent = "clarification"
	IntentGeneralInquiry    Intent = "general_inquiry"
)

// Greeting identifies which pre-filter short-circuited the turn.
type Greeting string

const (
	GreetingNone    Greeting = ""
	GreetingHello   Greeting = "hello"
	GreetingHelp    Greeting = "help"
	GreetingGoodbye Greeting = "goodbye"
)

// Source records how the classification was produced, for observability.
type Source string

const (
	SourcePrefilter Source = "prefilter"
	SourceCache     Source = "cache"
	SourceLLM       Source = "llm"
	SourceFallback  Source = "fallback"
)

// Result is one classification outcome. ContextDelta and Entities are
// merged into the conversation context by the caller, never applied here.
type Result struct {
	Intent         Intent
	Confidence     string
	ContextDelta   map[string]any
	Entities       map[string]any
	SimpleGreeting bool
	Greeting       Greeting
	Source         Source
}

// Exact-match greetings end the turn immediately.
var simpleGreetings = []string{
	"hi", "hello", "hey", "good morning", "good afternoon", "good evening", "howdy",
}

// Help and goodbye are substring matches.
var helpKeywords = []string{"help", "what can you do", "how does this work", "show me examples"}

var goodbyeKeywords = []string{"bye", "goodbye", "thanks", "thank you", "see you", "that's all"}

var scheduleKeywords = []string{"schedule", "book", "appointment", "meeting", "meet"}

var availabilityKeywords = []string{"available", "availability", "free", "open", "slots"}

// cacheKeyLen truncates the utterance for the cache key.
const cacheKeyLen = 100

// Classifier runs the pre-filter / model / keyword-fallback ladder. It
// never returns an error: an unusable model answer degrades to the keyword
// rules, and the caller only sees a Result.
type Classifier struct {
	client      llm.Client
	modelID     string
	cache       *resultCache
	maxAttempts int
	logger      *logging.Logger
}

// NewClassifier creates a classifier over the given completion client.
func NewClassifier(client llm.Client, modelID string, cacheSize, maxAttempts int, logger *logging.Logger) *Classifier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{
		client:      client,
		modelID:     modelID,
		cache:       newResultCache(cacheSize),
		maxAttempts: maxAttempts,
		logger:      logger.Component("intent"),
	}
}

// Classify resolves the utterance to an intent. Pre-filters win, then the
// cache, then the model, then keyword rules.
func (c *Classifier) Classify(ctx context.Context, utterance string) Result {
	msg := strings.ToLower(strings.TrimSpace(utterance))

	if g := matchGreeting(msg); g != GreetingNone {
		return Result{
			Intent:         IntentGeneralInquiry,
			SimpleGreeting: true,
			Greeting:       g,
			Source:         SourcePrefilter,
		}
	}

	key := truncate(msg, cacheKeyLen)
	if cached, ok := c.cache.get(key); ok {
		cached.Source = SourceCache
		return cached
	}

	result, err := c.classifyLLM(ctx, utterance)
	if err != nil {
		c.logger.Warn("intent model unavailable, using keyword rules", "error", err.Error())
		return c.keywordFallback(msg)
	}

	c.cache.put(key, result)
	return result
}

func matchGreeting(msg string) Greeting {
	for _, g := range simpleGreetings {
		if msg == g {
			return GreetingHello
		}
	}
	for _, kw := range helpKeywords {
		if strings.Contains(msg, kw) {
			return GreetingHelp
		}
	}
	for _, kw := range goodbyeKeywords {
		if strings.Contains(msg, kw) {
			return GreetingGoodbye
		}
	}
	return GreetingNone
}

const intentPromptTemplate = `Analyze the following user message and determine the user's intent for a calendar assistant. Always respond ONLY with a valid JSON object in this format:
{
  "intent": "schedule|check_availability|general_inquiry|modify|cancel",
  "confidence": "High|Medium|Low",
  "context_changes": {},
  "entities": {}
}
User Message: %q
`

type intentEnvelope struct {
	Intent         string         `json:"intent"`
	Confidence     string         `json:"confidence"`
	ContextChanges map[string]any `json:"context_changes"`
	Entities       map[string]any `json:"entities"`
}

// classifyLLM sends the fixed instruction template and retries on empty or
// unparseable output. Only a cleanly parsed answer is returned; everything
// else surfaces as an error so the caller can fall back.
func (c *Classifier) classifyLLM(ctx context.Context, utterance string) (Result, error) {
	prompt := fmt.Sprintf(intentPromptTemplate, utterance)

	var parsed intentEnvelope
	policy := retry.Policy{
		MaxAttempts: c.maxAttempts,
		BaseDelay:   100 * time.Millisecond,
	}
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		resp, err := c.client.Complete(ctx, llm.Request{
			Model:       c.modelID,
			Messages:    []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: prompt}},
			MaxTokens:   512,
			Temperature: 0,
		})
		if err != nil {
			return err
		}
		text := extractJSON(resp.Text)
		if text == "" {
			return fmt.Errorf("intent: empty model response (attempt %d)", attempt)
		}
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return fmt.Errorf("intent: model response parse (attempt %d): %w", attempt, err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Intent:       normalizeIntent(parsed.Intent),
		Confidence:   parsed.Confidence,
		ContextDelta: parsed.ContextChanges,
		Entities:     parsed.Entities,
		Source:       SourceLLM,
	}, nil
}

// keywordFallback is the rule layer behind an exhausted model: scheduling
// words beat availability words, and anything else asks for more detail.
func (c *Classifier) keywordFallback(msg string) Result {
	r := Result{Intent: IntentGeneralInquiry, Confidence: "Low", Source: SourceFallback}
	for _, kw := range scheduleKeywords {
		if strings.Contains(msg, kw) {
			r.Intent = IntentSchedule
			return r
		}
	}
	for _, kw := range availabilityKeywords {
		if strings.Contains(msg, kw) {
			r.Intent = IntentCheckAvailability
			return r
		}
	}
	return r
}

func normalizeIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentSchedule:
		return IntentSchedule
	case IntentCheckAvailability:
		return IntentCheckAvailability
	case IntentModify:
		return IntentModify
	case IntentCancel:
		return IntentCancel
	case IntentClarification:
		return IntentClarification
	default:
		return IntentGeneralInquiry
	}
}

// extractJSON tolerates models that wrap JSON in prose or code fences by
// slicing from the first '{' to the last '}'.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
