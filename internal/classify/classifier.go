// Package classify turns batches of enriched domains into persisted
// threat evaluations by prompting a local model with structured output.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tiktoken-go/tokenizer"

	"threatintel/internal/config"
	"threatintel/internal/domain"
	"threatintel/internal/enrich"
)

// batchSchema constrains the model to the evaluation shape. Ollama's
// OpenAI-compatible endpoint enforces this server-side.
var batchSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "evaluations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "domain": {"type": "string"},
          "threat_level": {"type": "string", "enum": ["benign", "suspicious", "malicious", "unknown"]},
          "confidence": {"type": "integer"},
          "reasoning": {"type": "string"},
          "indicators": {"type": "array", "items": {"type": "string"}}
        },
        "required": ["domain", "threat_level", "confidence", "reasoning", "indicators"]
      }
    }
  },
  "required": ["evaluations"]
}`)

type singleEvaluation struct {
	Domain      string   `json:"domain"`
	ThreatLevel string   `json:"threat_level"`
	Confidence  int      `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	Indicators  []string `json:"indicators"`
}

type batchResult struct {
	Evaluations []singleEvaluation `json:"evaluations"`
}

// structuredCaller is the slice of the model client the classifier uses.
type structuredCaller interface {
	CreateStructured(ctx context.Context, model, system, user, schemaName string, schema json.RawMessage, out interface{}) error
}

// Classifier evaluates domain batches with a configured model.
type Classifier struct {
	client  structuredCaller
	model   string
	prompts config.PromptsConfig
	policy  EscalationPolicy
	codec   tokenizer.Codec
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the classifier.
type Option func(*Classifier)

// WithEscalationPolicy overrides the default accept-all policy.
func WithEscalationPolicy(p EscalationPolicy) Option {
	return func(c *Classifier) {
		c.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// New builds a classifier for the given model. Token accounting uses the
// cl100k encoding as a cross-model estimate; if the encoding is
// unavailable the estimate is simply skipped.
func New(client structuredCaller, model string, prompts config.PromptsConfig, opts ...Option) *Classifier {
	c := &Classifier{
		client:  client,
		model:   model,
		prompts: prompts,
		policy:  AcceptAll{},
		logger:  slog.Default(),
		now:     time.Now,
	}
	if codec, err := tokenizer.Get(tokenizer.Cl100kBase); err == nil {
		c.codec = codec
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify evaluates one batch. The returned evaluations carry the stats
// of their batch entry (zero/empty when the model answered for a domain
// it was not asked about), the model identifier, and the evaluation time.
// All attempts exhausted means nil and an error; the caller counts it and
// moves on to the next batch.
func (c *Classifier) Classify(ctx context.Context, batch []*enrich.EnrichedDomain, previous []domain.DomainEvaluation) ([]domain.DomainEvaluation, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	user := c.buildUserPrompt(batch, previous)
	c.logTokenEstimate(user)

	c.logger.Info("evaluating batch", slog.Int("domains", len(batch)))

	var result batchResult
	if err := c.client.CreateStructured(ctx, c.model, c.prompts.SystemPrompt, user, "batch_evaluation", batchSchema, &result); err != nil {
		return nil, fmt.Errorf("evaluate batch of %d: %w", len(batch), err)
	}

	byDomain := make(map[string]*enrich.EnrichedDomain, len(batch))
	for _, e := range batch {
		byDomain[e.Domain()] = e
	}

	now := c.now().UTC()
	evaluations := make([]domain.DomainEvaluation, 0, len(result.Evaluations))
	for _, single := range result.Evaluations {
		level := domain.ThreatLevel(single.ThreatLevel)
		if !level.Valid() {
			c.logger.Warn("model returned unknown threat level",
				slog.String("domain", single.Domain),
				slog.String("threat_level", single.ThreatLevel))
			level = domain.ThreatUnknown
		}

		ev := domain.DomainEvaluation{
			Domain:      single.Domain,
			ThreatLevel: level,
			Confidence:  domain.ClampConfidence(single.Confidence),
			Reasoning:   single.Reasoning,
			Indicators:  single.Indicators,
			EvaluatedBy: c.model,
			EvaluatedAt: now,
		}
		if stats, ok := byDomain[single.Domain]; ok {
			ev.QueryCount = stats.Stats.QueryCount
			ev.UniqueClients = stats.Stats.UniqueClients
		} else {
			c.logger.Warn("model evaluated a domain outside the batch",
				slog.String("domain", single.Domain))
		}

		ev = c.policy.Apply(ev)
		evaluations = append(evaluations, ev)
	}

	c.logger.Info("batch evaluated", slog.Int("results", len(evaluations)))
	return evaluations, nil
}

// buildUserPrompt fills the batch template with the learning context and
// the per-domain digest lines.
func (c *Classifier) buildUserPrompt(batch []*enrich.EnrichedDomain, previous []domain.DomainEvaluation) string {
	lines := make([]string, len(batch))
	for i, e := range batch {
		lines[i] = e.PromptLine()
	}

	return strings.NewReplacer(
		"{learning_context}", c.learningContext(previous),
		"{domain_list}", strings.Join(lines, "\n"),
	).Replace(c.prompts.BatchUserPrompt)
}

// learningContext renders recent evaluations so the model stays
// consistent with its own prior verdicts.
func (c *Classifier) learningContext(previous []domain.DomainEvaluation) string {
	if len(previous) == 0 {
		return c.prompts.NoPreviousEvaluations
	}

	lines := make([]string, 0, len(previous)+1)
	lines = append(lines, c.prompts.PreviousEvaluationsHeader)
	for _, ev := range previous {
		indicators := "none"
		if len(ev.Indicators) > 0 {
			indicators = strings.Join(ev.Indicators, ", ")
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (confidence: %d) -- %s",
			ev.Domain, ev.ThreatLevel, ev.Confidence, indicators))
	}
	return strings.Join(lines, "\n")
}

func (c *Classifier) logTokenEstimate(user string) {
	if c.codec == nil {
		return
	}
	userIDs, _, err := c.codec.Encode(user)
	if err != nil {
		return
	}
	systemIDs, _, _ := c.codec.Encode(c.prompts.SystemPrompt)
	c.logger.Debug("prompt token estimate",
		slog.Int("system_tokens", len(systemIDs)),
		slog.Int("user_tokens", len(userIDs)))
}
