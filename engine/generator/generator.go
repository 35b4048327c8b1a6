// Package generator produces transformation matrices from CSV samples by
// asking an LLM to analyze the columns and unique values.
package generator

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/allfeat/massload/engine/core"
	"github.com/allfeat/massload/engine/transform"
	"github.com/allfeat/massload/engine/validator"
	"github.com/allfeat/massload/pkg/config"
	"github.com/allfeat/massload/pkg/logger"
)

// Generator turns a CSV sample into a transformation matrix. The network
// call is fallible; retries happen inside per the configured policy.
type Generator interface {
	Generate(ctx context.Context, preview, allRows []core.Row) (*transform.TransformationMatrix, error)
}

// RetryPolicy governs how generation attempts are repeated. The default
// is 3 attempts with a constant 1s delay.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Second}
}

func (p RetryPolicy) backoff() retry.Backoff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay
	if delay <= 0 {
		delay = time.Second
	}
	return retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))
}

type llmGenerator struct {
	model     llms.Model
	policy    RetryPolicy
	maxTokens int
}

// New builds a generator from the AI configuration, selecting the
// provider backend and retry policy.
func New(cfg *config.AIConfig) (Generator, error) {
	model, err := buildModel(cfg)
	if err != nil {
		return nil, core.NewError(err, "GENERATOR_INIT_ERROR", map[string]any{"provider": cfg.Provider})
	}
	return &llmGenerator{
		model:     model,
		policy:    RetryPolicy{MaxAttempts: cfg.MaxRetries, Delay: cfg.RetryDelay},
		maxTokens: cfg.MaxTokens,
	}, nil
}

// NewWithModel wires an explicit model, used by tests.
func NewWithModel(model llms.Model, policy RetryPolicy, maxTokens int) Generator {
	return &llmGenerator{model: model, policy: policy, maxTokens: maxTokens}
}

func buildModel(cfg *config.AIConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.New(
			openai.WithToken(cfg.APIKey.Value()),
			openai.WithModel(cfg.Model),
		)
	default:
		return anthropic.New(
			anthropic.WithToken(cfg.APIKey.Value()),
			anthropic.WithModel(cfg.Model),
		)
	}
}

// Generate asks the model for a matrix, retrying transient failures. The
// preview shows the model row structure; allRows feeds the per-column
// unique value listing so mapping tables are complete.
func (g *llmGenerator) Generate(
	ctx context.Context,
	preview, allRows []core.Row,
) (*transform.TransformationMatrix, error) {
	log := logger.FromContext(ctx)
	system := systemPrompt()
	user := userPrompt(preview, allRows, validator.FlatSchemaJSON())

	var matrix *transform.TransformationMatrix
	attempt := 0
	err := retry.Do(ctx, g.policy.backoff(), func(ctx context.Context) error {
		attempt++
		log.Debug("requesting matrix generation", "attempt", attempt, "preview_rows", len(preview), "total_rows", len(allRows))
		m, genErr := g.tryGenerate(ctx, system, user)
		if genErr != nil {
			log.Warn("matrix generation attempt failed", "attempt", attempt, "error", genErr)
			return retry.RetryableError(genErr)
		}
		matrix = m
		return nil
	})
	if err != nil {
		return nil, core.NewError(err, "GENERATION_FAILED", map[string]any{"attempts": attempt})
	}
	return matrix, nil
}

func (g *llmGenerator) tryGenerate(ctx context.Context, system, user string) (*transform.TransformationMatrix, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	response, err := g.model.GenerateContent(ctx, messages,
		llms.WithTemperature(0),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return nil, err
	}
	if len(response.Choices) == 0 || response.Choices[0].Content == "" {
		return nil, errors.New("empty model response")
	}
	return transform.MatrixFromJSON([]byte(extractJSON(response.Choices[0].Content)))
}
