package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "telecare",
		Subsystem: "ai",
		Name:      "triage_duration_seconds",
		Help:      "Duration of AI triage requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "telecare",
		Subsystem: "ai",
		Name:      "triage_failures_total",
		Help:      "Number of AI triage failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI triager.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAITriager implements Triager against the OpenAI chat completion API.
type OpenAITriager struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAITriager builds a new triager using the provided configuration.
func NewOpenAITriager(cfg OpenAIConfig) (*OpenAITriager, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 256
	}

	tracer := otel.Tracer("github.com/mediline/telecare-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAITriager{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Triage sends the intake details to OpenAI and parses the suggestion.
func (t *OpenAITriager) Triage(parent context.Context, input TriageInput) (TriageResult, error) {
	ctx, span := t.tracer.Start(parent, "openai.triage", trace.WithAttributes(
		attribute.String("model", t.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       t.cfg.Model,
		MaxTokens:   t.cfg.MaxTokens,
		Temperature: t.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: triageSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildTriagePrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := t.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	aiDuration.WithLabelValues(t.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		aiFailures.WithLabelValues(t.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return TriageResult{}, fmt.Errorf("openai triage: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		aiFailures.WithLabelValues(t.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return TriageResult{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseTriageResponse(content)
	if err != nil {
		aiFailures.WithLabelValues(t.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return TriageResult{}, err
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	return result, nil
}

func triageSystemPrompt() string {
	return "You are a telemedicine intake assistant. Respond with a JSON object containing urgency (one of routine, priority, cri" +
		"tical) and a one-sentence rationale. The suggestion is advisory; when in doubt choose the higher tier."
}

func buildTriagePrompt(input TriageInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Presenting Complaint\n")
	builder.WriteString(input.Complaint)
	if input.Age > 0 {
		builder.WriteString(fmt.Sprintf("\n\n## Age\n%d", input.Age))
	}
	if input.Gender != "" {
		builder.WriteString("\n\n## Gender\n")
		builder.WriteString(input.Gender)
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseTriageResponse(content string) (TriageResult, error) {
	type payload struct {
		Urgency   string `json:"urgency"`
		Rationale string `json:"rationale"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return TriageResult{}, fmt.Errorf("parse triage json: %w", err)
	}

	urgency := strings.ToLower(strings.TrimSpace(data.Urgency))
	switch urgency {
	case "routine", "priority", "critical":
	default:
		urgency = "routine"
	}

	return TriageResult{
		Urgency:   urgency,
		Rationale: data.Rationale,
	}, nil
}
