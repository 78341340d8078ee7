package llm

import (
	"context"
	"fmt"

	"quizagent/internal/components/assert"
	"quizagent/internal/components/telemetry"

	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

const report_gemini_generate = "gemini.generate"

const DefaultGeminiModel = "gemini-2.5-flash"

type GeminiOptions struct {
	ApiKey    string
	Model     string
	MaxTokens int
	// BaseUrl overrides the Gemini API endpoint, it is empty in production.
	BaseUrl string
}

// GeminiClient generates text with the Gemini API. System and User prompts are
// sent as the system instruction.
type GeminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int
	tel       telemetry.API
}

func NewGeminiClient(ctx context.Context, opts GeminiOptions, tel telemetry.API) (*GeminiClient, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.ApiKey, "api key")
	tel = telemetry.NewScopedAPI("llm", tel)

	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.ApiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseUrl != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseUrl}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		model:     model,
		maxTokens: opts.MaxTokens,
		tel:       tel,
	}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, span := tracer.Start(ctx, "gemini:Generate")
	defer span.End()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = int32(c.maxTokens)
	}
	instruction := req.System
	if req.User != "" {
		if instruction != "" {
			instruction += "\n"
		}
		instruction += req.User
	}
	if instruction != "" {
		config.SystemInstruction = genai.NewContentFromText(instruction, genai.RoleUser)
	}

	res, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content failed")
		c.tel.ReportWarning(report_gemini_generate, err)
		return Response{}, err
	}

	text := res.Text()
	if text == "" {
		return Response{}, ErrEmptyResponse
	}
	return Response{Text: text}, nil
}
