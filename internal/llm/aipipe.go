package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"quizagent/internal/components/assert"
	"quizagent/internal/components/telemetry"
	"quizagent/lib/textutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const report_aipipe_generate = "aipipe.generate"

const DefaultAipipeEndpoint = "https://api.aipipe.com/v1/generate"

var tracer = otel.Tracer("quizagent.internal.llm")

type AipipeOptions struct {
	Endpoint  string
	ApiKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// AipipeClient calls an AIpipe style text generation endpoint.
type AipipeClient struct {
	Http *resty.Client

	endpoint  string
	model     string
	maxTokens int
	tel       telemetry.API
}

func NewAipipeClient(opts AipipeOptions, tel telemetry.API) *AipipeClient {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.ApiKey, "api key")
	tel = telemetry.NewScopedAPI("llm", tel)

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultAipipeEndpoint
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	httpClient := resty.New()
	httpClient.SetAuthToken(opts.ApiKey)
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}
	telemetry.InstrumentResty(httpClient, tel)

	return &AipipeClient{
		Http:      httpClient,
		endpoint:  endpoint,
		model:     opts.Model,
		maxTokens: maxTokens,
		tel:       tel,
	}
}

type aipipeRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type aipipeResponse struct {
	Text string `json:"text"`
}

func aipipePrompt(req Request) string {
	var sb strings.Builder
	if req.System != "" {
		sb.WriteString("System: ")
		sb.WriteString(req.System)
		sb.WriteString("\n")
	}
	if req.User != "" {
		sb.WriteString("User: ")
		sb.WriteString(req.User)
		sb.WriteString("\n")
	}
	sb.WriteString(req.Prompt)
	return sb.String()
}

func (c *AipipeClient) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, span := tracer.Start(ctx, "aipipe:Generate")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetBody(aipipeRequest{
			Model:     c.model,
			Prompt:    aipipePrompt(req),
			MaxTokens: c.maxTokens,
		}).
		Post(c.endpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		c.tel.ReportWarning(report_aipipe_generate, err)
		return Response{}, err
	}
	if res.IsError() {
		err = fmt.Errorf("aipipe: unexpected status %d", res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		c.tel.ReportWarning(report_aipipe_generate, err)
		return Response{}, err
	}

	// a body that is not a {"text": ...} envelope is handed on as is and left
	// for the caller to reject
	body := res.Body()
	var out aipipeResponse
	if json.Unmarshal(body, &out) != nil || out.Text == "" {
		c.tel.ReportDebug(report_aipipe_generate, "unexpected body", textutil.Truncate(string(body), 200))
		return Response{Text: string(body)}, nil
	}
	return Response{Text: out.Text}, nil
}
