package render

import (
	"context"
	"fmt"
	"time"

	"quizagent/internal/components/assert"
	"quizagent/internal/components/telemetry"
	"quizagent/internal/quiz"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const report_static_render = "static.render"

// Static fetches a page without running its scripts. It serves quiz pages whose
// payload is already in the markup and deployments with no browser available.
type Static struct {
	Http *resty.Client
	tel  telemetry.API
}

func NewStatic(timeout time.Duration, tel telemetry.API) *Static {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("render", tel)

	httpClient := resty.New()
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}
	telemetry.InstrumentResty(httpClient, tel)

	return &Static{
		Http: httpClient,
		tel:  tel,
	}
}

func (s *Static) Render(ctx context.Context, url string) (quiz.RenderedPage, error) {
	ctx, span := tracer.Start(ctx, "static:Render")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	res, err := s.Http.R().
		SetContext(ctx).
		Get(url)
	if err == nil && res.IsError() {
		err = fmt.Errorf("unexpected status %d", res.StatusCode())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get page")
		s.tel.ReportWarning(report_static_render, fmt.Errorf("get %s: %w", url, err))
		return quiz.RenderedPage{}, fmt.Errorf("%w: get %s: %w", ErrRender, url, err)
	}

	return quiz.RenderedPage{Url: url, Html: string(res.Body())}, nil
}

func (s *Static) Close() error {
	return nil
}
