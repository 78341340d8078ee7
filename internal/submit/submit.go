// Package submit posts answers to a quiz submit target.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quizagent/internal/components/assert"
	"quizagent/internal/components/telemetry"
	"quizagent/internal/quiz"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const report_client_submit = "client.submit"

var (
	ErrSubmitTransport   = errors.New("submit transport failure")
	ErrMalformedResponse = errors.New("malformed submit response")
)

var tracer = otel.Tracer("quizagent.internal.submit")

type response struct {
	Correct *bool   `json:"correct"`
	Url     *string `json:"url"`
	Reason  *string `json:"reason"`
}

type Client struct {
	Http *resty.Client
	tel  telemetry.API
}

func NewClient(timeout time.Duration, tel telemetry.API) *Client {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("submit", tel)

	httpClient := resty.New()
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}
	telemetry.InstrumentResty(httpClient, tel)

	return &Client{
		Http: httpClient,
		tel:  tel,
	}
}

// Submit posts the submission as json. A transport error or a non 2xx status
// wraps ErrSubmitTransport, a body that is not a json object wraps
// ErrMalformedResponse. The submission is Rejected only when the body says
// `"correct": false`.
func (c *Client) Submit(ctx context.Context, target string, sub quiz.Submission) (quiz.SubmissionResult, error) {
	ctx, span := tracer.Start(ctx, "client:Submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("target", target),
		attribute.String("quiz_url", sub.Url),
	)

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(sub).
		Post(target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "post submission")
		c.tel.ReportWarning(report_client_submit, fmt.Errorf("post %s: %w", target, err))
		return quiz.SubmissionResult{}, fmt.Errorf("%w: post %s: %w", ErrSubmitTransport, target, err)
	}
	if res.IsError() {
		err = fmt.Errorf("%w: post %s: status %d: %s", ErrSubmitTransport, target, res.StatusCode(), bytes.TrimSpace(res.Body()))
		span.SetStatus(codes.Error, "unexpected status")
		c.tel.ReportWarning(report_client_submit, err)
		return quiz.SubmissionResult{}, err
	}

	result, err := parseResponse(res.Body())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse response")
		c.tel.ReportWarning(report_client_submit, err, string(res.Body()))
		return quiz.SubmissionResult{}, err
	}
	span.SetAttributes(attribute.String("status", string(result.Status)))
	return result, nil
}

func parseResponse(body []byte) (quiz.SubmissionResult, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return quiz.SubmissionResult{}, fmt.Errorf("%w: body is not a json object", ErrMalformedResponse)
	}

	var parsed response
	err := json.Unmarshal(body, &parsed)
	if err != nil {
		return quiz.SubmissionResult{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	result := quiz.SubmissionResult{Status: quiz.Accepted}
	if parsed.Correct != nil && !*parsed.Correct {
		result.Status = quiz.Rejected
	}
	if parsed.Url != nil {
		result.NextUrl = *parsed.Url
	}
	if parsed.Reason != nil {
		result.Reason = *parsed.Reason
	}
	return result, nil
}
