package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
)

// failed response bodies are logged up to this many bytes
const failedBodyExcerpt = 2048

var (
	restyMeter         = otel.Meter("quizagent.internal.components.telemetry")
	requestDuration, _ = restyMeter.Float64Histogram(
		"quiz.http.duration",
		metric.WithDescription("outgoing http request duration"),
		metric.WithUnit("s"),
	)
)

type requestKey struct{}

type requestInfo struct {
	id    uint64
	start time.Time
}

// InstrumentResty reports every request client makes through tel and records
// its duration per host. Bodies of failed responses are reported at debug level.
func InstrumentResty(client *resty.Client, tel API) {
	var lastId atomic.Uint64

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		info := requestInfo{id: lastId.Add(1), start: time.Now()}
		tel.ReportDebug(report_resty_request, info.id, req.Method, req.URL)
		req.SetContext(context.WithValue(req.Context(), requestKey{}, info))
		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		info, ok := res.Request.Context().Value(requestKey{}).(requestInfo)
		if !ok {
			return nil
		}
		took := time.Since(info.start)
		recordDuration(res.Request, took, res.StatusCode())

		tel.ReportDebug(report_resty_response, info.id, took.String(), res.Status())
		if res.IsError() {
			body := res.String()
			if len(body) > failedBodyExcerpt {
				body = body[:failedBodyExcerpt]
			}
			tel.ReportDebug(report_resty_response, info.id, res.Request.Method, res.Request.URL, body)
		}
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		var took time.Duration
		if info, ok := req.Context().Value(requestKey{}).(requestInfo); ok {
			took = time.Since(info.start)
			recordDuration(req, took, 0)
		}
		tel.ReportWarning(report_resty_response, err, req.Method, req.URL, took)
	})
}

func recordDuration(req *resty.Request, took time.Duration, status int) {
	var host string
	if req.RawRequest != nil {
		host = req.RawRequest.URL.Host
	}
	requestDuration.Record(
		req.Context(),
		took.Seconds(),
		metric.WithAttributes(
			attribute.String("host", host),
			attribute.String("method", req.Method),
			attribute.Int("status", status),
		),
	)
}
