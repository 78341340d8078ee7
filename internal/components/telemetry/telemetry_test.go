package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &RecorderAPI{}
	scoped := NewScopedAPI("chain", NewScopedAPI("run-1", rec))

	scoped.ReportBroken("submit", "boom")
	scoped.ReportWarning("decode")
	scoped.ReportCount("steps", 2)

	reports := rec.Reports()
	require.Len(t, reports, 3)
	require.Equal(t, "run-1: chain: submit", reports[0].Id)
	require.Equal(t, []any{"boom"}, reports[0].Params)
	require.Equal(t, "count", reports[2].Kind)
	require.Equal(t, []any{int64(2)}, reports[2].Params)

	require.True(t, rec.Has("warning", "chain: decode"))
	require.False(t, rec.Has("broken", "chain: decode"))
}

func TestInstrumentResty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("nope"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	rec := &RecorderAPI{}
	client := resty.New()
	InstrumentResty(client, rec)

	_, err := client.R().Get(srv.URL + "/found")
	require.NoError(t, err)
	_, err = client.R().Get(srv.URL + "/missing")
	require.NoError(t, err)

	var responses int
	for _, r := range rec.Reports() {
		if r.Kind == "debug" && r.Id == report_resty_response {
			responses++
		}
	}
	// one timing report per response, plus the full dump for the 404
	require.Equal(t, 3, responses)
	require.True(t, rec.Has("debug", report_resty_request))
}

func TestFormatHeaders(t *testing.T) {
	require.Equal(t, "", formatHeaders(http.Header{}))
	require.Equal(t, "Accept: text/html", formatHeaders(http.Header{"Accept": {"text/html"}}))
}

func TestSetupWithoutEndpoints(t *testing.T) {
	tel, err := Setup(context.Background(), "quizagent-test", Config{})
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestSetupHttpTraces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	tel, err := Setup(context.Background(), "quizagent-test", Config{
		Otlp: OtlpConfig{Traces: Endpoint{HttpEndpoint: srv.URL + "/v1/traces"}},
	})
	require.NoError(t, err)
	require.NotNil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestSetupAmbiguousEndpoint(t *testing.T) {
	_, err := Setup(context.Background(), "quizagent-test", Config{
		Otlp: OtlpConfig{Metrics: Endpoint{GrpcEndpoint: "http://localhost:4317", HttpEndpoint: "http://localhost:4318"}},
	})
	require.ErrorIs(t, err, ErrAmbiguousEndpoint)
	require.ErrorContains(t, err, "metrics")
}

func TestEndpointProtocol(t *testing.T) {
	require.Equal(t, "", Endpoint{}.protocol())
	require.Equal(t, "grpc", Endpoint{GrpcEndpoint: "http://localhost:4317"}.protocol())
	require.Equal(t, "http", Endpoint{HttpEndpoint: "http://localhost:4318"}.protocol())
}
