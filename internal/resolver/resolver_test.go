package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"quizagent/internal/components/telemetry"
	"quizagent/internal/llm"
	"quizagent/internal/quiz"

	"github.com/stretchr/testify/require"
)

type countingClient struct {
	calls atomic.Int32
	last  llm.Request
	text  string
	err   error
}

func (c *countingClient) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	c.calls.Add(1)
	c.last = req
	if c.err != nil {
		return llm.Response{}, c.err
	}
	return llm.Response{Text: c.text}, nil
}

func inlineTable(columns []string, rows ...[]string) quiz.LocatedTable {
	return quiz.LocatedTable{
		Table:      quiz.Table{Columns: columns, Rows: rows},
		Provenance: quiz.Provenance{Kind: quiz.SourceInline},
	}
}

func TestTableSum(t *testing.T) {
	tel := &telemetry.RecorderAPI{}
	client := &countingClient{text: `{"answer": 1}`}
	r := Default(client, Prompts{}, 0, tel)

	answer := r.Resolve(context.Background(), Input{
		Payload: quiz.Payload{Text: `"answer": 99`},
		Tables: []quiz.LocatedTable{
			inlineTable([]string{"name", "value"}, []string{"a", "10"}, []string{"b", "20"}, []string{"c", "abc"}),
		},
	})
	require.Equal(t, quiz.Numeric(30), answer)
	require.True(t, tel.Has("warning", report_table_sum_non_numeric))
	require.Zero(t, client.calls.Load())
}

func TestTableSumPicksFirstTableWithValueColumn(t *testing.T) {
	s := NewTableSum(&telemetry.RecorderAPI{})
	answer, ok := s.Resolve(context.Background(), Input{
		Tables: []quiz.LocatedTable{
			inlineTable(nil, []string{"1", "2"}),
			inlineTable([]string{"value", "id"}, []string{" 1.5 ", "x"}, []string{"2.5"}, []string{}),
			inlineTable([]string{"value"}, []string{"100"}),
		},
	})
	require.True(t, ok)
	require.Equal(t, quiz.Numeric(4), answer)
}

func TestTableSumWithoutValueColumn(t *testing.T) {
	tel := &telemetry.RecorderAPI{}
	client := &countingClient{text: `{"answer": 1}`}
	r := Default(client, Prompts{}, 0, tel)

	answer := r.Resolve(context.Background(), Input{
		Tables: []quiz.LocatedTable{
			inlineTable([]string{"Value", "amount"}, []string{"1", "2"}),
		},
	})
	require.Equal(t, quiz.Numeric(0), answer)
	require.True(t, tel.Has("warning", report_table_sum_no_column))
	require.True(t, tel.Has("warning", report_table_sum_near_miss))
	require.Zero(t, client.calls.Load())
}

func TestNearestColumn(t *testing.T) {
	column, similarity := nearestColumn([]quiz.LocatedTable{
		inlineTable([]string{"id", "amount"}),
		inlineTable([]string{" Values "}),
	})
	require.Equal(t, " Values ", column)
	require.GreaterOrEqual(t, similarity, nearMissSimilarity)

	_, similarity = nearestColumn([]quiz.LocatedTable{inlineTable([]string{"id", "city"})})
	require.Less(t, similarity, nearMissSimilarity)
}

func TestTableSumNonFiniteCells(t *testing.T) {
	s := NewTableSum(&telemetry.RecorderAPI{})
	answer, ok := s.Resolve(context.Background(), Input{
		Tables: []quiz.LocatedTable{
			inlineTable([]string{"value"}, []string{"Inf"}, []string{"NaN"}, []string{"-4"}, []string{""}),
		},
	})
	require.True(t, ok)
	require.Equal(t, quiz.Numeric(-4), answer)
}

func TestTableSumNotApplicable(t *testing.T) {
	_, ok := NewTableSum(&telemetry.RecorderAPI{}).Resolve(context.Background(), Input{})
	require.False(t, ok)
}

func TestTableSumOverflow(t *testing.T) {
	tel := &telemetry.RecorderAPI{}
	s := NewTableSum(tel)
	answer, ok := s.Resolve(context.Background(), Input{
		Tables: []quiz.LocatedTable{
			inlineTable([]string{"value"}, []string{"1e308"}, []string{"1e308"}),
		},
	})
	require.True(t, ok)
	require.Equal(t, quiz.Unresolved("table sum overflowed"), answer)
	require.True(t, tel.Has("warning", report_table_sum_overflow))

	_, err := answer.MarshalJSON()
	require.NoError(t, err)
}

func TestInlineAnswer(t *testing.T) {
	cases := []struct {
		text     string
		expected quiz.Answer
		ok       bool
	}{
		{text: `{"answer": 42}`, expected: quiz.Numeric(42), ok: true},
		{text: `post {"email": "...", "answer":-1.25}`, expected: quiz.Numeric(-1.25), ok: true},
		{text: `"answer": "anything you want"`, expected: quiz.Text("anything you want"), ok: true},
		{text: `"answer": "say \"hi\""`, expected: quiz.Text(`say "hi"`), ok: true},
		{text: `"answer": 1, "answer": 2`, expected: quiz.Numeric(1), ok: true},
		{text: `{"answer": 1e5}`, expected: quiz.Numeric(100000), ok: true},
		{text: `{"answer": 2.5E-1}`, expected: quiz.Numeric(0.25), ok: true},
		{text: `{"answer": -3e+2}`, expected: quiz.Numeric(-300), ok: true},
		{text: `{"answer": 1e400}`, ok: false},
		{text: `the answer is 42`, ok: false},
		{text: `"answer": null`, ok: false},
	}
	for _, c := range cases {
		answer, ok := InlineAnswer{}.Resolve(context.Background(), Input{Payload: quiz.Payload{Text: c.text}})
		require.Equal(t, c.ok, ok, c.text)
		if c.ok {
			require.Equal(t, c.expected, answer, c.text)
		}
	}
}

func TestInlineAnswerBeforeFallback(t *testing.T) {
	client := &countingClient{text: `{"answer": 1}`}
	r := Default(client, Prompts{}, 0, &telemetry.RecorderAPI{})

	answer := r.Resolve(context.Background(), Input{Payload: quiz.Payload{Text: `<pre>{"answer": 42}</pre>`}})
	require.Equal(t, quiz.Numeric(42), answer)
	require.Zero(t, client.calls.Load())
}

func TestLlmFallback(t *testing.T) {
	client := &countingClient{text: "```json\n{\"answer\": \"paris\"}\n```"}
	prompts := Prompts{System: "sys", User: "usr"}
	r := Default(client, prompts, 0, &telemetry.RecorderAPI{})

	answer := r.Resolve(context.Background(), Input{
		QuizUrl: "https://quiz.example.com/q3",
		Payload: quiz.Payload{Text: "<p>capital of france?</p>"},
	})
	require.Equal(t, quiz.Text("paris"), answer)
	require.EqualValues(t, 1, client.calls.Load())
	require.Equal(t, "sys", client.last.System)
	require.Equal(t, "usr", client.last.User)
	require.Contains(t, client.last.Prompt, "https://quiz.example.com/q3")
	require.Contains(t, client.last.Prompt, "capital of france?")
}

func TestLlmFallbackMalformed(t *testing.T) {
	tel := &telemetry.RecorderAPI{}
	client := &countingClient{text: "I think it is probably 42"}
	r := Default(client, Prompts{}, 0, tel)

	answer := r.Resolve(context.Background(), Input{Payload: quiz.Payload{Text: "<p>?</p>"}})
	require.Equal(t, quiz.Unresolved("LLM could not parse answer"), answer)
	require.EqualValues(t, 1, client.calls.Load())
	require.True(t, tel.Has("warning", report_llm_fallback))
}

func TestLlmFallbackTransportError(t *testing.T) {
	client := &countingClient{err: errors.New("connection refused")}
	r := Default(client, Prompts{}, 0, &telemetry.RecorderAPI{})

	answer := r.Resolve(context.Background(), Input{Payload: quiz.Payload{Text: "<p>?</p>"}})
	require.Equal(t, quiz.AnswerUnresolved, answer.Kind)
	require.Equal(t, "LLM request failed", answer.Reason)
	require.EqualValues(t, 1, client.calls.Load())
}

func TestLlmFallbackEmptyResponse(t *testing.T) {
	client := &countingClient{err: llm.ErrEmptyResponse}
	r := Default(client, Prompts{}, 0, &telemetry.RecorderAPI{})

	answer := r.Resolve(context.Background(), Input{Payload: quiz.Payload{Text: "<p>?</p>"}})
	require.Equal(t, quiz.Unresolved("LLM could not parse answer"), answer)
}

func TestLlmFallbackMalformedAipipeBody(t *testing.T) {
	bodies := map[string]string{
		"application/json":                `{}`,
		"text/plain":                      "the answer is 42",
		"application/json; charset=utf-8": "not json",
	}
	for contentType, body := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("content-type", contentType)
			w.Write([]byte(body))
		}))

		tel := &telemetry.RecorderAPI{}
		client := llm.NewAipipeClient(llm.AipipeOptions{Endpoint: server.URL, ApiKey: "key-123"}, tel)
		s := NewLlmFallback(client, Prompts{}, 0, tel)

		answer, ok := s.Resolve(context.Background(), Input{Payload: quiz.Payload{Text: "<p>?</p>"}})
		server.Close()

		require.True(t, ok)
		require.Equal(t, quiz.Unresolved("LLM could not parse answer"), answer, body)
	}
}

func TestLlmFallbackTruncatesPayload(t *testing.T) {
	client := &countingClient{text: `{"answer": 1}`}
	s := NewLlmFallback(client, Prompts{}, 4, &telemetry.RecorderAPI{})

	_, ok := s.Resolve(context.Background(), Input{Payload: quiz.Payload{Text: "abcdefgh"}})
	require.True(t, ok)
	require.Contains(t, client.last.Prompt, "abcd")
	require.NotContains(t, client.last.Prompt, "abcde")
}

type skipStrategy struct{}

func (skipStrategy) Name() string { return "skip" }

func (skipStrategy) Resolve(context.Context, Input) (quiz.Answer, bool) {
	return quiz.Answer{}, false
}

func TestResolverNoApplicableStrategy(t *testing.T) {
	tel := &telemetry.RecorderAPI{}
	answer := New(tel, skipStrategy{}).Resolve(context.Background(), Input{})
	require.Equal(t, quiz.AnswerUnresolved, answer.Kind)
	require.True(t, tel.Has("warning", report_resolver_resolve))
}
