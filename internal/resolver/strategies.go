package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"quizagent/internal/components/assert"
	"quizagent/internal/components/telemetry"
	"quizagent/internal/llm"
	"quizagent/internal/quiz"
	"quizagent/lib/textutil"

	"github.com/antzucaro/matchr"
)

const (
	report_table_sum_no_column   = "resolver.no-summable-column"
	report_table_sum_non_numeric = "resolver.non-numeric-cell"
	report_table_sum_near_miss   = "resolver.near-miss-column"
	report_table_sum_overflow    = "resolver.sum-overflow"
	report_llm_fallback          = "resolver.llm-fallback"
)

// ValueColumn is the column TableSum adds up.
const ValueColumn = "value"

// TableSum applies whenever tables were located. It sums the `value` column of
// the first table that has one. Cells that are not finite numbers count as zero
// and no table with a `value` column answers zero. A sum that overflows is
// Unresolved.
type TableSum struct {
	tel telemetry.API
}

func NewTableSum(tel telemetry.API) TableSum {
	assert.NotNil(tel)
	return TableSum{tel: telemetry.NewScopedAPI("resolver", tel)}
}

func (TableSum) Name() string {
	return "table_sum"
}

func (s TableSum) Resolve(_ context.Context, in Input) (quiz.Answer, bool) {
	if len(in.Tables) == 0 {
		return quiz.Answer{}, false
	}

	for _, located := range in.Tables {
		idx := located.Table.ColumnIndex(ValueColumn)
		if idx < 0 {
			continue
		}

		var sum float64
		for rowIdx, row := range located.Table.Rows {
			if idx >= len(row) {
				continue
			}
			n, ok := parseCell(row[idx])
			if !ok {
				s.tel.ReportWarning(
					report_table_sum_non_numeric,
					fmt.Sprintf("row %d: %q", rowIdx, row[idx]),
					located.Provenance.Url,
				)
				continue
			}
			sum += n
		}
		if math.IsInf(sum, 0) || math.IsNaN(sum) {
			s.tel.ReportWarning(report_table_sum_overflow, located.Provenance.Url)
			return quiz.Unresolved("table sum overflowed"), true
		}
		return quiz.Numeric(sum), true
	}

	s.tel.ReportWarning(report_table_sum_no_column, len(in.Tables))
	column, similarity := nearestColumn(in.Tables)
	if similarity >= nearMissSimilarity {
		s.tel.ReportWarning(report_table_sum_near_miss, column, similarity)
	}
	return quiz.Numeric(0), true
}

// columns at least this similar to ValueColumn are reported as likely typos,
// they are never summed
const nearMissSimilarity = 0.85

func nearestColumn(tables []quiz.LocatedTable) (string, float64) {
	var mostSimilarity float64
	var mostSimilarColumn string
	for _, located := range tables {
		for _, column := range located.Table.Columns {
			similarity := matchr.JaroWinkler(strings.ToLower(strings.TrimSpace(column)), ValueColumn, false)
			if similarity > mostSimilarity {
				mostSimilarity = similarity
				mostSimilarColumn = column
			}
		}
	}
	return mostSimilarColumn, mostSimilarity
}

func parseCell(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

var inlineAnswerRegex = regexp.MustCompile(`"answer"\s*:\s*(-?[0-9]+(?:\.[0-9]+)?(?:[eE][+-]?[0-9]+)?|"(?:[^"\\]|\\.)*")`)

// InlineAnswer applies when the payload states its answer as `"answer": x`.
type InlineAnswer struct{}

func (InlineAnswer) Name() string {
	return "inline_answer"
}

func (InlineAnswer) Resolve(_ context.Context, in Input) (quiz.Answer, bool) {
	groups := inlineAnswerRegex.FindStringSubmatch(in.Payload.Text)
	if groups == nil {
		return quiz.Answer{}, false
	}
	literal := groups[1]
	if strings.HasPrefix(literal, `"`) {
		var s string
		err := json.Unmarshal([]byte(literal), &s)
		if err != nil {
			s = strings.Trim(literal, `"`)
		}
		return quiz.Text(s), true
	}
	n, err := strconv.ParseFloat(literal, 64)
	if err != nil || math.IsInf(n, 0) {
		return quiz.Answer{}, false
	}
	return quiz.Numeric(n), true
}

// Prompts are the extra instructions sent with every fallback request.
type Prompts struct {
	System string
	User   string
}

// LlmFallback always applies. It asks the model exactly once and never fails,
// a transport error or an unparseable reply becomes an Unresolved answer.
type LlmFallback struct {
	client  llm.Client
	prompts Prompts
	// maxPayload bounds the payload bytes quoted in the prompt, 0 means no bound.
	maxPayload int
	tel        telemetry.API
}

func NewLlmFallback(client llm.Client, prompts Prompts, maxPayload int, tel telemetry.API) LlmFallback {
	assert.NotNil(client, "llm client")
	assert.NotNil(tel)
	return LlmFallback{
		client:     client,
		prompts:    prompts,
		maxPayload: maxPayload,
		tel:        telemetry.NewScopedAPI("resolver", tel),
	}
}

func (LlmFallback) Name() string {
	return "llm_fallback"
}

func (s LlmFallback) Resolve(ctx context.Context, in Input) (quiz.Answer, bool) {
	payload := in.Payload.Text
	if s.maxPayload > 0 {
		payload = textutil.Truncate(payload, s.maxPayload)
	}

	res, err := s.client.Generate(ctx, llm.Request{
		Prompt: llm.FallbackPrompt(in.QuizUrl, payload),
		System: s.prompts.System,
		User:   s.prompts.User,
	})
	// an empty reply is read like any other unusable reply
	if err != nil && !errors.Is(err, llm.ErrEmptyResponse) {
		s.tel.ReportWarning(report_llm_fallback, err)
		return quiz.Unresolved("LLM request failed"), true
	}

	answer := llm.ParseAnswer(res.Text)
	if answer.Kind == quiz.AnswerUnresolved {
		s.tel.ReportWarning(report_llm_fallback, "unparseable reply", textutil.Truncate(res.Text, 200))
	}
	return answer, true
}

// Default is the resolution policy of a quiz step: table sum, then an inline
// answer, then the model.
func Default(client llm.Client, prompts Prompts, maxPayload int, tel telemetry.API) Resolver {
	return New(
		tel,
		NewTableSum(tel),
		InlineAnswer{},
		NewLlmFallback(client, prompts, maxPayload, tel),
	)
}
