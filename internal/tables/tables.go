// Package tables locates the tabular data a quiz page embeds or links to.
package tables

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"quizagent/internal/components/assert"
	"quizagent/internal/components/telemetry"
	"quizagent/internal/quiz"
	"quizagent/lib/htmlutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	report_locator_parse_payload = "locator.parse-payload"
	report_locator_download      = "locator.download"
	report_locator_read          = "locator.read"
	report_locator_found         = "locator.found"
)

var tracer = otel.Tracer("quizagent.internal.tables")

type Format int

const (
	FormatNone Format = iota
	FormatCsv
	FormatTsv
	FormatXlsx
	FormatJson
)

// FormatOf classifies a url by the extension of its path.
func FormatOf(link string) Format {
	parsed, err := url.Parse(link)
	if err != nil {
		return FormatNone
	}
	switch strings.ToLower(path.Ext(parsed.Path)) {
	case ".csv":
		return FormatCsv
	case ".tsv":
		return FormatTsv
	case ".xlsx":
		return FormatXlsx
	case ".json":
		return FormatJson
	default:
		return FormatNone
	}
}

func (f Format) tabular() bool {
	return f == FormatCsv || f == FormatTsv || f == FormatXlsx
}

type Options struct {
	Timeout time.Duration
	// RatePerSecond bounds downloads issued by one locator, 0 disables the limit.
	RatePerSecond float64
}

type Locator struct {
	Http *resty.Client
	tel  telemetry.API
}

func NewLocator(opts Options, tel telemetry.API) *Locator {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("tables", tel)

	httpClient := resty.New()
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}

	if opts.RatePerSecond > 0 {
		burst := int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel)

	return &Locator{
		Http: httpClient,
		tel:  tel,
	}
}

// Locate returns the tables of the first source that yields any, trying inline
// tables, then the first tabular link, then the quiz url itself. An empty result
// is not an error. Download and parse failures are reported and skipped.
func (l *Locator) Locate(ctx context.Context, payload quiz.Payload, quizUrl string) []quiz.LocatedTable {
	ctx, span := tracer.Start(ctx, "Locate")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload.Text))
	if err != nil {
		l.tel.ReportWarning(report_locator_parse_payload, err)
		doc = nil
	}

	var base *url.URL
	if parsed, err := url.Parse(quizUrl); err == nil {
		base = parsed
	}

	sources := []func() []quiz.LocatedTable{
		func() []quiz.LocatedTable { return l.Inline(doc) },
		func() []quiz.LocatedTable { return l.Linked(ctx, doc, base) },
		func() []quiz.LocatedTable { return l.QuizUrl(ctx, quizUrl) },
	}
	for _, source := range sources {
		found := source()
		if len(found) > 0 {
			span.SetAttributes(
				attribute.String("source", string(found[0].Provenance.Kind)),
				attribute.Int("tables", len(found)),
			)
			l.tel.ReportDebug(report_locator_found, found[0].Provenance.Kind, found[0].Provenance.Url, len(found))
			return found
		}
	}
	return nil
}

// Inline returns the markup tables of the payload.
func (l *Locator) Inline(doc *goquery.Document) []quiz.LocatedTable {
	if doc == nil {
		return nil
	}
	var out []quiz.LocatedTable
	for _, t := range ReadHtml(doc) {
		out = append(out, quiz.LocatedTable{
			Table:      t,
			Provenance: quiz.Provenance{Kind: quiz.SourceInline},
		})
	}
	return out
}

// Linked downloads and reads the first anchor in the payload pointing at a
// tabular file. Relative links resolve against base.
func (l *Locator) Linked(ctx context.Context, doc *goquery.Document, base *url.URL) []quiz.LocatedTable {
	if doc == nil {
		return nil
	}
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a"), base) {
		format := FormatOf(anchor.Href)
		if !format.tabular() {
			continue
		}
		table, ok := l.fetch(ctx, anchor.Href, format)
		if !ok {
			return nil
		}
		return []quiz.LocatedTable{{
			Table:      table,
			Provenance: quiz.Provenance{Kind: quiz.SourceLink, Url: anchor.Href},
		}}
	}
	return nil
}

// QuizUrl reads the quiz url itself when it names a tabular file or a json
// document.
func (l *Locator) QuizUrl(ctx context.Context, quizUrl string) []quiz.LocatedTable {
	format := FormatOf(quizUrl)
	if format == FormatNone {
		return nil
	}
	table, ok := l.fetch(ctx, quizUrl, format)
	if !ok {
		return nil
	}
	kind := quiz.SourceQuizUrl
	if format == FormatJson {
		kind = quiz.SourceJson
	}
	return []quiz.LocatedTable{{
		Table:      table,
		Provenance: quiz.Provenance{Kind: kind, Url: quizUrl},
	}}
}

func (l *Locator) fetch(ctx context.Context, link string, format Format) (quiz.Table, bool) {
	ctx, span := tracer.Start(ctx, "fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", link))

	res, err := l.Http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		span.RecordError(err)
		l.tel.ReportWarning(report_locator_download, fmt.Errorf("get %s: %w", link, err))
		return quiz.Table{}, false
	}
	if res.IsError() {
		l.tel.ReportWarning(report_locator_download, fmt.Errorf("get %s: status %d", link, res.StatusCode()))
		return quiz.Table{}, false
	}

	var table quiz.Table
	body := res.Body()
	switch format {
	case FormatCsv:
		table, err = ReadDelimited(bytes.NewReader(body), ',')
	case FormatTsv:
		table, err = ReadDelimited(bytes.NewReader(body), '\t')
	case FormatXlsx:
		table, err = ReadXlsx(bytes.NewReader(body))
	case FormatJson:
		table, err = ReadJson(body)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		span.RecordError(err)
		l.tel.ReportWarning(report_locator_read, fmt.Errorf("read %s: %w", link, err))
		return quiz.Table{}, false
	}
	return table, true
}
