package render

import (
	"context"
	"fmt"
	"time"

	"quizagent/internal/components/assert"
	"quizagent/internal/components/telemetry"
	"quizagent/internal/quiz"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_browser_render = "browser.render"
	report_browser_close  = "browser.close"
)

var tracer = otel.Tracer("quizagent.internal.render")

type BrowserOptions struct {
	// DebuggerUrl connects to a running browser instead of launching one.
	DebuggerUrl string
	Bin         string
	Headless    bool
	// IdleTime is how long the network must stay quiet before the page is read.
	IdleTime time.Duration
	Timeout  time.Duration
}

// Browser renders pages in a headless chromium driven over the devtools
// protocol. Each render gets its own incognito context so concurrent chains do
// not share cookies or storage.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	idle     time.Duration
	timeout  time.Duration
	tel      telemetry.API
}

func NewBrowser(ctx context.Context, opts BrowserOptions, tel telemetry.API) (*Browser, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("render", tel)

	var l *launcher.Launcher
	controlUrl := opts.DebuggerUrl
	if controlUrl == "" {
		l = launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("%w: launch browser: %w", ErrRender, err)
		}
		controlUrl = u
	}

	browser := rod.New().ControlURL(controlUrl).Context(ctx)
	err := browser.Connect()
	if err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("%w: connect to browser: %w", ErrRender, err)
	}

	idle := opts.IdleTime
	if idle <= 0 {
		idle = 500 * time.Millisecond
	}

	return &Browser{
		browser:  browser,
		launcher: l,
		idle:     idle,
		timeout:  opts.Timeout,
		tel:      tel,
	}, nil
}

func (b *Browser) Render(ctx context.Context, url string) (quiz.RenderedPage, error) {
	ctx, span := tracer.Start(ctx, "browser:Render")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	fail := func(step string, err error) (quiz.RenderedPage, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, step)
		b.tel.ReportWarning(report_browser_render, fmt.Errorf("%s %s: %w", step, url, err))
		return quiz.RenderedPage{}, fmt.Errorf("%w: %s %s: %w", ErrRender, step, url, err)
	}

	incognito, err := b.browser.Incognito()
	if err != nil {
		return fail("create context", err)
	}
	defer func() {
		err := incognito.Close()
		if err != nil {
			b.tel.ReportDebug(report_browser_close, err)
		}
	}()

	page, err := incognito.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return fail("open page", err)
	}

	waitIdle := page.WaitRequestIdle(b.idle, nil, nil, nil)
	err = page.Navigate(url)
	if err != nil {
		return fail("navigate", err)
	}
	err = page.WaitLoad()
	if err != nil {
		return fail("wait load", err)
	}
	waitIdle()
	if ctx.Err() != nil {
		return fail("wait idle", ctx.Err())
	}

	html, err := page.HTML()
	if err != nil {
		return fail("read html", err)
	}
	return quiz.RenderedPage{Url: url, Html: html}, nil
}

func (b *Browser) Close() error {
	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return err
}
