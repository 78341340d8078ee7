package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quizagent/internal/components/telemetry"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/require"
)

const scriptedPage = `<html><body>
<div id="result"></div>
<script>document.querySelector("#result").innerHTML = "rendered by script";</script>
</body></html>`

func newPageServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/quiz-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html")
		w.Write([]byte(scriptedPage))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestStaticRender(t *testing.T) {
	server := newPageServer(t)
	renderer := NewStatic(5*time.Second, &telemetry.RecorderAPI{})
	defer renderer.Close()

	page, err := renderer.Render(context.Background(), server.URL+"/quiz-1")
	require.NoError(t, err)
	require.Equal(t, server.URL+"/quiz-1", page.Url)
	require.Equal(t, scriptedPage, page.Html)
}

func TestStaticRenderFailure(t *testing.T) {
	server := newPageServer(t)
	tel := &telemetry.RecorderAPI{}
	renderer := NewStatic(5*time.Second, tel)

	_, err := renderer.Render(context.Background(), server.URL+"/gone")
	require.ErrorIs(t, err, ErrRender)
	require.True(t, tel.Has("warning", report_static_render))
}

func TestStaticRenderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	renderer := NewStatic(50*time.Millisecond, &telemetry.RecorderAPI{})
	_, err := renderer.Render(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrRender)
}

func TestBrowserRender(t *testing.T) {
	if _, found := launcher.LookPath(); !found {
		t.Skip("no chromium binary available")
	}

	server := newPageServer(t)
	ctx := context.Background()
	renderer, err := NewBrowser(ctx, BrowserOptions{
		Headless: true,
		IdleTime: 200 * time.Millisecond,
		Timeout:  30 * time.Second,
	}, &telemetry.RecorderAPI{})
	require.NoError(t, err)
	defer renderer.Close()

	page, err := renderer.Render(ctx, server.URL+"/quiz-1")
	require.NoError(t, err)
	require.True(t, strings.Contains(page.Html, "rendered by script"), page.Html)
}
