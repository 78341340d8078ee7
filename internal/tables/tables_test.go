package tables

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quizagent/internal/components/telemetry"
	"quizagent/internal/quiz"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/data.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("name,value\na,1\nb,2\n"))
	})
	mux.HandleFunc("/quiz.tsv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("value\n5\n6\n"))
	})
	mux.HandleFunc("/quiz.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`[{"value": 3}, {"value": 4}]`))
	})
	mux.HandleFunc("/missing.csv", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestLocator(tel telemetry.API) *Locator {
	return NewLocator(Options{Timeout: 5 * time.Second}, tel)
}

func TestFormatOf(t *testing.T) {
	cases := []struct {
		link     string
		expected Format
	}{
		{"https://x.example.com/a.csv", FormatCsv},
		{"https://x.example.com/a.CSV?download=1", FormatCsv},
		{"data.tsv", FormatTsv},
		{"https://x.example.com/book.xlsx#sheet1", FormatXlsx},
		{"https://x.example.com/api/items.json", FormatJson},
		{"https://x.example.com/quiz-834", FormatNone},
		{"https://x.example.com/a.csv/page", FormatNone},
	}
	for _, c := range cases {
		require.Equal(t, c.expected, FormatOf(c.link), c.link)
	}
}

func TestLocateInlineFirst(t *testing.T) {
	server := newTestServer(t)
	tel := &telemetry.RecorderAPI{}
	locator := newTestLocator(tel)

	payload := quiz.Payload{Text: `
		<a href="/files/data.csv">data</a>
		<table><tr><th>value</th></tr><tr><td>9</td></tr></table>
	`}
	found := locator.Locate(context.Background(), payload, server.URL+"/quiz-1")

	require.Len(t, found, 1)
	require.Equal(t, quiz.SourceInline, found[0].Provenance.Kind)
	require.Equal(t, [][]string{{"9"}}, found[0].Table.Rows)
}

func TestLocateRelativeLink(t *testing.T) {
	server := newTestServer(t)
	locator := newTestLocator(&telemetry.RecorderAPI{})

	payload := quiz.Payload{Text: `<p>Download <a href="ignored.pdf">pdf</a> or <a href="files/data.csv">csv</a></p>`}
	found := locator.Locate(context.Background(), payload, server.URL+"/quiz-1")

	require.Len(t, found, 1)
	require.Equal(t, quiz.SourceLink, found[0].Provenance.Kind)
	require.Equal(t, server.URL+"/files/data.csv", found[0].Provenance.Url)
	require.Equal(t, []string{"name", "value"}, found[0].Table.Columns)
	require.Equal(t, [][]string{{"a", "1"}, {"b", "2"}}, found[0].Table.Rows)
}

func TestLocateQuizUrl(t *testing.T) {
	server := newTestServer(t)
	locator := newTestLocator(&telemetry.RecorderAPI{})

	found := locator.Locate(context.Background(), quiz.Payload{Text: "<p>sum it</p>"}, server.URL+"/quiz.tsv")
	require.Len(t, found, 1)
	require.Equal(t, quiz.SourceQuizUrl, found[0].Provenance.Kind)
	require.Equal(t, [][]string{{"5"}, {"6"}}, found[0].Table.Rows)

	found = locator.Locate(context.Background(), quiz.Payload{Text: "<p>sum it</p>"}, server.URL+"/quiz.json")
	require.Len(t, found, 1)
	require.Equal(t, quiz.SourceJson, found[0].Provenance.Kind)
	require.Equal(t, []string{"value"}, found[0].Table.Columns)
	require.Equal(t, [][]string{{"3"}, {"4"}}, found[0].Table.Rows)
}

func TestLocateNothing(t *testing.T) {
	server := newTestServer(t)
	locator := newTestLocator(&telemetry.RecorderAPI{})

	found := locator.Locate(context.Background(), quiz.Payload{Text: `"answer": 42`}, server.URL+"/quiz-1")
	require.Empty(t, found)
}

func TestLocateDownloadFailure(t *testing.T) {
	server := newTestServer(t)
	tel := &telemetry.RecorderAPI{}
	locator := newTestLocator(tel)

	payload := quiz.Payload{Text: `<a href="/missing.csv">csv</a>`}
	found := locator.Locate(context.Background(), payload, server.URL+"/quiz-1")

	require.Empty(t, found)
	require.True(t, tel.Has("warning", report_locator_download))
}

func TestLocateRateLimited(t *testing.T) {
	server := newTestServer(t)
	locator := NewLocator(Options{Timeout: 5 * time.Second, RatePerSecond: 100}, &telemetry.RecorderAPI{})

	found := locator.QuizUrl(context.Background(), server.URL+"/quiz.json")
	require.Len(t, found, 1)
}
