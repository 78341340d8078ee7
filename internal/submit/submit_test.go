package submit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quizagent/internal/components/telemetry"
	"quizagent/internal/quiz"

	"github.com/stretchr/testify/require"
)

func TestSubmit(t *testing.T) {
	var got map[string]any
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"correct": true, "url": "https://quiz.example.com/q2", "reason": null}`))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, &telemetry.RecorderAPI{})
	result, err := client.Submit(context.Background(), server.URL+"/submit", quiz.Submission{
		Email:  "a@b.com",
		Secret: "S",
		Url:    "https://quiz.example.com/q1",
		Answer: quiz.Numeric(30),
	})
	require.NoError(t, err)
	require.Equal(t, quiz.SubmissionResult{
		Status:  quiz.Accepted,
		NextUrl: "https://quiz.example.com/q2",
	}, result)

	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "/submit", path)
	require.Equal(t, map[string]any{
		"email":  "a@b.com",
		"secret": "S",
		"url":    "https://quiz.example.com/q1",
		"answer": float64(30),
	}, got)
}

func TestParseResponse(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		expected quiz.SubmissionResult
	}{
		{
			name:     "empty object ends the chain",
			body:     `{}`,
			expected: quiz.SubmissionResult{Status: quiz.Accepted},
		},
		{
			name:     "empty url ends the chain",
			body:     `{"correct": true, "url": ""}`,
			expected: quiz.SubmissionResult{Status: quiz.Accepted},
		},
		{
			name: "rejected still continues",
			body: `{"correct": false, "reason": "wrong sum", "url": "https://quiz.example.com/q3"}`,
			expected: quiz.SubmissionResult{
				Status:  quiz.Rejected,
				NextUrl: "https://quiz.example.com/q3",
				Reason:  "wrong sum",
			},
		},
		{
			name:     "extra fields ignored",
			body:     ` {"message": "ok", "delay": 3} `,
			expected: quiz.SubmissionResult{Status: quiz.Accepted},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			result, err := parseResponse([]byte(c.body))
			require.NoError(t, err)
			require.Equal(t, c.expected, result)
		})
	}
}

func TestParseResponseMalformed(t *testing.T) {
	for _, body := range []string{``, `ok`, `[1, 2]`, `{"url": 5}`, `{"url": "x"`} {
		_, err := parseResponse([]byte(body))
		require.ErrorIs(t, err, ErrMalformedResponse, body)
	}
}

func TestSubmitTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "down"}`))
	}))
	defer server.Close()

	tel := &telemetry.RecorderAPI{}
	client := NewClient(5*time.Second, tel)
	_, err := client.Submit(context.Background(), server.URL+"/submit", quiz.Submission{Answer: quiz.Text("x")})
	require.ErrorIs(t, err, ErrSubmitTransport)
	require.True(t, tel.Has("warning", report_client_submit))

	server.Close()
	_, err = client.Submit(context.Background(), server.URL+"/submit", quiz.Submission{Answer: quiz.Text("x")})
	require.ErrorIs(t, err, ErrSubmitTransport)
}

func TestSubmitMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>thanks</html>`))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, &telemetry.RecorderAPI{})
	_, err := client.Submit(context.Background(), server.URL, quiz.Submission{Answer: quiz.Unresolved("LLM could not parse answer")})
	require.ErrorIs(t, err, ErrMalformedResponse)
}
