// Package testutil serves fake quiz pages and submit endpoints for tests.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Obfuscate hides html behind an atob call the way quiz pages do.
func Obfuscate(html string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(html))
	return fmt.Sprintf(
		"<html><body><div id=\"q\"></div><script>document.querySelector(\"#q\").innerHTML = atob(`%s`);</script></body></html>",
		encoded,
	)
}

// Responder decides the reply to the n-th submission (1 based).
type Responder func(n int, body map[string]any) (status int, response string)

// QuizServer serves Pages by path and records every POST to /submit.
type QuizServer struct {
	*httptest.Server

	mu          sync.Mutex
	pages       map[string]string
	renders     map[string]int
	submissions []map[string]any
	respond     Responder
}

func NewQuizServer(t testing.TB, respond Responder) *QuizServer {
	s := &QuizServer{
		pages:   map[string]string{},
		renders: map[string]int{},
		respond: respond,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *QuizServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Method == http.MethodPost && r.URL.Path == "/submit" {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		s.submissions = append(s.submissions, body)

		status, res := http.StatusOK, `{}`
		if s.respond != nil {
			status, res = s.respond(len(s.submissions), body)
		}
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(res))
		return
	}

	page, ok := s.pages[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.renders[r.URL.Path]++
	w.Header().Set("content-type", "text/html")
	w.Write([]byte(page))
}

func (s *QuizServer) SetPage(path, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = html
}

// Origin is the markup that advertises this server as the submit target.
func (s *QuizServer) Origin() string {
	return fmt.Sprintf(`<p>Post your answer to <span class="origin">%s</span>/submit</p>`, s.URL)
}

func (s *QuizServer) Renders() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.renders))
	for k, v := range s.renders {
		out[k] = v
	}
	return out
}

func (s *QuizServer) Submissions() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.submissions))
	copy(out, s.submissions)
	return out
}
