// Package decoder recovers the payload a quiz page hides behind an `atob(...)` call.
package decoder

import (
	"encoding/base64"
	"errors"
	"fmt"
	"quizagent/internal/quiz"
	"regexp"
	"strings"
	"unicode"
)

var ErrMalformedPayload = errors.New("malformed obfuscated payload")

// first match wins, the three groups are the single, double and backtick quoted forms
var atobRegex = regexp.MustCompile("atob\\(\\s*(?:'([^']*)'|\"([^\"]*)\"|`([^`]*)`)\\s*\\)")

// Decode looks for an `atob(<quoted base64>)` marker in html and decodes it.
//
// The returned payload is always usable: when there is no marker, or the marker
// does not hold valid base64, the raw html is returned with WasObfuscated=false.
// A non-nil error only reports the second case and never needs to stop the caller.
func Decode(html string) (quiz.Payload, error) {
	raw := quiz.Payload{Text: html}

	groups := atobRegex.FindStringSubmatch(html)
	if groups == nil {
		return raw, nil
	}
	captured := groups[1] + groups[2] + groups[3]

	decoded, err := decodeBase64(captured)
	if err != nil {
		return raw, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	return quiz.Payload{
		Text:          strings.ToValidUTF8(string(decoded), ""),
		WasObfuscated: true,
	}, nil
}

func decodeBase64(text string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if compact == "" {
		return nil, fmt.Errorf("empty base64 text")
	}

	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		out, err := enc.DecodeString(compact)
		if err == nil {
			return out, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
