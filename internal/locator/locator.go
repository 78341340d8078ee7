// Package locator finds the submit endpoint advertised by a quiz page.
package locator

import (
	"errors"
	"strings"

	"quizagent/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

var ErrSubmitTargetNotFound = errors.New("submit target not found")

// SubmitUrl returns the text of the first `span.origin` element suffixed with
// "/submit". A missing span or a span with no text is ErrSubmitTargetNotFound.
func SubmitUrl(pageHtml string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHtml))
	if err != nil {
		return "", err
	}

	origin := doc.Find("span.origin").First()
	if origin.Length() == 0 {
		return "", ErrSubmitTargetNotFound
	}

	text := strings.TrimSpace(htmlutil.GetText(origin.Nodes[0]))
	text = strings.TrimRight(text, "/")
	if text == "" {
		return "", ErrSubmitTargetNotFound
	}

	return text + "/submit", nil
}
