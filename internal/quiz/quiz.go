// Package quiz holds the data model shared by every stage of a quiz chain.
package quiz

import (
	"encoding/json"
	"strconv"
)

// Task is the immutable input of one chain run.
type Task struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	Url    string `json:"url"`
}

// RenderedPage is the html of a quiz page after its scripts ran. It is owned by a
// single step and discarded once decoded.
type RenderedPage struct {
	Url  string
	Html string
}

// Payload is the decoded content of a quiz page. WasObfuscated is false when no
// obfuscated payload was found and Text is the raw html.
type Payload struct {
	Text          string
	WasObfuscated bool
}

// Table is a tabular data source in document order. Columns is nil for headerless tables.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the index of the column named exactly `name`, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

type SourceKind string

const (
	SourceInline  SourceKind = "inline"
	SourceLink    SourceKind = "link"
	SourceQuizUrl SourceKind = "quiz_url"
	SourceJson    SourceKind = "json"
)

// Provenance records where a table was found.
type Provenance struct {
	Kind SourceKind
	// Url is empty for inline tables.
	Url  string
}

type LocatedTable struct {
	Table      Table
	Provenance Provenance
}

type AnswerKind int

const (
	AnswerUnresolved AnswerKind = iota
	AnswerNumeric
	AnswerText
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerNumeric:
		return "numeric"
	case AnswerText:
		return "text"
	default:
		return "unresolved"
	}
}

// Answer is a tagged union over a number, a piece of text or an unresolved reason.
// An unresolved answer is still submitted, its reason is sent as the answer.
type Answer struct {
	Kind   AnswerKind
	Number float64
	Text   string
	Reason string
}

func Numeric(n float64) Answer {
	return Answer{Kind: AnswerNumeric, Number: n}
}

func Text(s string) Answer {
	return Answer{Kind: AnswerText, Text: s}
}

func Unresolved(reason string) Answer {
	return Answer{Kind: AnswerUnresolved, Reason: reason}
}

func (a Answer) String() string {
	switch a.Kind {
	case AnswerNumeric:
		return strconv.FormatFloat(a.Number, 'f', -1, 64)
	case AnswerText:
		return a.Text
	default:
		return a.Reason
	}
}

// MarshalJSON serializes the answer per its tag: numbers as JSON numbers, text and
// unresolved reasons as JSON strings.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerNumeric:
		return json.Marshal(a.Number)
	case AnswerText:
		return json.Marshal(a.Text)
	default:
		return json.Marshal(a.Reason)
	}
}

// Submission is the body posted to a submit target.
type Submission struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	Url    string `json:"url"`
	Answer Answer `json:"answer"`
}

type Status string

const (
	Accepted Status = "accepted"
	Rejected Status = "rejected"
)

type SubmissionResult struct {
	Status  Status `json:"status"`
	// NextUrl is empty when the chain ends.
	NextUrl string `json:"next_url,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
