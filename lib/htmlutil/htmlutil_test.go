package htmlutil

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
)

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<p>Download <a href="files/data.csv">the
		   data</a></p>
		<a href="https://cdn.example.com/./x.xlsx#sheet">sheet</a>
		<a name="anchor-only">no href</a>
		<a href="/abs/data.json">json</a>
	`))
	if err != nil {
		t.Fatal(err)
	}

	base, err := url.Parse("https://quiz.example.com/demo/q1")
	if err != nil {
		t.Fatal(err)
	}

	anchors := GetAnchors(context.Background(), doc.Find("a"), base)
	expected := []Anchor{
		{Name: "the data", Href: "https://quiz.example.com/demo/files/data.csv"},
		{Name: "sheet", Href: "https://cdn.example.com/x.xlsx"},
		{Name: "json", Href: "https://quiz.example.com/abs/data.json"},
	}
	if diff := cmp.Diff(expected, anchors); diff != "" {
		t.Fatal(diff)
	}
}

func TestGetAnchorsWithoutBase(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<a href="data.csv">x</a>`))
	if err != nil {
		t.Fatal(err)
	}
	anchors := GetAnchors(context.Background(), doc.Find("a"), nil)
	if diff := cmp.Diff([]Anchor{{Name: "x", Href: "data.csv"}}, anchors); diff != "" {
		t.Fatal(diff)
	}
}

func TestCleanText(t *testing.T) {
	if got := CleanText("  a \t\n  b\u0000c  "); got != "a bc" {
		t.Fatalf("unexpected %q", got)
	}
}
