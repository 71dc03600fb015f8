package pages

import (
	"bytes"
	"strings"
	"testing"
)

func TestTemplatesParsed(t *testing.T) {
	for _, name := range []string{"home.html", "results.html", "noresults.html", "error.html"} {
		if Templates.Lookup(name) == nil {
			t.Errorf("template %s not found", name)
		}
	}
}

func TestErrorPageEscapesQuery(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{
		"Title":   "502 Bad Gateway",
		"Message": "The music catalog is not responding.",
		"Query":   `"><script>alert(1)</script>`,
	}
	if err := Templates.ExecuteTemplate(&buf, "error.html", data); err != nil {
		t.Fatalf("ExecuteTemplate() error = %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Errorf("query was not escaped:\n%s", buf.String())
	}
}
