package render

import (
	"strings"
	"testing"
)

func TestIsMarkdown(t *testing.T) {
	if !IsMarkdown("text/markdown; charset=utf-8") {
		t.Fatalf("expected text/markdown to be detected")
	}
	if IsMarkdown("text/plain") {
		t.Fatalf("did not expect text/plain to be detected as markdown")
	}
}

func TestMarkdownSanitizesScriptTags(t *testing.T) {
	out, err := Markdown("# hi\n\n<script>alert(1)</script>\n\nsome *text*")
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	if strings.Contains(out, "<script>") {
		t.Fatalf("expected script tag to be stripped, got %q", out)
	}
	if !strings.Contains(out, "<h1>hi</h1>") {
		t.Fatalf("expected heading to render, got %q", out)
	}
	if !strings.Contains(out, "<em>text</em>") {
		t.Fatalf("expected emphasis to render, got %q", out)
	}
}

func TestMarkdownStripsJavascriptURLs(t *testing.T) {
	out, err := Markdown(`[click me](javascript:alert(1))`)
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	if strings.Contains(out, "javascript:") {
		t.Fatalf("expected javascript: URL to be stripped, got %q", out)
	}
}

func TestPreformattedEscapesHTML(t *testing.T) {
	out := Preformatted("<b>bold</b> & stuff")
	want := "<pre>&lt;b&gt;bold&lt;/b&gt; &amp; stuff</pre>"
	if out != want {
		t.Fatalf("Preformatted() = %q, want %q", out, want)
	}
}

func TestBodyDispatchesByContentType(t *testing.T) {
	html, err := Body("text/markdown", "**bold**")
	if err != nil {
		t.Fatalf("Body() error = %v", err)
	}
	if !strings.Contains(html, "<strong>bold</strong>") {
		t.Fatalf("expected markdown rendering, got %q", html)
	}

	plain, err := Body("text/plain", "<b>raw</b>")
	if err != nil {
		t.Fatalf("Body() error = %v", err)
	}
	if plain != "<pre>&lt;b&gt;raw&lt;/b&gt;</pre>" {
		t.Fatalf("expected escaped preformatted body, got %q", plain)
	}
}
