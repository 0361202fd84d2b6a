package sanitizer

import (
	"strings"
	"testing"
)

func TestText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  great bot  ", "great bot"},
		{"<b>bold</b> claim", "bold claim"},
		{"<script>alert(1)</script>ok", "ok"},
		{"fish & chips", "fish & chips"},
		{"line one\nline two", "line one\nline two"},
	}

	for _, tt := range tests {
		if got := Text(tt.in); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLine(t *testing.T) {
	if got := Line("  a\n\n b   c "); got != "a b c" {
		t.Fatalf("Line() = %q", got)
	}
}

func TestMarkdown(t *testing.T) {
	if got := Markdown(""); got != "" {
		t.Fatalf("Markdown(\"\") = %q", got)
	}

	got := Markdown("**fast** bot")
	if !strings.Contains(got, "<strong>fast</strong>") {
		t.Fatalf("emphasis not rendered: %q", got)
	}

	got = Markdown("hi <script>alert(1)</script> [site](https://example.com)")
	if strings.Contains(got, "<script") {
		t.Fatalf("script survived: %q", got)
	}
	if !strings.Contains(got, `target="_blank"`) {
		t.Fatalf("external link not hardened: %q", got)
	}
}
