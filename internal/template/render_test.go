package template

import (
	"net/url"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	fields := map[string]string{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"company":   "Initech",
		"link":      "https://decoy.example.com/sign-in?id=abc&src=email",
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{"double brace", "Hi {{firstName}} {{lastName}}", "Hi Ada Lovelace"},
		{"single brace", "Hi {firstName}", "Hi Ada"},
		{"mixed braces", "{firstName} works at {{company}}", "Ada works at Initech"},
		{"inner whitespace", "Hi {{ firstName }}", "Hi Ada"},
		{"missing field empty", "Dept: {department}.", "Dept: ."},
		{"repeated occurrences", "{firstName} {firstName}", "Ada Ada"},
		{"link field", `<a href="{{link}}">Sign in</a>`, `<a href="https://decoy.example.com/sign-in?id=abc&src=email">Sign in</a>`},
		{"no placeholders", "plain text", "plain text"},
		{"empty body", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.body, fields); got != tt.want {
				t.Fatalf("Render(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestRenderIgnoresNonPlaceholderBraces(t *testing.T) {
	// CSS-style blocks must not be mangled: "{ color: red }" has no single
	// identifier between braces.
	body := "<style>body { margin: 0 }</style>"
	if got := Render(body, nil); got != body {
		t.Fatalf("Render mangled non-placeholder braces: %q", got)
	}
}

func TestTrackingLink(t *testing.T) {
	link := TrackingLink("https://phish.example.com", "/sign-in", "aB3xYz9Qw12k")

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if u.Path != "/sign-in" {
		t.Fatalf("path = %q", u.Path)
	}
	q := u.Query()
	if q.Get("id") != "aB3xYz9Qw12k" {
		t.Fatalf("id = %q", q.Get("id"))
	}
	if q.Get("src") != "email" {
		t.Fatalf("src = %q", q.Get("src"))
	}
}

func TestTrackingLinkTrailingSlashAndBarePath(t *testing.T) {
	link := TrackingLink("https://phish.example.com/", "sign-in", "tok")
	if strings.Contains(link, "//sign-in") {
		t.Fatalf("double slash in link: %s", link)
	}
	if !strings.HasPrefix(link, "https://phish.example.com/sign-in?") {
		t.Fatalf("unexpected link: %s", link)
	}
}
