package urlpolicy

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestToPath(t *testing.T) {
	p := New("static", nil, nil)

	cases := []struct {
		in   string
		want string
	}{
		{"https://example.com/", "static/index.html"},
		{"https://example.com/a/", "static/a/index.html"},
		{"https://example.com/a", "static/a/index.html"},
		{"https://example.com/style.css?v=abc123", "static/style.abc123.css"},
		{"https://example.com/content/media/clip.mp4", "static/content/media/clip.mp4"},
		{"https://example.com/content/files/report", "static/content/files/report"},
	}
	for _, c := range cases {
		got, err := p.ToPath(mustParse(t, c.in))
		if err != nil {
			t.Fatalf("ToPath(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ToPath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// TestRoundTrip verifies property 3 of spec §8: pathToUrl(urlToPath(u)) == u
// for every URL the policy accepts.
func TestRoundTrip(t *testing.T) {
	p := New("static", nil, nil)
	urls := []string{
		"https://example.com/",
		"https://example.com/a/",
		"https://example.com/style.css?v=abc123",
		"https://example.com/content/media/clip.mp4",
		"https://example.com/content/files/report",
	}
	for _, raw := range urls {
		u := mustParse(t, raw)
		diskPath, err := p.ToPath(u)
		if err != nil {
			t.Fatalf("ToPath(%q): %v", raw, err)
		}
		got, err := p.FromPath(u.Scheme, u.Host, diskPath)
		if err != nil {
			t.Fatalf("FromPath(%q): %v", diskPath, err)
		}
		want := p.Normalize(u)
		if got.String() != want.String() {
			t.Errorf("round trip %q: got %q, want %q", raw, got.String(), want.String())
		}
	}
}

func TestFromPathRejectsHiddenAndIgnored(t *testing.T) {
	p := New("static", nil, []string{"CNAME", "404.html"})

	if _, err := p.FromPath("https", "example.com", "static/CNAME"); err == nil {
		t.Error("expected CNAME to be rejected")
	}
	if _, err := p.FromPath("https", "example.com", "static/.well-known/thing"); err == nil {
		t.Error("expected dotfile to be rejected")
	}
}
