package site

import "testing"

func TestLoad(t *testing.T) {
	yaml := []byte(`
name: My Blog
domains: [example.com, www.example.com]
explicitSeeds: [/robots.txt]
notFoundAllowlist: ["/wp-"]
concurrency: 5
`)
	c, err := Load(yaml)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Name != "My Blog" || c.Concurrency != 5 {
		t.Fatalf("unexpected config: %+v", c)
	}
	if !c.IsLocalHost("www.example.com") || !c.IsLocalHost("example.com") {
		t.Fatalf("expected both host forms local: %+v", c.Domains)
	}
	if c.IsLocalHost("evil.com") {
		t.Fatal("expected evil.com to not be local")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	if _, err := Load([]byte("bogusField: true\n")); err == nil {
		t.Fatal("expected unknown-field error")
	}
}
