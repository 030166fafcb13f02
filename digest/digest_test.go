package digest

import "testing"

func TestOfIsStableAndDistinguishes(t *testing.T) {
	a := Of([]byte("hello"))
	b := Of([]byte("hello"))
	c := Of([]byte("world"))
	if a != b {
		t.Fatalf("expected stable digest, got %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("expected different content to hash differently")
	}
	if a[:7] != "blake3:" {
		t.Fatalf("expected blake3: prefix, got %q", a)
	}
}
