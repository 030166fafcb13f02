package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndbroadbent/ghost-static-site-generator/validatorcache"
)

func TestFetchOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	vc := validatorcache.New(t.TempDir() + "/manifest.json")
	f := New(vc)
	res := f.Fetch(context.Background(), srv.URL+"/")

	if res.Kind != KindOK {
		t.Fatalf("expected KindOK, got %v", res.Kind)
	}
	if string(res.Body) != "<html></html>" {
		t.Fatalf("unexpected body: %s", res.Body)
	}
	e, ok := vc.Lookup(srv.URL + "/")
	if !ok || e.ETag != `"v1"` {
		t.Fatalf("expected validator updated, got %+v ok=%v", e, ok)
	}
}

func TestFetchConditionalNotModified(t *testing.T) {
	var sawINM string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawINM = r.Header.Get("If-None-Match")
		if sawINM == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("body"))
	}))
	defer srv.Close()

	vc := validatorcache.New(t.TempDir() + "/manifest.json")
	f := New(vc)
	url := srv.URL + "/"

	first := f.Fetch(context.Background(), url)
	if first.Kind != KindOK {
		t.Fatalf("expected first fetch OK, got %v", first.Kind)
	}

	second := f.Fetch(context.Background(), url)
	if second.Kind != KindNotModified {
		t.Fatalf("expected KindNotModified, got %v", second.Kind)
	}
	if sawINM != `"v1"` {
		t.Fatalf("expected If-None-Match to be sent, got %q", sawINM)
	}
}

func TestFetchGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(validatorcache.New(t.TempDir() + "/manifest.json"))
	res := f.Fetch(context.Background(), srv.URL+"/missing")
	if res.Kind != KindGone {
		t.Fatalf("expected KindGone, got %v", res.Kind)
	}
}

func TestFetchTransportError(t *testing.T) {
	f := New(validatorcache.New(t.TempDir() + "/manifest.json"))
	res := f.Fetch(context.Background(), "http://127.0.0.1:1/unreachable")
	if res.Kind != KindTransport {
		t.Fatalf("expected KindTransport, got %v", res.Kind)
	}
}

func TestIsBinary(t *testing.T) {
	cases := []struct {
		ct, path string
		want     bool
	}{
		{"text/html", "/a/", false},
		{"image/png", "/a.png", true},
		{"", "/content/media/clip.mp4", true},
		{"text/css", "/style.css", false},
		{"application/pdf", "/doc", true},
	}
	for _, c := range cases {
		if got := IsBinary(c.ct, c.path); got != c.want {
			t.Errorf("IsBinary(%q, %q) = %v, want %v", c.ct, c.path, got, c.want)
		}
	}
}
