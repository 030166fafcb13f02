package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/ndbroadbent/ghost-static-site-generator/fetcher"
	"github.com/ndbroadbent/ghost-static-site-generator/graph"
	"github.com/ndbroadbent/ghost-static-site-generator/urlpolicy"
	"github.com/ndbroadbent/ghost-static-site-generator/validatorcache"
)

// mustHostname extracts the bare hostname (no port) from an httptest.Server
// URL, matching the host form linkextract and the crawler compare against.
func mustHostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	return u.Hostname()
}

type testPage struct {
	body        []byte
	contentType string
	etag        string
}

func newTestServer(pages map[string]*testPage, hits map[string]*int) *httptest.Server {
	mux := http.NewServeMux()
	for path, page := range pages {
		path, page := path, page
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if hits != nil {
				*hits[path]++
			}
			w.Header().Set("ETag", page.etag)
			w.Header().Set("Content-Type", page.contentType)
			if page.etag != "" && r.Header.Get("If-None-Match") == page.etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Write(page.body)
		})
	}
	return httptest.NewServer(mux)
}

func newCrawlerFixture(t *testing.T, server *httptest.Server, validator *validatorcache.Cache, prev, next *graph.Graph) (*Crawler, string) {
	t.Helper()
	outDir := t.TempDir()
	policy := urlpolicy.New(outDir, nil, nil)
	f := fetcher.New(validator)
	f.Client = server.Client()
	cr := New(Options{OriginHost: mustHostname(server.URL), Concurrency: 2}, policy, f, validator, prev, next, nil)
	return cr, outDir
}

func TestColdRunWritesFilesAndGraph(t *testing.T) {
	root := &testPage{
		body:        []byte(`<html><body><a href="/page2.html">next</a><img src="/img.png"></body></html>`),
		contentType: "text/html",
		etag:        `"root-v1"`,
	}
	page2 := &testPage{
		body:        []byte(`<html><body>no links here</body></html>`),
		contentType: "text/html",
		etag:        `"page2-v1"`,
	}
	img := &testPage{
		body:        []byte("fake-png-bytes"),
		contentType: "image/png",
		etag:        `"img-v1"`,
	}
	server := newTestServer(map[string]*testPage{
		"/":           root,
		"/page2.html": page2,
		"/img.png":    img,
	}, nil)
	defer server.Close()

	validator := validatorcache.New(filepath.Join(t.TempDir(), "validator.json"))
	prev := graph.New(filepath.Join(t.TempDir(), "prev.json"))
	next := graph.New(filepath.Join(t.TempDir(), "graph.json"))
	cr, outDir := newCrawlerFixture(t, server, validator, prev, next)

	cr.Run(context.Background(), server.URL+"/", nil, "")

	if errs := cr.Errors(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if next.Len() != 2 {
		t.Fatalf("expected 2 graph nodes (root + page2), got %d", next.Len())
	}
	for _, p := range []string{"index.html", "page2.html", "img.png"} {
		if _, err := os.Stat(filepath.Join(outDir, p)); err != nil {
			t.Errorf("expected %s to be written: %v", p, err)
		}
	}
}

func TestWarmRunElidesWrites(t *testing.T) {
	root := &testPage{
		body:        []byte(`<html><body>stable</body></html>`),
		contentType: "text/html",
		etag:        `"root-v1"`,
	}
	hits := map[string]*int{"/": new(int)}
	server := newTestServer(map[string]*testPage{"/": root}, hits)
	defer server.Close()

	validator := validatorcache.New(filepath.Join(t.TempDir(), "validator.json"))
	firstGraph := graph.New(filepath.Join(t.TempDir(), "graph1.json"))
	outDir := t.TempDir()
	policy := urlpolicy.New(outDir, nil, nil)

	f1 := fetcher.New(validator)
	f1.Client = server.Client()
	host := mustHostname(server.URL)
	cr1 := New(Options{OriginHost: host, Concurrency: 1}, policy, f1, validator, graph.New(""), firstGraph, nil)
	cr1.Run(context.Background(), server.URL+"/", nil, "")

	info1, err := os.Stat(filepath.Join(outDir, "index.html"))
	if err != nil {
		t.Fatalf("expected index.html after cold run: %v", err)
	}

	secondGraph := graph.New(filepath.Join(t.TempDir(), "graph2.json"))
	f2 := fetcher.New(validator)
	f2.Client = server.Client()
	cr2 := New(Options{OriginHost: host, Concurrency: 1}, policy, f2, validator, firstGraph, secondGraph, nil)
	cr2.Run(context.Background(), server.URL+"/", nil, "")

	info2, err := os.Stat(filepath.Join(outDir, "index.html"))
	if err != nil {
		t.Fatalf("expected index.html to still exist after warm run: %v", err)
	}
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Errorf("expected warm run not to rewrite index.html, mtime changed")
	}
	if secondGraph.Len() != 1 {
		t.Errorf("expected warm run to carry the graph node forward, got %d nodes", secondGraph.Len())
	}
	if *hits["/"] != 2 {
		t.Errorf("expected exactly 2 requests (one per run), got %d", *hits["/"])
	}
}

func TestMissingOutputFileForcesRefetch(t *testing.T) {
	page := &testPage{
		body:        []byte(`<html><body>content</body></html>`),
		contentType: "text/html",
		etag:        `"v1"`,
	}
	hits := map[string]*int{"/": new(int)}
	server := newTestServer(map[string]*testPage{"/": page}, hits)
	defer server.Close()

	validator := validatorcache.New(filepath.Join(t.TempDir(), "validator.json"))
	outDir := t.TempDir()
	policy := urlpolicy.New(outDir, nil, nil)
	host := mustHostname(server.URL)

	g1 := graph.New(filepath.Join(t.TempDir(), "g1.json"))
	f1 := fetcher.New(validator)
	f1.Client = server.Client()
	cr1 := New(Options{OriginHost: host, Concurrency: 1}, policy, f1, validator, graph.New(""), g1, nil)
	cr1.Run(context.Background(), server.URL+"/", nil, "")

	if err := os.Remove(filepath.Join(outDir, "index.html")); err != nil {
		t.Fatalf("remove output file: %v", err)
	}

	g2 := graph.New(filepath.Join(t.TempDir(), "g2.json"))
	f2 := fetcher.New(validator)
	f2.Client = server.Client()
	cr2 := New(Options{OriginHost: host, Concurrency: 1}, policy, f2, validator, g1, g2, nil)
	cr2.Run(context.Background(), server.URL+"/", nil, "")

	if _, err := os.Stat(filepath.Join(outDir, "index.html")); err != nil {
		t.Fatalf("expected missing file to be rewritten after forced refetch: %v", err)
	}
	if *hits["/"] != 3 {
		t.Errorf("expected 3 requests (cold 200, warm 304, forced 200), got %d", *hits["/"])
	}
	if errs := cr2.Errors(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestNotFoundAllowlistSuppressesError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gone.html", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	validator := validatorcache.New(filepath.Join(t.TempDir(), "validator.json"))
	outDir := t.TempDir()
	policy := urlpolicy.New(outDir, nil, nil)
	f := fetcher.New(validator)
	f.Client = server.Client()
	host := mustHostname(server.URL)
	prev := graph.New("")
	next := graph.New(filepath.Join(t.TempDir(), "graph.json"))

	cr := New(Options{OriginHost: host, Concurrency: 1, NotFoundAllowlist: []string{"/gone.html"}}, policy, f, validator, prev, next, nil)
	cr.Run(context.Background(), server.URL+"/gone.html", nil, "")

	if errs := cr.Errors(); len(errs) != 0 {
		t.Fatalf("expected allowlisted 404 to be suppressed, got %v", errs)
	}
}

func TestRSSLastBuildDateElision(t *testing.T) {
	bodyV1 := []byte(`<rss><channel><lastBuildDate>Mon, 01 Jan 2024 00:00:00 GMT</lastBuildDate><title>t</title></channel></rss>`)
	bodyV2 := []byte(`<rss><channel><lastBuildDate>Tue, 02 Jan 2024 00:00:00 GMT</lastBuildDate><title>t</title></channel></rss>`)

	serveVersion := bodyV1
	mux := http.NewServeMux()
	mux.HandleFunc("/feed/rss", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write(serveVersion)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	validator := validatorcache.New(filepath.Join(t.TempDir(), "validator.json"))
	outDir := t.TempDir()
	policy := urlpolicy.New(outDir, nil, nil)
	host := mustHostname(server.URL)

	f1 := fetcher.New(validator)
	f1.Client = server.Client()
	g1 := graph.New(filepath.Join(t.TempDir(), "g1.json"))
	cr1 := New(Options{OriginHost: host, Concurrency: 1}, policy, f1, validator, graph.New(""), g1, nil)
	cr1.Run(context.Background(), server.URL+"/feed/rss", nil, "")

	rssOutputPath := filepath.Join(outDir, "feed", "rss", "index.html")
	info1, err := os.Stat(rssOutputPath)
	if err != nil {
		t.Fatalf("expected feed/rss/index.html to be written: %v", err)
	}

	// The handler never sets an ETag, so every fetch is an unconditional
	// 200 — this exercises the lastBuildDate elision logic itself rather
	// than the NotModified path.
	serveVersion = bodyV2

	f2 := fetcher.New(validator)
	f2.Client = server.Client()
	g2 := graph.New(filepath.Join(t.TempDir(), "g2.json"))
	cr2 := New(Options{OriginHost: host, Concurrency: 1}, policy, f2, validator, g1, g2, nil)
	cr2.Run(context.Background(), server.URL+"/feed/rss", nil, "")

	info2, err := os.Stat(rssOutputPath)
	if err != nil {
		t.Fatalf("expected feed/rss/index.html to still exist: %v", err)
	}
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Errorf("expected lastBuildDate-only change to elide the write, mtime changed")
	}
}
