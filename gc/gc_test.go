package gc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ndbroadbent/ghost-static-site-generator/graph"
	"github.com/ndbroadbent/ghost-static-site-generator/urlpolicy"
)

func writeFile(t *testing.T, root, rel string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestRunDeletesUnreachableAndKeepsEntries(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "index.html")
	writeFile(t, root, "a/index.html")   // reachable via graph edge
	writeFile(t, root, "ghost/index.html") // orphaned: no edge, not an entry

	policy := urlpolicy.New(root, nil, nil)
	g := graph.New("")
	g.Put(graph.NewNode("http://example.com/", []string{"http://example.com/a/"}, nil, time.Now()))

	res := Run(policy, g, []string{"http://example.com/"}, "http", "example.com")

	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if _, err := os.Stat(filepath.Join(root, "ghost", "index.html")); !os.IsNotExist(err) {
		t.Errorf("expected orphaned ghost/index.html to be deleted")
	}
	if _, err := os.Stat(filepath.Join(root, "ghost")); !os.IsNotExist(err) {
		t.Errorf("expected emptied ghost/ directory to be pruned")
	}
	if _, err := os.Stat(filepath.Join(root, "index.html")); err != nil {
		t.Errorf("expected entry-seeded index.html to survive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "index.html")); err != nil {
		t.Errorf("expected graph-reachable a/index.html to survive: %v", err)
	}
}

func TestRunKeepsEntrySeedWithoutGraphNode(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sitemap.xml")

	policy := urlpolicy.New(root, nil, nil)
	g := graph.New("")

	res := Run(policy, g, []string{"http://example.com/sitemap.xml"}, "http", "example.com")

	if len(res.Deleted) != 0 {
		t.Errorf("expected no deletions, an entry with no graph node must still survive, got %v", res.Deleted)
	}
}

func TestRunSkipsIgnoredPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "CNAME")

	policy := urlpolicy.New(root, nil, []string{"CNAME"})
	g := graph.New("")

	res := Run(policy, g, nil, "http", "example.com")

	if len(res.Deleted) != 0 {
		t.Errorf("expected ignored path to be skipped, got deletions %v", res.Deleted)
	}
	if _, err := os.Stat(filepath.Join(root, "CNAME")); err != nil {
		t.Errorf("expected CNAME to survive: %v", err)
	}
}
