// Package gc implements the Reachability GC of spec §4.6: after a crawl
// settles, it walks the output tree, translates each file back to a URL via
// the URL/Path Policy, and deletes anything unreachable from the entry seed
// through the freshly-built LinkGraph.
//
// Grounded on the teacher's CrawlP shutdown/commit sequence (settle, then
// reconcile) generalized from an in-memory KV store to a real directory
// tree — the teacher has no GC of its own since bbolt never accumulates
// orphans the way a mirrored disk tree does.
package gc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ndbroadbent/ghost-static-site-generator/graph"
	"github.com/ndbroadbent/ghost-static-site-generator/urlpolicy"
)

// Result reports what the GC did.
type Result struct {
	Deleted []string // output-relative paths removed
	Errors  []error  // failed deletions; logged by the caller, never fatal
}

// Run implements spec §4.6 steps 1-4: BFS reachability from entries, walk
// the tree, delete unreachable files, then prune emptied directories.
func Run(policy *urlpolicy.Policy, g *graph.Graph, entries []string, scheme, host string) Result {
	reachable := g.Reachable(entries)

	var res Result
	var toDelete []string

	filepath.Walk(policy.OutputRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			res.Errors = append(res.Errors, err)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		u, rejErr := policy.FromPath(scheme, host, p)
		if rejErr != nil {
			// Ignored/hidden/outside-policy file: never a GC candidate
			// (spec §4.1/§4.6 step 3).
			return nil
		}
		if _, ok := reachable[u.String()]; ok {
			return nil
		}
		toDelete = append(toDelete, p)
		return nil
	})

	for _, p := range toDelete {
		if err := os.Remove(p); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("gc: remove %s: %w", p, err))
			continue
		}
		rel, err := filepath.Rel(policy.OutputRoot, p)
		if err != nil {
			rel = p
		}
		res.Deleted = append(res.Deleted, rel)
		pruneEmptyParents(policy.OutputRoot, filepath.Dir(p))
	}

	return res
}

// pruneEmptyParents removes dir and any now-empty ancestors, stopping at
// (and never removing) root itself (spec §8 scenario 4).
func pruneEmptyParents(root, dir string) {
	for {
		if dir == root || dir == "." || dir == string(filepath.Separator) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
