// Package graph implements the LinkGraph of spec §3/§4.5/§4.6: a directed
// multigraph whose nodes are URLs and whose edges are hyperlinks or
// subresources, persisted as a single JSON manifest file.
package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const schemaVersion = 1

// Node is one GraphNode: a parsed URL's outbound edges.
type Node struct {
	URL         string    `json:"url"`
	Hyperlinks  []string  `json:"hyperlinks,omitempty"`
	Subresources []string `json:"subresources,omitempty"`
	ParsedAt    time.Time `json:"parsedAt"`
}

// dedupAppend appends v to list if not already present, preserving
// insertion order, per the GraphNode invariant in spec §3.
func dedupAppend(list []string, v string, seen map[string]struct{}) []string {
	if _, ok := seen[v]; ok {
		return list
	}
	seen[v] = struct{}{}
	return append(list, v)
}

// NewNode builds a Node from possibly-duplicated target lists.
func NewNode(url string, hyperlinks, subresources []string, parsedAt time.Time) Node {
	n := Node{URL: url, ParsedAt: parsedAt}
	seenH := map[string]struct{}{}
	for _, h := range hyperlinks {
		n.Hyperlinks = dedupAppend(n.Hyperlinks, h, seenH)
	}
	seenS := map[string]struct{}{}
	for _, s := range subresources {
		n.Subresources = dedupAppend(n.Subresources, s, seenS)
	}
	return n
}

// manifest is the persisted form of the graph (spec §3 GraphManifest).
type manifest struct {
	Version     int             `json:"version"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Nodes       map[string]Node `json:"nodes"`
}

// Graph is an in-memory LinkGraph. One Graph instance is built fresh per
// run (spec §4.5/§9: "new-graph-per-run"); the Crawler seeds it by carrying
// forward nodes from the previous run's Load on 304 responses.
type Graph struct {
	mu    sync.Mutex
	nodes map[string]Node
	path  string
}

// New returns an empty graph backed by path.
func New(path string) *Graph {
	return &Graph{nodes: map[string]Node{}, path: path}
}

// Put inserts or replaces a node.
func (g *Graph) Put(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[n.URL] = n
}

// Get returns a copy of the node for url, if present.
func (g *Graph) Get(url string) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[url]
	return n, ok
}

// Len reports the number of nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Reachable computes the BFS closure from seeds through hyperlink and
// subresource edges (spec §4.6 step 1). Entries with no corresponding node
// still contribute themselves to the reachable set (spec's "why the entry
// seed drives reachability" note).
func (g *Graph) Reachable(seeds []string) map[string]struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	reachable := map[string]struct{}{}
	queue := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if _, ok := reachable[s]; !ok {
			reachable[s] = struct{}{}
			queue = append(queue, s)
		}
	}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		n, ok := g.nodes[u]
		if !ok {
			continue
		}
		for _, children := range [][]string{n.Hyperlinks, n.Subresources} {
			for _, c := range children {
				if _, seen := reachable[c]; !seen {
					reachable[c] = struct{}{}
					queue = append(queue, c)
				}
			}
		}
	}
	return reachable
}

// Load reads the manifest file, replacing the in-memory node set. A missing
// file leaves the graph empty (first-ever run).
func (g *Graph) Load() error {
	b, err := os.ReadFile(g.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("graph: load %s: %w", g.path, err)
	}
	var m manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("graph: parse %s: %w", g.path, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if m.Nodes == nil {
		m.Nodes = map[string]Node{}
	}
	g.nodes = m.Nodes
	return nil
}

// Save atomically persists the graph via a temp-file-then-rename, same
// discipline as validatorcache.Save.
func (g *Graph) Save() error {
	g.mu.Lock()
	m := manifest{Version: schemaVersion, LastUpdated: time.Now(), Nodes: g.nodes}
	b, err := json.MarshalIndent(m, "", "  ")
	g.mu.Unlock()
	if err != nil {
		return fmt.Errorf("graph: marshal: %w", err)
	}

	dir := filepath.Dir(g.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("graph: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".graph-*.tmp")
	if err != nil {
		return fmt.Errorf("graph: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("graph: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("graph: close temp: %w", err)
	}
	return os.Rename(tmpPath, g.path)
}
