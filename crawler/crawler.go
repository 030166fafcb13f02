// Package crawler implements the Crawler scheduling core of spec §4.5: a
// worklist-driven, bounded-parallel URL expander that fetches each
// discovered URL at most once per run, writes bodies to the output tree,
// builds a fresh LinkGraph for the run, and collects errors.
//
// The dispatcher/worklist/semaphore/WaitGroup shape is lifted from the
// teacher's Crawler.CrawlP (condition-variable worklist + bounded
// semaphore + WaitGroup-gated completion), regeneralized to drive
// Fetcher → LinkExtractor → LinkGraph → disk write instead of the
// teacher's Fetcher → staticate → bbolt write.
package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ndbroadbent/ghost-static-site-generator/archive"
	"github.com/ndbroadbent/ghost-static-site-generator/digest"
	"github.com/ndbroadbent/ghost-static-site-generator/fetcher"
	"github.com/ndbroadbent/ghost-static-site-generator/graph"
	"github.com/ndbroadbent/ghost-static-site-generator/linkextract"
	"github.com/ndbroadbent/ghost-static-site-generator/resource"
	"github.com/ndbroadbent/ghost-static-site-generator/urlpolicy"
	"github.com/ndbroadbent/ghost-static-site-generator/validatorcache"
)

// DefaultConcurrency is the worker cap used when Options.Concurrency is 0
// (spec §4.5/§6).
const DefaultConcurrency = 10

// Options configures a Crawler instance.
type Options struct {
	// OriginHost is the hostname used for same-origin checks by
	// LinkExtractor (spec §4.4). Scheme is taken from each URL as fetched.
	OriginHost string
	// Concurrency is the bounded-parallelism cap N (spec §4.5). 0 means
	// DefaultConcurrency.
	Concurrency int
	// NotFoundAllowlist: a 404 whose URL contains one of these substrings
	// is dropped silently instead of recorded as a CrawlError (spec §7).
	NotFoundAllowlist []string
}

// Crawler is the scheduling core. One instance runs exactly one crawl.
type Crawler struct {
	opts      Options
	policy    *urlpolicy.Policy
	fetcher   *fetcher.Fetcher
	validator *validatorcache.Cache
	prevGraph *graph.Graph // loaded from the previous run; read-only
	newGraph  *graph.Graph // built fresh this run
	arc       archive.Archive

	seenMu sync.Mutex
	seen   map[string]struct{} // queued ∪ inflight ∪ done, this run

	entriesMu sync.Mutex
	entries   []string
	entrySeen map[string]struct{}

	errMu  sync.Mutex
	errors []CrawlError
}

// New builds a Crawler. prevGraph should already be Load()ed (possibly
// empty); newGraph is the fresh graph this run populates. arc may be nil
// to disable archiving.
func New(opts Options, policy *urlpolicy.Policy, f *fetcher.Fetcher, validator *validatorcache.Cache, prevGraph, newGraph *graph.Graph, arc archive.Archive) *Crawler {
	return &Crawler{
		opts:      opts,
		policy:    policy,
		fetcher:   f,
		validator: validator,
		prevGraph: prevGraph,
		newGraph:  newGraph,
		arc:       arc,
		seen:      map[string]struct{}{},
		entrySeen: map[string]struct{}{},
	}
}

// Errors returns the CrawlErrors collected so far.
func (c *Crawler) Errors() []CrawlError {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	out := make([]CrawlError, len(c.errors))
	copy(out, c.errors)
	return out
}

// Entries returns the authoritative entry seed set accumulated this run
// (root + explicit seeds + everything harvested from sitemaps), for the
// Reachability GC to anchor on.
func (c *Crawler) Entries() []string {
	c.entriesMu.Lock()
	defer c.entriesMu.Unlock()
	out := make([]string, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Crawler) recordError(u string, status int, referrer, message string) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.errors = append(c.errors, CrawlError{
		URL: u, Status: status, ReferringURL: referrer,
		Timestamp: time.Now(), Message: message,
	})
}

func (c *Crawler) isAllowlisted404(u string) bool {
	for _, p := range c.opts.NotFoundAllowlist {
		if p != "" && strings.Contains(u, p) {
			return true
		}
	}
	return false
}

// markSeen records u as queued (or already queued/inflight/done), enforcing
// the at-most-once-per-run fetch invariant (spec §8 property 1). Returns
// true the first time u is seen this run.
func (c *Crawler) markSeen(u string) bool {
	c.seenMu.Lock()
	defer c.seenMu.Unlock()
	if _, ok := c.seen[u]; ok {
		return false
	}
	c.seen[u] = struct{}{}
	return true
}

func (c *Crawler) addEntry(u string) {
	c.entriesMu.Lock()
	defer c.entriesMu.Unlock()
	if _, ok := c.entrySeen[u]; ok {
		return
	}
	c.entrySeen[u] = struct{}{}
	c.entries = append(c.entries, u)
}

// Run seeds the worklist with root, explicitSeeds, and sitemapURL (if
// non-empty), then drives the worklist to completion (spec §4.5 steps
// 1-3). It does not run the Reachability GC or persist caches — the
// caller does that once Run returns (spec §4.5 step 4 / §9).
func (c *Crawler) Run(ctx context.Context, root string, explicitSeeds []string, sitemapURL string) {
	seeds := append([]string{root}, explicitSeeds...)
	if sitemapURL != "" {
		seeds = append(seeds, sitemapURL)
	}
	for _, s := range seeds {
		c.addEntry(s)
	}

	concurrency := c.opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var mu sync.Mutex
	cond := sync.NewCond(&mu)
	var toDo []string
	shuttingDown := false
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	var enqueue func(string)
	enqueue = func(u string) {
		if !c.markSeen(u) {
			return
		}
		mu.Lock()
		wg.Add(1)
		toDo = append(toDo, u)
		mu.Unlock()
		cond.Signal()
	}

	for _, s := range seeds {
		enqueue(s)
	}

	// Dispatcher: pulls from the worklist and hands work to bounded
	// workers. Broadcasts on shutdown so it never blocks forever in
	// Wait() once the crawl has genuinely drained (a condvar quiescence
	// bug the teacher's CrawlP doesn't fully close).
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		for {
			mu.Lock()
			for len(toDo) == 0 && !shuttingDown {
				cond.Wait()
			}
			if len(toDo) == 0 {
				mu.Unlock()
				return
			}
			u := toDo[0]
			toDo = toDo[1:]
			mu.Unlock()

			sem <- struct{}{}
			go func(u string) {
				defer func() {
					<-sem
					wg.Done()
				}()
				c.handle(ctx, u, enqueue)
			}(u)
		}
	}()

	wg.Wait()
	mu.Lock()
	shuttingDown = true
	mu.Unlock()
	cond.Broadcast()
	<-dispatchDone
}

// handle implements spec §4.5 step 3: normalize, fetch, classify, act.
func (c *Crawler) handle(ctx context.Context, rawURL string, enqueue func(string)) {
	u, err := url.Parse(rawURL)
	if err != nil {
		c.recordError(rawURL, 0, "", fmt.Sprintf("invalid url: %v", err))
		return
	}
	norm := c.policy.Normalize(u)
	outputPath, err := c.policy.ToPath(norm)
	if err != nil {
		c.recordError(norm.String(), 0, "", fmt.Sprintf("path policy: %v", err))
		return
	}

	res := c.fetcher.Fetch(ctx, norm.String())
	c.processResult(ctx, norm, outputPath, res, enqueue, false)
}

func (c *Crawler) processResult(ctx context.Context, u *url.URL, outputPath string, res fetcher.Result, enqueue func(string), retried bool) {
	switch res.Kind {
	case fetcher.KindNotModified:
		c.handleNotModified(ctx, u, outputPath, enqueue, retried)

	case fetcher.KindOK:
		c.handleOK(ctx, u, outputPath, res, enqueue)

	case fetcher.KindGone:
		if !c.isAllowlisted404(u.String()) {
			c.recordError(u.String(), res.Status, "", "not found")
		}

	case fetcher.KindOtherError:
		c.recordError(u.String(), res.Status, "", "origin error")

	case fetcher.KindTransport:
		msg := "transport error"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		c.recordError(u.String(), 0, "", msg)
	}
}

// handleNotModified implements the NotModified branch of spec §4.5 step 3,
// including the missing-file repair flow (spec §4.5/§7/§8 property 8): a
// validator hit whose output file has vanished forces one unconditional
// refetch before giving up.
func (c *Crawler) handleNotModified(ctx context.Context, u *url.URL, outputPath string, enqueue func(string), retried bool) {
	if fileExists(outputPath) {
		if prev, ok := c.prevGraph.Get(u.String()); ok {
			c.newGraph.Put(prev)
			for _, child := range prev.Hyperlinks {
				enqueue(child)
			}
			for _, child := range prev.Subresources {
				enqueue(child)
			}
		}
		return
	}
	if retried {
		c.recordError(u.String(), 0, "", "missing output file persisted after forced refetch")
		return
	}
	c.validator.Forget(u.String())
	retryRes := c.fetcher.Fetch(ctx, u.String())
	c.processResult(ctx, u, outputPath, retryRes, enqueue, true)
}

func isRSSPath(p string) bool {
	return strings.Contains(p, "/rss/") || strings.HasSuffix(p, "/rss")
}

var lastBuildDateRe = regexp.MustCompile(`(?s)<lastBuildDate>.*?</lastBuildDate>`)

func blankLastBuildDate(body []byte) []byte {
	return lastBuildDateRe.ReplaceAll(body, []byte("<lastBuildDate></lastBuildDate>"))
}

func isSitemapDoc(u *url.URL, contentType string) bool {
	if strings.Contains(strings.ToLower(u.Path), "sitemap") {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "xml")
}

func isCSSDoc(u *url.URL, contentType string) bool {
	ct, _, _ := strings.Cut(contentType, ";")
	if strings.EqualFold(strings.TrimSpace(ct), "text/css") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".css")
}

func isHTMLDoc(contentType string) bool {
	ct, _, _ := strings.Cut(contentType, ";")
	ct = strings.TrimSpace(ct)
	return ct == "" || strings.EqualFold(ct, "text/html")
}

// handleOK implements the Ok branch of spec §4.5 step 3: persist, extract,
// record the graph node, enqueue children.
func (c *Crawler) handleOK(ctx context.Context, u *url.URL, outputPath string, res fetcher.Result, enqueue func(string)) {
	switch {
	case isRSSPath(u.Path):
		// RSS feeds route through handleHTML regardless of the
		// Content-Type an origin happens to report, so the
		// lastBuildDate-only elision check always applies (spec §4.5).
		c.handleHTML(u, outputPath, res, enqueue)
	case isSitemapDoc(u, res.ContentType):
		c.handleSitemap(ctx, u, outputPath, res, enqueue)
	case isCSSDoc(u, res.ContentType):
		c.handleCSS(u, outputPath, res, enqueue)
	case isHTMLDoc(res.ContentType):
		c.handleHTML(u, outputPath, res, enqueue)
	default:
		c.handleOpaque(u, outputPath, res)
	}
}

// handleSitemap persists the sitemap document itself and harvests the
// entry seeds it lists (spec §4.2/§4.5 step 1), recursing through child
// sitemaps via linkextract.Sitemap.
func (c *Crawler) handleSitemap(ctx context.Context, u *url.URL, outputPath string, res fetcher.Result, enqueue func(string)) {
	c.writeBody(outputPath, res.Body)
	c.finishOK(u, res.Body, res.ContentType)

	fetch := func(childURL string) ([]byte, error) {
		childRes := c.fetcher.Fetch(ctx, childURL)
		if childRes.Kind != fetcher.KindOK {
			return nil, fmt.Errorf("sitemap fetch %s: %s", childURL, childRes.Kind)
		}
		return childRes.Body, nil
	}
	seedURLs, err := linkextract.Sitemap(res.Body, fetch)
	if err != nil {
		// ParseError (spec §7): best-effort, not fatal.
		return
	}
	for _, raw := range seedURLs {
		resolved, ok := resolveAgainst(u, raw)
		if !ok || !sameOriginHost(resolved.Hostname(), c.opts.OriginHost) {
			continue
		}
		s := c.policy.Normalize(resolved).String()
		c.addEntry(s)
		enqueue(s)
	}
}

func (c *Crawler) handleCSS(u *url.URL, outputPath string, res fetcher.Result, enqueue func(string)) {
	subs := linkextract.CSS(res.Body, u, c.opts.OriginHost, c.policy)
	c.writeBody(outputPath, res.Body)
	c.finishOK(u, res.Body, res.ContentType)

	node := graph.NewNode(u.String(), nil, subs, time.Now())
	c.newGraph.Put(node)
	for _, s := range subs {
		enqueue(s)
	}
}

func (c *Crawler) handleHTML(u *url.URL, outputPath string, res fetcher.Result, enqueue func(string)) {
	links, err := linkextract.HTML(res.Body, u, c.opts.OriginHost, c.policy)
	if err != nil {
		// ParseError (spec §7): best-effort, not fatal — still mirror the
		// raw body even without extracted links.
		links = &linkextract.Links{}
	}

	if isRSSPath(u.Path) {
		if existing, readErr := os.ReadFile(outputPath); readErr == nil {
			if bytes.Equal(blankLastBuildDate(existing), blankLastBuildDate(res.Body)) {
				// Idempotence preserver (spec §4.5): elide the write, but
				// still record the graph node/children and validator
				// update so reachability and caching stay correct.
				c.recordGraphAndEnqueue(u, links, enqueue)
				c.finishOK(u, res.Body, res.ContentType)
				return
			}
		}
	}

	c.writeBody(outputPath, res.Body)
	c.recordGraphAndEnqueue(u, links, enqueue)
	c.finishOK(u, res.Body, res.ContentType)
}

func (c *Crawler) recordGraphAndEnqueue(u *url.URL, links *linkextract.Links, enqueue func(string)) {
	node := graph.NewNode(u.String(), links.Hyperlinks, links.Subresources, time.Now())
	c.newGraph.Put(node)
	for _, l := range links.Hyperlinks {
		enqueue(l)
	}
	for _, s := range links.Subresources {
		enqueue(s)
	}
}

func (c *Crawler) handleOpaque(u *url.URL, outputPath string, res fetcher.Result) {
	// Leaf resource (image, font, video, ...): not parsed, so it gets no
	// GraphNode (spec §3: dangling edges referencing un-parsed leaves are
	// legal).
	c.writeBody(outputPath, res.Body)
	c.finishOK(u, res.Body, res.ContentType)
}

// finishOK updates the validator's content digest and, if archiving is
// enabled, mirrors the fetched resource to the configured sink.
func (c *Crawler) finishOK(u *url.URL, body []byte, contentType string) {
	d := digest.Of(body)
	c.validator.Update(u.String(), "", "", d)

	if c.arc == nil {
		return
	}
	r := &resource.Resource{Content: body, ContentType: contentType}
	if err := c.arc.Write(u.String(), r); err != nil {
		c.recordError(u.String(), 0, "", fmt.Sprintf("archive write failed: %v", err))
	}
}

// writeBody ensures the parent directory exists and writes body, recording
// a CrawlError on failure instead of aborting the run (spec §7: disk
// errors are recorded, not fatal).
func (c *Crawler) writeBody(outputPath string, body []byte) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		c.recordError(outputPath, 0, "", fmt.Sprintf("mkdir: %v", err))
		return
	}
	if err := os.WriteFile(outputPath, body, 0644); err != nil {
		c.recordError(outputPath, 0, "", fmt.Sprintf("write: %v", err))
	}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func resolveAgainst(base *url.URL, raw string) (*url.URL, bool) {
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	return base.ResolveReference(ref), true
}

func sameOriginHost(host, origin string) bool {
	return strings.TrimPrefix(strings.ToLower(host), "www.") == strings.TrimPrefix(strings.ToLower(origin), "www.")
}
