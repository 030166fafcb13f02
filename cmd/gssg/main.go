/*
 * Mirrors a Ghost blog (or any site reachable from a root URL and/or
 * sitemap) to a static directory tree, incrementally: unchanged pages are
 * skipped via conditional HTTP, and pages no longer reachable from the
 * site's own links are garbage collected from the output tree.
 */
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ndbroadbent/ghost-static-site-generator/archive"
	"github.com/ndbroadbent/ghost-static-site-generator/crawler"
	"github.com/ndbroadbent/ghost-static-site-generator/fetcher"
	"github.com/ndbroadbent/ghost-static-site-generator/gc"
	"github.com/ndbroadbent/ghost-static-site-generator/graph"
	"github.com/ndbroadbent/ghost-static-site-generator/previewserver"
	"github.com/ndbroadbent/ghost-static-site-generator/site"
	"github.com/ndbroadbent/ghost-static-site-generator/urlpolicy"
	"github.com/ndbroadbent/ghost-static-site-generator/validatorcache"
)

var (
	domain           = flag.String("domain", "", "Root URL to crawl, e.g. https://example.com/")
	productionDomain = flag.String("productionDomain", "", "Public hostname, if different from --domain. When set, it replaces --domain's host in the crawler's same-origin link checks; links are not rewritten.")
	dest             = flag.String("dest", "static", "Output directory for the mirrored site.")
	cacheDir         = flag.String("cacheDir", ".gssg-cache", "Directory holding the ValidatorCache and LinkGraph manifests between runs.")
	siteConfig       = flag.String("site", "", "Optional YAML site config (explicit seeds, raw-subtree prefixes, allowlist, ignored paths).")
	concurrency      = flag.Int("concurrency", crawler.DefaultConcurrency, "Max concurrent fetches.")
	archiveTarget    = flag.String("archive", "", `Optional archive sink, "<scheme>:<path>" (e.g. bbolt:/var/gssg/archive.db:site, or s3:us-east-1:my-bucket).`)
	failOnError      = flag.Bool("fail-on-error", false, "Exit non-zero if any URL could not be fetched.")
	preview          = flag.Bool("preview", false, "After the run, serve the output tree locally instead of exiting.")
	previewPort      = flag.Int("previewPort", 8080, "TCP port to listen on when --preview is set.")
	dryRun           = flag.Bool("dry-run", false, "Crawl and compute GC as usual, but don't persist the validator cache or link graph to disk.")
)

func main() {
	log.SetOutput(os.Stderr)
	flag.Parse()

	if *domain == "" {
		log.Fatal("Flag --domain is required")
	}
	root, err := url.Parse(*domain)
	if err != nil {
		log.Fatalf("Could not parse --domain %q: %v", *domain, err)
	}

	conf := &site.Config{}
	if *siteConfig != "" {
		conf = mustLoadSiteConfig(*siteConfig)
	}

	originHost := root.Hostname()
	if *productionDomain != "" {
		if u, err := url.Parse(*productionDomain); err == nil && u.Hostname() != "" {
			originHost = u.Hostname()
		} else {
			originHost = *productionDomain
		}
	}

	policy := urlpolicy.New(*dest, conf.RawSubtreePrefixes, conf.IgnoredPaths)

	validator := validatorcache.New(filepath.Join(*cacheDir, "manifest.json"))
	if err := validator.Load(); err != nil {
		log.Fatalf("Loading validator cache: %v", err)
	}
	retention := conf.ValidatorRetention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	validator.Expire(retention)

	prevGraph := graph.New(filepath.Join(*cacheDir, "graph.json"))
	if err := prevGraph.Load(); err != nil {
		log.Fatalf("Loading link graph: %v", err)
	}
	newGraph := graph.New(filepath.Join(*cacheDir, "graph.json"))

	var arc archive.Archive
	if *archiveTarget != "" {
		arc, err = archive.New(*archiveTarget)
		if err != nil {
			log.Fatalf("Opening archive %q: %v", *archiveTarget, err)
		}
		defer arc.Close()
	}

	f := fetcher.New(validator)

	concurrencyVal := *concurrency
	if conf.Concurrency > 0 {
		concurrencyVal = conf.Concurrency
	}
	cr := crawler.New(crawler.Options{
		OriginHost:        originHost,
		Concurrency:       concurrencyVal,
		NotFoundAllowlist: conf.NotFoundAllowlist,
	}, policy, f, validator, prevGraph, newGraph, arc)

	sitemapURL := resolveSitemapURL(root)
	log.Printf("Crawling %s (sitemap %s)", root, sitemapURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cr.Run(ctx, root.String(), conf.ExplicitSeeds, sitemapURL)

	errs := cr.Errors()
	for _, e := range errs {
		log.Printf("crawl error: %+v", e)
	}

	entries := cr.Entries()
	gcResult := gc.Run(policy, newGraph, entries, root.Scheme, root.Host)
	for _, d := range gcResult.Deleted {
		log.Printf("gc: removed %s", d)
	}
	for _, e := range gcResult.Errors {
		log.Printf("gc error: %v", e)
	}

	if *dryRun {
		log.Printf("Dry run: %d errors, %d graph nodes, %d files removed; cache not persisted.", len(errs), newGraph.Len(), len(gcResult.Deleted))
		return
	}

	if err := validator.Save(); err != nil {
		log.Fatalf("Saving validator cache: %v", err)
	}
	if err := newGraph.Save(); err != nil {
		log.Fatalf("Saving link graph: %v", err)
	}

	log.Printf("Done: %d graph nodes, %d error(s), %d file(s) removed", newGraph.Len(), len(errs), len(gcResult.Deleted))

	if *failOnError && len(errs) > 0 {
		log.Fatalf("Crawl completed with %d error(s)", len(errs))
	}

	if *preview {
		log.Printf("Serving %q on port %d (Ctrl-C to stop)", *dest, *previewPort)
		if err := previewserver.Serve(context.Background(), *previewPort, previewserver.StaticHandler(*dest)); err != nil {
			log.Fatalf("Preview server: %v", err)
		}
	}
}

// resolveSitemapURL derives the conventional /sitemap.xml URL for root.
func resolveSitemapURL(root *url.URL) string {
	u := *root
	u.Path = "/sitemap.xml"
	u.RawQuery = ""
	return u.String()
}

func mustLoadSiteConfig(path string) *site.Config {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Could not open site config file %q: %v", path, err)
	}
	conf, err := site.Load(b)
	if err != nil {
		log.Fatalf("Could not parse site config file %q: %v", path, err)
	}
	if j, err := json.MarshalIndent(conf, "", "  "); err == nil {
		log.Printf("Loaded site config %q:\n%s", conf.Name, j)
	}
	return conf
}
