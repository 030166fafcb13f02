// Package site loads the YAML configuration that drives a crawl: the
// origin's domains/aliases, explicit seed URLs, and the policy knobs
// (raw-subtree prefixes, 404 allowlist, ignored GC paths).
//
// Grounded on the teacher's site/config.go; the CMS resource-type matching
// fields (Resources/Metadata) are dropped — this spec's Crawler discovers
// pages by following links, not by matching URLs to declared resource
// types — see DESIGN.md.
package site

import (
	"bytes"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Config is a site's crawl policy.
type Config struct {
	Name string `yaml:"name"`

	// Domains are treated as the local origin; aliases beyond the first
	// are additional hostnames considered local (e.g. with/without "www.").
	Domains []string `yaml:"domains"`

	// ExplicitSeeds are extra entry-seed URLs beyond the root and the
	// sitemap (robots.txt, theme CSS not linked from any page, etc.).
	ExplicitSeeds []string `yaml:"explicitSeeds"`

	// RawSubtreePrefixes overrides urlpolicy.DefaultRawSubtreePrefixes.
	RawSubtreePrefixes []string `yaml:"rawSubtreePrefixes"`

	// NotFoundAllowlist lists substrings; a 404 whose URL contains one of
	// these is dropped silently instead of recorded as a CrawlError.
	NotFoundAllowlist []string `yaml:"notFoundAllowlist"`

	// IgnoredPaths lists output-relative paths the GC must never consider
	// for deletion (post-processor outputs, CNAME, 404.html, ...).
	IgnoredPaths []string `yaml:"ignoredPaths"`

	// Concurrency overrides the default worker cap (spec §4.5) when > 0.
	Concurrency int `yaml:"concurrency"`

	// ValidatorRetention overrides the default 30-day expiry window
	// (spec §3) when > 0.
	ValidatorRetention time.Duration `yaml:"validatorRetention"`
}

// Load parses a site config from YAML bytes.
func Load(in []byte) (*Config, error) {
	out := Config{}
	d := yaml.NewDecoder(bytes.NewReader(in))
	d.KnownFields(true)
	if err := d.Decode(&out); err != nil {
		return &Config{}, err
	}
	return &out, nil
}

// IsLocalHost reports whether host is the origin's own host or a
// configured alias (www.-insensitive, matching the teacher's isLocal).
func (c *Config) IsLocalHost(host string) bool {
	for _, d := range c.Domains {
		if stripWWW(d) == stripWWW(host) {
			return true
		}
	}
	return false
}

func stripWWW(h string) string {
	if len(h) > 4 && h[:4] == "www." {
		return h[4:]
	}
	return h
}
