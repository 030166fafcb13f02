// Package urlpolicy implements the pure, total mapping between absolute
// origin URLs and on-disk relative paths (spec §4.1), plus the URL
// normalization rules (spec §3).
package urlpolicy

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultRawSubtreePrefixes are the raw-subtree prefixes used when a Policy
// is built without an explicit override.
var DefaultRawSubtreePrefixes = []string{
	"content/files/",
	"content/media/",
	"content/images/",
}

var versionedFilenameRe = regexp.MustCompile(`^(.+)\.([0-9a-f]+)(\.[^.]+)$`)

// Policy is a pure, total, injective function urlToPath and its partial
// inverse pathToUrl, parameterized by an output root and the site's
// raw-subtree prefixes.
type Policy struct {
	OutputRoot         string
	RawSubtreePrefixes []string
	// IgnoredPaths lists output-relative paths (each entry also covers
	// anything under it as a directory; a trailing "/" is optional) that
	// pathToUrl must reject
	// instead of translating. These are post-processor outputs and files
	// the GC must never consider for deletion.
	IgnoredPaths []string
}

// New builds a Policy, defaulting RawSubtreePrefixes when none are given.
func New(outputRoot string, rawSubtreePrefixes, ignoredPaths []string) *Policy {
	if len(rawSubtreePrefixes) == 0 {
		rawSubtreePrefixes = DefaultRawSubtreePrefixes
	}
	return &Policy{
		OutputRoot:         outputRoot,
		RawSubtreePrefixes: rawSubtreePrefixes,
		IgnoredPaths:       ignoredPaths,
	}
}

// Normalize applies the URL normalization rules of spec §3 and returns a
// normalized copy; u itself is not modified. Rule 4's trailing-slash addition
// is suppressed under a raw-subtree prefix (spec §3's explicit exception),
// so it must be called as a Policy method rather than a free function.
//
// Open question pinned per DESIGN.md: the "v" query key stays part of the
// returned URL's key (RawQuery is preserved); only ToPath strips it into
// the filename. Callers comparing URLs for equality must go through
// Normalize first so the key form is consistent.
func (p *Policy) Normalize(u *url.URL) *url.URL {
	out := *u
	out.Fragment = ""
	out.RawFragment = ""

	up := out.Path
	if strings.HasSuffix(up, "/index.html") {
		up = strings.TrimSuffix(up, "index.html")
	} else if up != "" && !strings.HasSuffix(up, "/") && path.Ext(up) == "" {
		if p.rawSubtreePrefix(strings.TrimPrefix(up, "/")) == "" {
			up += "/"
		}
	}
	if up == "" {
		up = "/"
	}
	out.Path = up
	return &out
}

// ToPath implements urlToPath: rules 1-7 of spec §4.1.
func (p *Policy) ToPath(u *url.URL) (string, error) {
	up := p.Normalize(u).Path

	// Rule 2: empty path or "/" -> index.html.
	if up == "" || up == "/" {
		return filepath.Join(p.OutputRoot, "index.html"), nil
	}

	rel := strings.TrimPrefix(up, "/")
	raw := p.rawSubtreePrefix(rel)

	switch {
	case strings.HasSuffix(up, "/"):
		// Rule 3: directory URL -> append index.html.
		rel += "index.html"
	case raw != "":
		// Rule 5: raw-subtree files are saved verbatim, no synthetic index.html.
	case path.Ext(rel) == "":
		// Rule 4: extensionless, non-raw-subtree path -> directory semantics.
		rel += "/index.html"
	}

	// Rule 6: query-versioned assets.
	if v := u.Query().Get("v"); v != "" {
		dir, base := path.Split(rel)
		ext := path.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		rel = dir + stem + "." + v + ext
	}

	return filepath.Join(p.OutputRoot, filepath.FromSlash(rel)), nil
}

// rawSubtreePrefix returns the matching raw-subtree prefix for rel (an
// output-root-relative, slash-separated path with no leading slash), or ""
// if none matches.
func (p *Policy) rawSubtreePrefix(rel string) string {
	for _, prefix := range p.RawSubtreePrefixes {
		if strings.HasPrefix(rel, prefix) {
			return prefix
		}
	}
	return ""
}

// Rejection describes why a disk path was refused translation back to a URL.
type Rejection struct {
	Path   string
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Path, r.Reason)
}

// FromPath implements the partial inverse pathToUrl. scheme and host come
// from the origin configuration (the policy itself carries none). absPath
// is a filesystem path under p.OutputRoot as produced by filepath.Walk of
// p.OutputRoot; it is relative when p.OutputRoot is.
func (p *Policy) FromPath(scheme, host, absPath string) (*url.URL, error) {
	rel, err := filepath.Rel(p.OutputRoot, absPath)
	if err != nil {
		return nil, &Rejection{Path: absPath, Reason: "not under output root"}
	}
	rel = filepath.ToSlash(rel)

	if rel == "." || rel == "" {
		return nil, &Rejection{Path: absPath, Reason: "is the output root"}
	}

	for _, ignored := range p.IgnoredPaths {
		ignored = strings.TrimPrefix(filepath.ToSlash(ignored), "/")
		if rel == ignored || strings.HasPrefix(rel, strings.TrimSuffix(ignored, "/")+"/") {
			return nil, &Rejection{Path: absPath, Reason: "ignored path"}
		}
	}

	for _, segment := range strings.Split(rel, "/") {
		if strings.HasPrefix(segment, ".") {
			return nil, &Rejection{Path: absPath, Reason: "hidden file"}
		}
	}
	base := path.Base(rel)

	urlPath := "/" + rel
	if raw := p.rawSubtreePrefix(rel); raw != "" {
		// Raw-subtree: check for a versioned filename to reconstruct ?v=.
		dir, base := path.Split(rel)
		if m := versionedFilenameRe.FindStringSubmatch(base); m != nil {
			u := &url.URL{Scheme: scheme, Host: host, Path: "/" + dir + m[1] + m[3]}
			u.RawQuery = "v=" + m[2]
			return u, nil
		}
		return &url.URL{Scheme: scheme, Host: host, Path: urlPath}, nil
	}

	if base == "index.html" {
		dir := strings.TrimSuffix(rel, "index.html")
		return &url.URL{Scheme: scheme, Host: host, Path: "/" + dir}, nil
	}

	// Non-raw-subtree, non-index.html file: check for a versioned filename
	// (rule 6's inverse applies outside raw subtrees too, e.g. style.abc123.css).
	dir, fileBase := path.Split(rel)
	if m := versionedFilenameRe.FindStringSubmatch(fileBase); m != nil {
		u := &url.URL{Scheme: scheme, Host: host, Path: "/" + dir + m[1] + m[3]}
		u.RawQuery = "v=" + m[2]
		return u, nil
	}

	return &url.URL{Scheme: scheme, Host: host, Path: urlPath}, nil
}
