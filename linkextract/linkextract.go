// Package linkextract implements the LinkExtractor of spec §4.4: given a
// response body and its content type, it emits the absolute URLs the
// document references, partitioned into hyperlinks and subresources.
//
// Grounded on the teacher's crawler.staticateDoc/staticateNode HTML walk
// (golang.org/x/net/html + html/atom), generalized from in-place
// relativization to pure extraction, plus CSS and sitemap extraction the
// teacher never needed.
package linkextract

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/ndbroadbent/ghost-static-site-generator/urlpolicy"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Links is the deduplicated, origin-filtered result of extracting a
// document.
type Links struct {
	Hyperlinks   []string
	Subresources []string
}

func newLinks() *Links {
	return &Links{}
}

func (l *Links) addHyperlink(seen map[string]struct{}, u string) {
	if _, ok := seen[u]; ok {
		return
	}
	seen[u] = struct{}{}
	l.Hyperlinks = append(l.Hyperlinks, u)
}

func (l *Links) addSubresource(seen map[string]struct{}, u string) {
	if _, ok := seen[u]; ok {
		return
	}
	seen[u] = struct{}{}
	l.Subresources = append(l.Subresources, u)
}

var excludedSchemes = map[string]struct{}{
	"mailto":     {},
	"tel":        {},
	"javascript": {},
	"data":       {},
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".webm": {}, ".avi": {}, ".mkv": {},
}

// sameOrigin compares hosts with a "www." prefix treated as equivalent, as
// the teacher's isLocal does.
func sameOrigin(host, origin string) bool {
	return strings.TrimPrefix(strings.ToLower(host), "www.") == strings.TrimPrefix(strings.ToLower(origin), "www.")
}

// isHyperlink classifies a resolved URL per spec §4.4: no extension, or a
// ".html" extension, is a hyperlink; everything else is a subresource.
func isHyperlink(u *url.URL) bool {
	ext := strings.ToLower(path.Ext(u.Path))
	return ext == "" || ext == ".html"
}

func resolve(base *url.URL, raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, false
	}
	if i := strings.Index(raw, ":"); i >= 0 && !strings.ContainsAny(raw[:i], "/?#") {
		scheme := strings.ToLower(raw[:i])
		if _, excluded := excludedSchemes[scheme]; excluded {
			return nil, false
		}
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	return base.ResolveReference(ref), true
}

// HTML extracts hyperlinks and subresources from an HTML document. Every
// resolved URL is run through policy.Normalize before being stored, so the
// graph keys it produces match the keys the Crawler uses for the same URLs
// (spec §4.5: all state is keyed on normalized URLs).
func HTML(body []byte, baseURL *url.URL, origin string, policy *urlpolicy.Policy) (*Links, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	l := newLinks()
	seenH := map[string]struct{}{}
	seenS := map[string]struct{}{}
	walkHTML(doc, baseURL, origin, policy, l, seenH, seenS)
	return l, nil
}

// skippedContentAtoms are stripped from scanning (spec §4.4): example URLs
// inside tutorials must not be crawled.
var skippedContentAtoms = map[atom.Atom]struct{}{
	atom.Pre:      {},
	atom.Code:     {},
	atom.Textarea: {},
}

func walkHTML(n *html.Node, base *url.URL, origin string, policy *urlpolicy.Policy, l *Links, seenH, seenS map[string]struct{}) {
	if n.Type == html.ElementNode {
		if _, skip := skippedContentAtoms[n.DataAtom]; skip {
			return
		}
		collectNode(n, base, origin, policy, l, seenH, seenS)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, base, origin, policy, l, seenH, seenS)
	}
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// srcsetURLRe matches one comma-separated candidate of a srcset attribute:
// a URL token optionally followed by a width/density descriptor.
var srcsetURLRe = regexp.MustCompile(`^(\S+)`)

func collectNode(n *html.Node, base *url.URL, origin string, policy *urlpolicy.Policy, l *Links, seenH, seenS map[string]struct{}) {
	switch n.DataAtom {
	case atom.A:
		if v, ok := attr(n, "href"); ok {
			addClassified(l, base, origin, policy, v, seenH, seenS)
		}
	case atom.Link:
		if v, ok := attr(n, "href"); ok {
			addClassified(l, base, origin, policy, v, seenH, seenS)
		}
	case atom.Script:
		if v, ok := attr(n, "src"); ok {
			addClassified(l, base, origin, policy, v, seenH, seenS)
		}
	case atom.Img, atom.Source, atom.Video:
		if v, ok := attr(n, "src"); ok {
			addClassified(l, base, origin, policy, v, seenH, seenS)
		}
		if v, ok := attr(n, "srcset"); ok {
			for _, candidate := range strings.Split(v, ",") {
				m := srcsetURLRe.FindStringSubmatch(strings.TrimSpace(candidate))
				if m == nil {
					continue
				}
				addClassified(l, base, origin, policy, m[1], seenH, seenS)
			}
		}
	}
}

func addClassified(l *Links, base *url.URL, origin string, policy *urlpolicy.Policy, raw string, seenH, seenS map[string]struct{}) {
	u, ok := resolve(base, raw)
	if !ok {
		return
	}
	if !sameOrigin(u.Hostname(), origin) {
		return
	}
	isHyper := isHyperlink(u)
	u = policy.Normalize(u)
	s := u.String()
	if isHyper {
		l.addHyperlink(seenH, s)
		return
	}
	l.addSubresource(seenS, s)
	if thumb, ok := videoThumbnail(u); ok {
		l.addSubresource(seenS, thumb)
	}
}

// videoThumbnail derives the CMS's auto-generated poster image URL for a
// video subresource (spec §4.4), which is never linked from HTML.
func videoThumbnail(u *url.URL) (string, bool) {
	ext := strings.ToLower(path.Ext(u.Path))
	if _, ok := videoExtensions[ext]; !ok {
		return "", false
	}
	thumb := *u
	thumb.Path = strings.TrimSuffix(u.Path, path.Ext(u.Path)) + "_thumb.jpg"
	thumb.RawQuery = ""
	return thumb.String(), true
}

// cssURLRe matches url(...) tokens in a stylesheet, quoted or bare.
var cssURLRe = regexp.MustCompile(`url\(\s*(['"]?)([^'")]+)['"]?\s*\)`)

// CSS extracts subresource URLs referenced by a stylesheet.
func CSS(body []byte, baseURL *url.URL, origin string, policy *urlpolicy.Policy) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, m := range cssURLRe.FindAllStringSubmatch(string(body), -1) {
		raw := strings.TrimSpace(m[2])
		if strings.HasPrefix(raw, "data:") {
			continue
		}
		u, ok := resolve(baseURL, raw)
		if !ok || !sameOrigin(u.Hostname(), origin) {
			continue
		}
		u = policy.Normalize(u)
		s := u.String()
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
