package linkextract

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type urlset struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Fetch is a minimal body-fetching callback used to recurse into child
// sitemaps. Implementations typically wrap fetcher.Fetcher.Fetch.
type Fetch func(url string) ([]byte, error)

// Sitemap parses an XML sitemap document and returns the flattened set of
// page URLs it lists (spec §4.4). These are entry seeds, not graph edges.
// A sub-sitemap is recognized by the literal substring "sitemap-" in its
// loc and is fetched recursively via fetch.
func Sitemap(body []byte, fetch Fetch) ([]string, error) {
	return sitemapRecurse(body, fetch, map[string]struct{}{})
}

func sitemapRecurse(body []byte, fetch Fetch, visited map[string]struct{}) ([]string, error) {
	var set urlset
	if err := xml.Unmarshal(body, &set); err == nil && len(set.URLs) > 0 {
		out := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			if u.Loc != "" {
				out = append(out, u.Loc)
			}
		}
		return out, nil
	}

	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err != nil {
		return nil, fmt.Errorf("linkextract: parse sitemap: %w", err)
	}

	var out []string
	for _, sm := range idx.Sitemaps {
		if sm.Loc == "" {
			continue
		}
		if !strings.Contains(sm.Loc, "sitemap-") {
			// Not recognized as a child sitemap; keep the loc itself as a
			// best-effort entry (malformed/non-standard index entry).
			out = append(out, sm.Loc)
			continue
		}
		if _, seen := visited[sm.Loc]; seen {
			continue
		}
		visited[sm.Loc] = struct{}{}
		if fetch == nil {
			continue
		}
		childBody, err := fetch(sm.Loc)
		if err != nil {
			continue
		}
		childURLs, err := sitemapRecurse(childBody, fetch, visited)
		if err != nil {
			continue
		}
		out = append(out, childURLs...)
	}
	return out, nil
}
