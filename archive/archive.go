// Package archive is an optional snapshot/deploy sink: after (or during) a
// crawl, fetched resources may additionally be written to a local bbolt
// database or pushed to S3, independent of the on-disk mirror that the
// Reachability GC reconciles. The disk tree remains authoritative for the
// dumb HTTP host; an archive is a convenience for rollback or for pushing
// straight to a bucket.
//
// Adapted from the teacher's storage package (storage.go/bbolt.go/s3.go),
// generalized from "the" output store to an optional secondary sink.
package archive

import (
	"fmt"
	"strings"

	"github.com/ndbroadbent/ghost-static-site-generator/resource"
)

// Archive is a write-only sink for archived resources, keyed by URL.
type Archive interface {
	Write(key string, r *resource.Resource) error
	Close() error
}

type constructor func(path string) (Archive, error)

var registry = map[string]constructor{}

func register(scheme string, fn constructor) {
	registry[scheme] = fn
}

// New builds an Archive from a target of the form "<scheme>:<path>", e.g.
//   - bbolt:</path/to/db.file>:<bucket>
//   - s3:<region>:<bucket>
func New(target string) (Archive, error) {
	scheme, path, ok := strings.Cut(target, ":")
	if !ok {
		return nil, fmt.Errorf("archive: target %q missing \"<scheme>:<path>\"", target)
	}
	fn, ok := registry[scheme]
	if !ok {
		return nil, fmt.Errorf("archive: no handler registered for scheme %q", scheme)
	}
	return fn(path)
}
