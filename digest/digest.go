// Package digest computes the content digest stored in a ValidatorEntry
// (spec §3). The Crawler records it after each 200; it does not compare it
// against the on-disk file when a 304 arrives.
//
// Grounded on the pack's rohmanhakim-docs-crawler, which hashes fetched
// content with lukechampine.com/blake3 (see its pkg/hashutil) — the
// teacher never computes a content digest, so this is enrichment from the
// rest of the pack per SPEC_FULL.md.
package digest

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Of returns the "blake3:<hex>" digest of body.
func Of(body []byte) string {
	sum := blake3.Sum256(body)
	return "blake3:" + hex.EncodeToString(sum[:])
}
