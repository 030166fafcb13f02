/*
 * A standalone web server for previewing a mirrored site: by default it
 * serves straight off the output directory a gssg run wrote, but when
 * pointed at a bbolt archive (--db) it serves archived resources instead,
 * for operators who want a DB-backed preview independent of the disk tree.
 *
 * cmd/gssg's own --preview flag covers the common case of previewing right
 * after a crawl; this binary is for previewing a mirror on its own, without
 * re-running the crawl first.
 */
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/ndbroadbent/ghost-static-site-generator/previewserver"
)

var (
	port      = flag.Int("port", 8080, "TCP port to listen on.")
	staticDir = flag.String("dir", "static", "Local root of the mirrored site to serve, when --db is unset.")
	dbPath    = flag.String("db", "", "Optional bbolt archive database to serve from instead of --dir.")
	dbBucket  = flag.String("bucket", "site", "BBolt bucket to read archived resources from.")
)

func main() {
	flag.Parse()
	log.SetOutput(os.Stderr)

	if *dbPath != "" {
		h := previewserver.NewArchiveHandler(*dbPath, *dbBucket)
		defer h.Close()
		log.Printf("Serving archive %q (bucket %q) on port %d", *dbPath, *dbBucket, *port)
		log.Fatal(previewserver.Serve(context.Background(), *port, h))
	}

	log.Printf("Serving static directory %q on port %d", *staticDir, *port)
	log.Fatal(previewserver.Serve(context.Background(), *port, previewserver.StaticHandler(*staticDir)))
}
