// Package previewserver implements the "--preview" local server of spec
// §6: once a mirror is on disk (or archived in bbolt), serve it back over
// plain HTTP so an operator can look at the result of a run without
// standing up a separate web server.
//
// Grounded on the teacher's cmd/server/server.go ReopenableDB/BBoltHandler
// pattern: a read-only bbolt handle that can be reopened under load without
// interrupting in-flight readers, generalized from polyester's one
// hard-coded bucket layout to this package's resource.Resource archive
// format.
package previewserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ndbroadbent/ghost-static-site-generator/resource"
	"go.etcd.io/bbolt"
)

// ReopenableDB holds a read-only bbolt handle that can be swapped out
// without interrupting in-flight readers: callers take an RLock via DB()
// and must Release() it, while open() takes the write lock, which waits
// until every reader has released, then installs the new handle and closes
// the old one.
type ReopenableDB struct {
	dbPath string
	db     *bbolt.DB
	mu     sync.RWMutex
}

func (r *ReopenableDB) DB() *bbolt.DB {
	if r.db == nil {
		r.open()
	}
	r.mu.RLock()
	return r.db
}

func (r *ReopenableDB) Release() {
	r.mu.RUnlock()
}

func (r *ReopenableDB) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return
	}
	r.db.Close()
	r.db = nil
}

func (r *ReopenableDB) open() {
	db, err := bbolt.Open(r.dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		log.Printf("Error (re)opening archive at %q: %v", r.dbPath, err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	olddb := r.db
	r.db = db
	if olddb != nil {
		olddb.Close()
	}
}

// ArchiveHandler serves resource.Resource values written by the archive
// package's bbolt sink, keyed by the exact URL the crawler fetched.
type ArchiveHandler struct {
	db     *ReopenableDB
	bucket string
}

// NewArchiveHandler builds a handler reading bucket from the bbolt database
// at dbPath, lazily opened on first request.
func NewArchiveHandler(dbPath, bucket string) *ArchiveHandler {
	return &ArchiveHandler{db: &ReopenableDB{dbPath: dbPath}, bucket: bucket}
}

func (h *ArchiveHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/statusz":
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("I am running.\r\nServing from archive " + h.db.dbPath))
		return
	case "/reloadz":
		log.Printf("Reopening archive at %q", h.db.dbPath)
		h.db.open()
		http.Redirect(w, req, "/", http.StatusFound)
		return
	}

	key := req.URL.String()
	var raw []byte
	err := func() error {
		db := h.db.DB()
		defer h.db.Release()
		return db.View(func(tx *bbolt.Tx) error {
			bkt := tx.Bucket([]byte(h.bucket))
			if bkt == nil {
				return fmt.Errorf("bucket %q not found", h.bucket)
			}
			val := bkt.Get([]byte(key))
			if val != nil {
				raw = make([]byte, len(val))
				copy(raw, val)
			}
			return nil
		})
	}()
	if err != nil {
		log.Printf("Error reading archive for %q: %v", key, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if raw == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	res, err := resource.Unmarshal(raw)
	if err != nil {
		log.Printf("Error unmarshaling archived resource for %q: %v", key, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if res.Redirect != "" {
		http.Redirect(w, req, res.Redirect, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	if i, err := w.Write(res.Content); i != len(res.Content) || err != nil {
		log.Printf("Error writing response for %q: %d/%d bytes, %v", key, i, len(res.Content), err)
	}
}

func (h *ArchiveHandler) Close() {
	h.db.Close()
}

// StaticHandler serves the mirrored disk tree at dir directly, the default
// preview mode (spec §6: "after the run, serve the output tree locally").
func StaticHandler(dir string) http.Handler {
	return http.FileServer(http.Dir(dir))
}

// Serve blocks, listening on port with handler until ctx is canceled.
// Returns nil on a clean shutdown triggered by ctx, or the listen error
// otherwise.
func Serve(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
