package archive

import (
	"fmt"
	"strings"
	"time"

	"github.com/ndbroadbent/ghost-static-site-generator/resource"
	"go.etcd.io/bbolt"
)

// BoltArchive stores resources in a local bbolt database, one bucket per
// crawl target.
type BoltArchive struct {
	db     *bbolt.DB
	bucket string
}

func newBoltArchive(path string) (Archive, error) {
	p := strings.SplitN(path, ":", 2)
	if len(p) != 2 {
		return nil, fmt.Errorf(`archive: bbolt path %q does not have expected format "<path>:<bucket>"`, path)
	}

	db, err := bbolt.Open(p[0], 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("archive: open bbolt database %q: %w", p[0], err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(p[1]))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: create bucket %q: %w", p[1], err)
	}

	return &BoltArchive{db: db, bucket: p[1]}, nil
}

func (a *BoltArchive) Write(key string, r *resource.Resource) error {
	v, err := resource.Marshal(r)
	if err != nil {
		return err
	}
	return a.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(a.bucket)).Put([]byte(key), v)
	})
}

func (a *BoltArchive) Close() error {
	return a.db.Close()
}

func init() {
	register("bbolt", newBoltArchive)
}
