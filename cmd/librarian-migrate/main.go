// Command librarian-migrate applies forward-only schema migrations to a
// librarian catalog database, indexed by revision id. It consumes only
// the data model's bucket layout, never the catalog package's internals,
// so the server and the migration tool can evolve independently.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	dataDir    = flag.String("data-dir", ".", "librarian data directory containing catalog.db")
	dryRun     = flag.Bool("dry-run", false, "show what would migrate without making changes")
	backupPath = flag.String("backup", "", "path to back up the database before migrating (default: <data-dir>/catalog.db.backup)")
)

// bucketSchemaMeta stores a single key, "revision", holding the last
// applied migration's revision id as a decimal string.
var bucketSchemaMeta = []byte("schema_meta")

// dataModelBuckets mirrors pkg/catalog's bucket layout. Duplicated here
// deliberately: this tool works against the on-disk layout, not the
// catalog package's API.
var dataModelBuckets = [][]byte{
	[]byte("sessions"),
	[]byte("observations"),
	[]byte("files"),
	[]byte("instances"),
	[]byte("instances_by_file"),
	[]byte("events"),
	[]byte("events_by_file"),
	[]byte("stores"),
	[]byte("store_by_name"),
	[]byte("standing_orders"),
	[]byte("order_by_name"),
	bucketSchemaMeta,
}

// migration is one forward-only step, identified by a monotonic revision
// id. Revision 0 is the bucket-layout baseline every catalog.Open call
// already creates; migrations here are for schema changes introduced
// after a database already has data in it.
type migration struct {
	revision    int
	description string
	apply       func(tx *bolt.Tx) error
}

// registered holds every migration in revision order. New revisions are
// appended here, never reordered or rewritten once released.
var registered = []migration{
	{
		revision:    1,
		description: "ensure every data-model bucket exists",
		apply: func(tx *bolt.Tx) error {
			for _, b := range dataModelBuckets {
				if _, err := tx.CreateBucketIfNotExists(b); err != nil {
					return fmt.Errorf("create bucket %s: %w", b, err)
				}
			}
			return nil
		},
	},
}

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Librarian catalog migration tool")
	log.Println("=================================")

	dbPath := filepath.Join(*dataDir, "catalog.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("database not found at %s (run `librarian serve` once to create it)", dbPath)
	}

	log.Printf("database: %s", dbPath)
	log.Printf("dry run: %v", *dryRun)

	if !*dryRun {
		backup := *backupPath
		if backup == "" {
			backup = dbPath + ".backup"
		}
		log.Printf("creating backup: %s", backup)
		if err := copyFile(dbPath, backup); err != nil {
			log.Fatalf("backup failed: %v", err)
		}
		log.Println("backup created")
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	applied, err := runMigrations(db, *dryRun)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	if *dryRun {
		log.Printf("dry run: %d migration(s) would apply", applied)
	} else {
		log.Printf("applied %d migration(s)", applied)
	}
}

func currentRevision(tx *bolt.Tx) int {
	b := tx.Bucket(bucketSchemaMeta)
	if b == nil {
		return 0
	}
	v := b.Get([]byte("revision"))
	if v == nil {
		return 0
	}
	var rev int
	fmt.Sscanf(string(v), "%d", &rev)
	return rev
}

func runMigrations(db *bolt.DB, dryRun bool) (int, error) {
	var current int
	if err := db.View(func(tx *bolt.Tx) error {
		current = currentRevision(tx)
		return nil
	}); err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range registered {
		if m.revision <= current {
			continue
		}
		log.Printf("revision %d: %s", m.revision, m.description)
		if dryRun {
			applied++
			continue
		}
		if err := db.Update(func(tx *bolt.Tx) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			metaB, err := tx.CreateBucketIfNotExists(bucketSchemaMeta)
			if err != nil {
				return err
			}
			return metaB.Put([]byte("revision"), []byte(fmt.Sprintf("%d", m.revision)))
		}); err != nil {
			return applied, fmt.Errorf("revision %d: %w", m.revision, err)
		}
		applied++
	}
	return applied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
