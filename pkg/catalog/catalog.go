package catalog

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/cuemby/librarian/pkg/log"
	"github.com/cuemby/librarian/pkg/notify"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketSessions        = []byte("sessions")
	bucketObservations    = []byte("observations")
	bucketFiles           = []byte("files")
	bucketInstances       = []byte("instances")
	bucketInstancesByFile = []byte("instances_by_file")
	bucketEvents          = []byte("events")
	bucketEventsByFile    = []byte("events_by_file")
	bucketStores          = []byte("stores")
	bucketStoreByName     = []byte("store_by_name")
	bucketStandingOrders  = []byte("standing_orders")
	bucketOrderByName     = []byte("order_by_name")
)

var allBuckets = [][]byte{
	bucketSessions,
	bucketObservations,
	bucketFiles,
	bucketInstances,
	bucketInstancesByFile,
	bucketEvents,
	bucketEventsByFile,
	bucketStores,
	bucketStoreByName,
	bucketStandingOrders,
	bucketOrderByName,
}

// Catalog is the librarian's sole owner of persisted entities.
type Catalog struct {
	db     *bolt.DB
	notify *notify.Bus
	logger zerolog.Logger
}

// Open opens (creating if necessary) the bbolt-backed catalog database at
// dataDir/catalog.db and ensures every bucket exists.
func Open(dataDir string, bus *notify.Bus) (*Catalog, error) {
	dbPath := filepath.Join(dataDir, "catalog.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{db: db, notify: bus, logger: log.WithComponent("catalog")}, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Subscribe returns a channel that receives notifications for mutations
// that may produce new standing-order matches. Intended for the
// replication engine only.
func (c *Catalog) Subscribe() notify.Subscriber {
	return c.notify.Subscribe()
}

func int64Key(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// instanceKey builds the composite (store, parent_dirs, name) key used by
// the instances bucket.
func instanceKey(storeID int64, parentDirs, name string) []byte {
	return []byte(fmt.Sprintf("%020d\x00%s\x00%s", storeID, parentDirs, name))
}
