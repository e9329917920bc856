package boltdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/iudanet/outreach/internal/client/storage"
	"github.com/iudanet/outreach/internal/models"
)

var (
	// BoltDB bucket names
	bucketAuth     = []byte("auth")
	bucketMetadata = []byte("metadata")
	bucketQueue    = []byte("queue")
)

// openTimeout ограничивает ожидание файловой блокировки (БД занята другим процессом)
const openTimeout = 2 * time.Second

// Storage represents BoltDB storage implementation for client.
// It implements storage.LocalStore, storage.MutationQueue,
// storage.AuthStorage and storage.MetadataStorage.
type Storage struct {
	db       *bbolt.DB // не меняется после New
	closed   atomic.Bool
	now      func() time.Time
	watchers *broker
}

var (
	_ storage.LocalStore      = (*Storage)(nil)
	_ storage.MutationQueue   = (*Storage)(nil)
	_ storage.AuthStorage     = (*Storage)(nil)
	_ storage.MetadataStorage = (*Storage)(nil)
)

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{
		db:       db,
		now:      func() time.Time { return time.Now().UTC() },
		watchers: newBroker(),
	}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection. It waits for open transactions;
// calls that start afterwards fail with storage.ErrStorageClosed.
func (s *Storage) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.watchers.closeAll()
	return s.db.Close()
}

func (s *Storage) view(fn func(tx *bbolt.Tx) error) error {
	return closedErr(s.db.View(fn))
}

func (s *Storage) update(fn func(tx *bbolt.Tx) error) error {
	return closedErr(s.db.Update(fn))
}

// closedErr переводит ошибку bbolt о закрытой БД в storage.ErrStorageClosed
func closedErr(err error) error {
	if errors.Is(err, berrors.ErrDatabaseNotOpen) {
		return storage.ErrStorageClosed
	}
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		names := [][]byte{bucketAuth, bucketMetadata, bucketQueue}
		for _, t := range models.EntityTypes {
			names = append(names, recordBucket(t))
		}
		for _, name := range names {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func recordBucket(t models.EntityType) []byte {
	return []byte(t)
}

type broker struct {
	subs   map[models.EntityType]map[int]chan struct{}
	mu     sync.Mutex
	nextID int
}

func newBroker() *broker {
	return &broker{subs: make(map[models.EntityType]map[int]chan struct{})}
}

func (b *broker) subscribe(t models.EntityType) (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan struct{}, 1)
	if b.subs[t] == nil {
		b.subs[t] = make(map[int]chan struct{})
	}
	b.subs[t][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[t][id]; ok {
				delete(b.subs[t], id)
				close(c)
			}
		})
	}
}

// notify не блокируется: подписчику достаточно одного сигнала на пачку изменений
func (b *broker) notify(types ...models.EntityType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range types {
		for _, ch := range b.subs[t] {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

func (b *broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for t, subs := range b.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.subs, t)
	}
}

// Subscribe implements storage.LocalStore
func (s *Storage) Subscribe(t models.EntityType) (<-chan struct{}, func()) {
	return s.watchers.subscribe(t)
}
