// Package blob stores each checkpoint as one JSON object, either in a Go CDK
// bucket or as a file in a local directory. An object is always replaced
// whole, so the watermark and its boundary set can never be observed
// half-written.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"

	"secevents/internal/domain"
)

const keySuffix = ".json"

var errNotFound = errors.New("object not found")

// objects is the minimal key/value surface a checkpoint needs.
type objects interface {
	read(ctx context.Context, key string) ([]byte, error)
	write(ctx context.Context, key string, data []byte) error
	remove(ctx context.Context, key string) error
	ping(ctx context.Context) error
	close() error
}

// CheckpointStore persists checkpoints as objects. Writes for one name are
// serialised in-process; different names proceed independently.
type CheckpointStore struct {
	objects objects
	locks   sync.Map // name -> *sync.Mutex
}

// Open opens the bucket at bucketURL, e.g. "mem://" or "s3://bucket".
// Cloud drivers register themselves when imported by the binary.
func Open(ctx context.Context, bucketURL string) (*CheckpointStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint bucket: %w", err)
	}
	return New(bucket), nil
}

// OpenDir stores checkpoints as files under dir, creating it if needed.
// Every commit is fsynced before it returns.
func OpenDir(dir string) (*CheckpointStore, error) {
	d, err := openDir(dir)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint directory: %w", err)
	}
	return &CheckpointStore{objects: d}, nil
}

// New wraps an already opened bucket. The store takes ownership of it.
func New(bucket *blob.Bucket) *CheckpointStore {
	return &CheckpointStore{objects: bucketObjects{bucket}}
}

type bucketObjects struct {
	bucket *blob.Bucket
}

func (b bucketObjects) read(ctx context.Context, key string) ([]byte, error) {
	data, err := b.bucket.ReadAll(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, errNotFound
	}
	return data, err
}

func (b bucketObjects) write(ctx context.Context, key string, data []byte) error {
	return b.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: "application/json"})
}

func (b bucketObjects) remove(ctx context.Context, key string) error {
	err := b.bucket.Delete(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

func (b bucketObjects) ping(ctx context.Context) error {
	ok, err := b.bucket.IsAccessible(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("checkpoint bucket is not accessible")
	}
	return nil
}

func (b bucketObjects) close() error {
	return b.bucket.Close()
}

func (s *CheckpointStore) lock(name string) func() {
	mu, _ := s.locks.LoadOrStore(name, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func key(name string) string {
	return url.PathEscape(name) + keySuffix
}

func (s *CheckpointStore) Get(ctx context.Context, name string) (*domain.Checkpoint, error) {
	data, err := s.objects.read(ctx, key(name))
	if errors.Is(err, errNotFound) {
		return domain.NewCheckpoint(name), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read checkpoint %q: %w", domain.ErrPersistence, name, err)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: decode checkpoint %q: %w", domain.ErrPersistence, name, err)
	}
	if cp.Boundary == nil {
		cp.Boundary = []domain.Fingerprint{}
	}
	cp.Name = name
	return &cp, nil
}

func (s *CheckpointStore) Commit(ctx context.Context, cp *domain.Checkpoint) error {
	unlock := s.lock(cp.Name)
	defer unlock()

	prev, err := s.Get(ctx, cp.Name)
	if err != nil {
		return err
	}
	if err := domain.CheckAdvance(prev, cp); err != nil {
		return err
	}

	record := *cp
	record.UpdatedAt = time.Now().UTC()
	if record.Boundary == nil {
		record.Boundary = []domain.Fingerprint{}
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode checkpoint %q: %w", domain.ErrPersistence, cp.Name, err)
	}

	if err := s.objects.write(ctx, key(cp.Name), data); err != nil {
		return fmt.Errorf("%w: write checkpoint %q: %w", domain.ErrPersistence, cp.Name, err)
	}
	return nil
}

func (s *CheckpointStore) Delete(ctx context.Context, name string) error {
	unlock := s.lock(name)
	defer unlock()

	if err := s.objects.remove(ctx, key(name)); err != nil {
		return fmt.Errorf("%w: delete checkpoint %q: %w", domain.ErrPersistence, name, err)
	}
	return nil
}

func (s *CheckpointStore) Ping(ctx context.Context) error {
	return s.objects.ping(ctx)
}

func (s *CheckpointStore) Close() error {
	return s.objects.close()
}
