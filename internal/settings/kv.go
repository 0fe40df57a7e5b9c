package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// KVStore keeps settings in a NATS JetStream key-value bucket so that the
// daemon and its clients see the same values.
type KVStore struct {
	bucket string
	kv     nats.KeyValue
}

// Change is a single settings update observed by Watch.
type Change struct {
	Key     string
	Value   string
	Deleted bool
}

// NewKVStore binds to bucketName, creating it when it does not exist yet.
func NewKVStore(jetstreamContext nats.JetStreamContext, bucketName string) (*KVStore, error) {
	kv, err := jetstreamContext.KeyValue(bucketName)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = jetstreamContext.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucketName,
			Description: fmt.Sprintf("Speech settings stored in the %s bucket.", bucketName),
			History:     1,
			Storage:     nats.FileStorage,
			Replicas:    1,
		})
		// Another process may have created it between the two calls.
		if errors.Is(err, jetstream.ErrBucketExists) || errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			kv, err = jetstreamContext.KeyValue(bucketName)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to bind settings bucket '%s': %w", bucketName, err)
	}

	return &KVStore{bucket: bucketName, kv: kv}, nil
}

// Get implements core.SettingsStore.
func (s *KVStore) Get(_ context.Context, key string) (string, bool, error) {
	entry, err := s.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("failed to get '%s' from bucket '%s': %w", key, s.bucket, err)
	}

	return string(entry.Value()), true, nil
}

// Set implements core.SettingsStore.
func (s *KVStore) Set(_ context.Context, key, value string) error {
	_, err := s.kv.Put(key, []byte(value))
	if err != nil {
		return fmt.Errorf("failed to put '%s' to bucket '%s': %w", key, s.bucket, err)
	}

	return nil
}

// Watch calls onChange for every update made after it starts, until ctx is
// cancelled. It blocks.
func (s *KVStore) Watch(ctx context.Context, onChange func(Change)) error {
	watcher, err := s.kv.WatchAll(nats.UpdatesOnly())
	if err != nil {
		return fmt.Errorf("failed to watch bucket '%s': %w", s.bucket, err)
	}

	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-watcher.Updates():
			if !ok {
				return nil
			}

			if entry == nil {
				continue
			}

			op := entry.Operation()
			onChange(Change{
				Key:     entry.Key(),
				Value:   string(entry.Value()),
				Deleted: op == nats.KeyValueDelete || op == nats.KeyValuePurge,
			})
		}
	}
}
