// Package storage persists attachment bytes in a blob bucket and hands back
// durable retrievable URLs.
package storage

import (
	"context"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"

	"github.com/findesk/findesk/internal/config"
)

// BlobStore stores attachment content under a path and returns its URL.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
}

type bucketStore struct {
	bucket  *blob.Bucket
	baseURL string
}

// OpenBucket opens the configured bucket. The returned func releases it.
func OpenBucket(ctx context.Context, cfg config.BlobConfig) (BlobStore, func(), error) {
	bucket, err := blob.OpenBucket(ctx, cfg.BucketURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open blob bucket: %w", err)
	}
	store := &bucketStore{
		bucket:  bucket,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
	return store, func() { _ = bucket.Close() }, nil
}

func (s *bucketStore) Put(ctx context.Context, path string, data []byte) (string, error) {
	if err := s.bucket.WriteAll(ctx, path, data, nil); err != nil {
		return "", fmt.Errorf("write blob %s: %w", path, err)
	}
	return s.baseURL + "/" + path, nil
}

// memoryStore keeps blobs in process memory for tests and DSN-less boots.
type memoryStore struct {
	blobs map[string][]byte
}

// NewMemoryStore builds an in-memory blob store.
func NewMemoryStore() BlobStore {
	return &memoryStore{blobs: make(map[string][]byte)}
}

func (s *memoryStore) Put(_ context.Context, path string, data []byte) (string, error) {
	s.blobs[path] = append([]byte(nil), data...)
	return "mem://" + path, nil
}
