/*
Copyright © 2024 the Groundfish authors.
This file is part of Groundfish.

Groundfish is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Groundfish is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Groundfish.  If not, see <http://www.gnu.org/licenses/>.
*/

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ctessum/requestcache"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// DefaultTimeout is the per-request object-storage timeout. There is no
// global query timeout; callers control total time by closing the cursor.
const DefaultTimeout = 5 * time.Minute

// DefaultRetryDelay is the fixed back-off before the single retry of a
// transient fetch failure.
const DefaultRetryDelay = 2 * time.Second

// Fetcher fetches an immutable object from the snapshot bucket. It is the
// injection point for tests and for callers that bring their own
// object-storage client.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// NotFoundError reports a key that does not exist in the bucket. It is
// permanent: the fetch machinery does not retry it.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("storage: key %s not found", e.Key)
}

// IsNotFound reports whether err indicates a missing object.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Store is a read-write view of the snapshot bucket with fixed per-request
// timeouts and one retry after a fixed back-off on transient failures.
type Store struct {
	bucket *blob.Bucket

	// Timeout bounds each individual object-storage request.
	Timeout time.Duration

	// RetryDelay is the fixed back-off before the single retry.
	RetryDelay time.Duration

	fetches uint64
	retries uint64
}

// NewStore wraps an open bucket.
func NewStore(bucket *blob.Bucket) *Store {
	return &Store{
		bucket:     bucket,
		Timeout:    DefaultTimeout,
		RetryDelay: DefaultRetryDelay,
	}
}

// Fetch reads the full contents of key. A transient failure is retried once
// after the fixed back-off; a missing key returns a *NotFoundError without
// retrying.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	atomic.AddUint64(&s.fetches, 1)
	var data []byte
	op := func() error {
		c, cancel := context.WithTimeout(ctx, s.Timeout)
		defer cancel()
		r, err := s.bucket.NewReader(c, key, nil)
		if err != nil {
			return s.classify(key, err)
		}
		defer r.Close()
		var b bytes.Buffer
		if _, err := io.Copy(&b, r); err != nil {
			return s.classify(key, err)
		}
		data = b.Bytes()
		return nil
	}
	err := backoff.RetryNotify(op,
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.RetryDelay), 1),
		func(err error, d time.Duration) {
			atomic.AddUint64(&s.retries, 1)
			log.Printf("storage: fetching %s: %v: retrying in %v", key, err, d)
		})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// classify turns a missing key into a permanent error so the retry loop
// stops immediately; everything else is treated as transient.
func (s *Store) classify(key string, err error) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return backoff.Permanent(&NotFoundError{Key: key})
	}
	return fmt.Errorf("storage: reading %s: %v", key, err)
}

// Put writes data to key, replacing any prior content.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	c, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	w, err := s.bucket.NewWriter(c, key, nil)
	if err != nil {
		return fmt.Errorf("storage: creating writer for %s: %v", key, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("storage: writing %s: %v", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: writing %s: %v", key, err)
	}
	return nil
}

// Exists reports whether key is present in the bucket.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	c, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	return s.bucket.Exists(c, key)
}

// List returns the keys under the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var keys []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		c, cancel := context.WithTimeout(ctx, s.Timeout)
		obj, err := iter.Next(c)
		cancel()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: listing %s: %v", prefix, err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Stats returns the cumulative fetch and retry counts.
func (s *Store) Stats() (fetches, retries uint64) {
	return atomic.LoadUint64(&s.fetches), atomic.LoadUint64(&s.retries)
}

// CachingFetcher layers an in-memory, deduplicating cache over a Fetcher.
// Index files are fetched repeatedly across queries against one
// environment, so they are worth holding onto; joined flat files are
// streamed once per query and bypass the cache.
type CachingFetcher struct {
	inner Fetcher
	cache *requestcache.Cache
}

// NewCachingFetcher creates a cache holding at most maxEntries fetched
// objects.
func NewCachingFetcher(inner Fetcher, maxEntries int) *CachingFetcher {
	f := &CachingFetcher{inner: inner}
	proc := func(ctx context.Context, payload interface{}) (interface{}, error) {
		return inner.Fetch(ctx, payload.(string))
	}
	f.cache = requestcache.NewCache(proc, runtime.GOMAXPROCS(-1),
		requestcache.Deduplicate(), requestcache.Memory(maxEntries))
	return f
}

// Fetch returns the cached contents of key, fetching on a miss.
func (f *CachingFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	req := f.cache.NewRequest(ctx, key, key)
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
