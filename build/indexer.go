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

package build

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/alitto/pond"

	"github.com/oceandata/groundfish"
	"github.com/oceandata/groundfish/index"
	"github.com/oceandata/groundfish/storage"
)

// DefaultHaulsPerShard is the number of joined flat files one index worker
// scans into a single shard.
const DefaultHaulsPerShard = 512

// ShardPath returns the object key of one index shard.
func ShardPath(field string, shard int) string {
	return fmt.Sprintf("index_sharded/%s_%d.avro", field, shard)
}

// Indexer scans an immutable set of joined flat files into the per-field
// inverted indices. It can run against a joined/ tree it did not produce;
// re-indexing without re-joining is a supported operating mode, and running
// it twice over the same input yields equivalent index/ contents.
type Indexer struct {
	Store *storage.Store

	// Workers caps the parallel shard scans; zero means GOMAXPROCS.
	Workers int

	// HaulsPerShard overrides DefaultHaulsPerShard when positive.
	HaulsPerShard int
}

// Index runs the full scan-shard-merge pipeline and writes index/main.avro.
func (ix *Indexer) Index(ctx context.Context) error {
	keys, err := ix.joinedKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("build: no joined flat files to index; run join first")
	}
	shards, err := ix.scanShards(ctx, keys)
	if err != nil {
		return err
	}
	if err := ix.mergeShards(ctx, shards); err != nil {
		return err
	}
	return ix.writeMainIndex(ctx, keys)
}

// joinedKeys enumerates joined/, sorted by haul key.
func (ix *Indexer) joinedKeys(ctx context.Context) ([]groundfish.HaulKey, error) {
	objects, err := ix.Store.List(ctx, "joined")
	if err != nil {
		return nil, fmt.Errorf("build: listing joined flat files: %v", err)
	}
	keys := make([]groundfish.HaulKey, 0, len(objects))
	for _, obj := range objects {
		stem := strings.TrimSuffix(strings.TrimPrefix(obj, "joined/"), ".avro")
		k, err := groundfish.ParseHaulKey(stem)
		if err != nil {
			return nil, fmt.Errorf("build: unexpected object %s under joined/: %v", obj, err)
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys, nil
}

// scanShards fans out over contiguous runs of haul keys, writing one shard
// file per field per run. It returns the shard ids produced for each field.
func (ix *Indexer) scanShards(ctx context.Context, keys []groundfish.HaulKey) (map[string][]int, error) {
	per := ix.HaulsPerShard
	if per <= 0 {
		per = DefaultHaulsPerShard
	}
	workers := ix.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(-1)
	}

	nShards := (len(keys) + per - 1) / per
	pool := pond.New(workers, nShards)
	defer pool.StopAndWait()
	group, gctx := pool.GroupContext(ctx)

	var mu sync.Mutex
	shards := make(map[string][]int)
	for shard := 0; shard < nShards; shard++ {
		shard := shard
		lo, hi := shard*per, (shard+1)*per
		if hi > len(keys) {
			hi = len(keys)
		}
		batch := keys[lo:hi]
		group.Submit(func() error {
			return retryUnit(fmt.Sprintf("indexing shard %d", shard), func() error {
				fields, err := ix.scanOneShard(gctx, shard, batch)
				if err != nil {
					return err
				}
				mu.Lock()
				for _, f := range fields {
					shards[f] = append(shards[f], shard)
				}
				mu.Unlock()
				return nil
			})
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return shards, nil
}

// scanOneShard streams the shard's flat files and writes one
// index_sharded/{field}_{shard}.avro per indexed field, returning the fields
// written.
func (ix *Indexer) scanOneShard(ctx context.Context, shard int, keys []groundfish.HaulKey) ([]string, error) {
	acc := newEntryAccumulator()
	for _, k := range keys {
		data, err := ix.Store.Fetch(ctx, k.Path())
		if err != nil {
			return nil, err
		}
		recs, err := storage.DecodeObservations(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %v", k.Path(), err)
		}
		for _, rec := range recs {
			acc.add(rec)
		}
	}
	fields := make([]string, 0, len(acc.fields))
	for field, entries := range acc.fields {
		data, err := storage.EncodeIndexEntries(entries.sorted())
		if err != nil {
			return nil, err
		}
		if err := ix.Store.Put(ctx, ShardPath(field, shard), data); err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// mergeShards concatenates each field's shards, reapplying normalization on
// read as a guard against shards produced by an older builder, and writes
// the single index/{field}.avro.
func (ix *Indexer) mergeShards(ctx context.Context, shards map[string][]int) error {
	workers := ix.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(-1)
	}
	pool := pond.New(workers, len(shards))
	defer pool.StopAndWait()
	group, gctx := pool.GroupContext(ctx)

	for field, ids := range shards {
		field, ids := field, ids
		group.Submit(func() error {
			return retryUnit(fmt.Sprintf("merging index %s", field), func() error {
				return ix.mergeField(gctx, field, ids)
			})
		})
	}
	return group.Wait()
}

func (ix *Indexer) mergeField(ctx context.Context, field string, shardIDs []int) error {
	flat := groundfish.FlatIndexField(field)
	merged := newFieldEntries(flat)
	for _, id := range shardIDs {
		data, err := ix.Store.Fetch(ctx, ShardPath(field, id))
		if err != nil {
			return err
		}
		err = storage.DecodeIndexEntries(data, func(e storage.IndexEntry) error {
			merged.add(groundfish.Normalize(field, e.Value), e.Keys...)
			return nil
		})
		if err != nil {
			return fmt.Errorf("reading shard %s: %v", ShardPath(field, id), err)
		}
	}
	data, err := storage.EncodeIndexEntries(merged.sorted())
	if err != nil {
		return err
	}
	return ix.Store.Put(ctx, index.IndexPath(field), data)
}

// writeMainIndex writes the global haul-key list.
func (ix *Indexer) writeMainIndex(ctx context.Context, keys []groundfish.HaulKey) error {
	data, err := storage.EncodeHaulKeys(keys)
	if err != nil {
		return err
	}
	return ix.Store.Put(ctx, index.MainIndexPath, data)
}

// entryAccumulator collects per-field index entries for one shard.
type entryAccumulator struct {
	fields map[string]*fieldEntries
}

func newEntryAccumulator() *entryAccumulator {
	acc := &entryAccumulator{fields: make(map[string]*fieldEntries)}
	for _, f := range groundfish.IndexedStorageFields() {
		acc.fields[f] = newFieldEntries(groundfish.FlatIndexField(f))
	}
	return acc
}

// add emits one index entry per indexed field of the record. Presence-only
// fields skip inferred zero-catch rows and rows whose species never matched
// the master: their indices answer "where was this species caught", not
// "where was it sampled for".
func (acc *entryAccumulator) add(rec *groundfish.Record) {
	skipPresence := rec.ZeroCatch() || !rec.Complete
	key := rec.Key()
	for field, entries := range acc.fields {
		if skipPresence && groundfish.PresenceOnlyField(field) {
			continue
		}
		v, ok := rec.Attr(field)
		if !ok {
			continue
		}
		entries.add(groundfish.Normalize(field, v), key)
	}
}

// fieldEntries holds one field's entries. Bucketed fields reduce by
// normalized value, unioning key sets; flat fields keep one entry per
// observation.
type fieldEntries struct {
	flat    bool
	entries []storage.IndexEntry
	byValue map[string]int
}

func newFieldEntries(flat bool) *fieldEntries {
	fe := &fieldEntries{flat: flat}
	if !flat {
		fe.byValue = make(map[string]int)
	}
	return fe
}

func (fe *fieldEntries) add(value interface{}, keys ...groundfish.HaulKey) {
	if fe.flat {
		for _, k := range keys {
			fe.entries = append(fe.entries, storage.IndexEntry{Value: value, Keys: []groundfish.HaulKey{k}})
		}
		return
	}
	vk := valueKey(value)
	i, ok := fe.byValue[vk]
	if !ok {
		i = len(fe.entries)
		fe.entries = append(fe.entries, storage.IndexEntry{Value: value})
		fe.byValue[vk] = i
	}
	fe.entries[i].Keys = append(fe.entries[i].Keys, keys...)
}

// sorted returns the entries in deterministic order: by value, keys sorted
// and deduplicated within each entry. Index output is thereby reproducible
// across runs regardless of worker interleaving.
func (fe *fieldEntries) sorted() []storage.IndexEntry {
	for i := range fe.entries {
		keys := fe.entries[i].Keys
		sort.Slice(keys, func(a, b int) bool { return keys[a].Less(keys[b]) })
		fe.entries[i].Keys = dedupeKeys(keys)
	}
	sort.Slice(fe.entries, func(a, b int) bool {
		va, vb := valueKey(fe.entries[a].Value), valueKey(fe.entries[b].Value)
		if va != vb {
			return va < vb
		}
		ka, kb := fe.entries[a].Keys, fe.entries[b].Keys
		if len(ka) == 0 || len(kb) == 0 {
			return len(ka) < len(kb)
		}
		return ka[0].Less(kb[0])
	})
	return fe.entries
}

func dedupeKeys(keys []groundfish.HaulKey) []groundfish.HaulKey {
	out := keys[:0]
	for i, k := range keys {
		if i == 0 || k != keys[i-1] {
			out = append(out, k)
		}
	}
	return out
}

// valueKey is the canonical comparison form of an index value. The type tag
// keeps values of different union members from colliding.
func valueKey(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "n:"
	case string:
		return "s:" + x
	case int64:
		return fmt.Sprintf("i:%020d", x)
	case float64:
		return fmt.Sprintf("f:%024.6f", x)
	}
	return fmt.Sprintf("x:%v", v)
}
