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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oceandata/groundfish"
	"github.com/oceandata/groundfish/index"
	"github.com/oceandata/groundfish/storage"
)

func putObservations(t *testing.T, store *storage.Store, key groundfish.HaulKey, recs []*groundfish.Record) {
	t.Helper()
	data, err := storage.EncodeObservations(recs)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), key.Path(), data))
}

// seedJoined writes two joined flat files: haul 42 caught cod and carries an
// inferred zero-catch perch row; haul 7 caught perch.
func seedJoined(t *testing.T, store *storage.Store) (keyA, keyB groundfish.HaulKey) {
	t.Helper()
	keyA = groundfish.HaulKey{Year: 2019, Survey: "GOA", Haul: 42}
	keyB = groundfish.HaulKey{Year: 2018, Survey: "AI", Haul: 7}
	putObservations(t, store, keyA, []*groundfish.Record{
		{
			Year: 2019, Srvy: strp("GOA"), Survey: "GOA", Haul: 42,
			DateTime:    strp("2019-07-18T11:02:00"),
			DepthM:      f64p(87.504),
			SpeciesCode: i64p(21720), CommonName: strp("Pacific cod"),
			Count: i64p(12), WeightKg: f64p(13.37),
			Performance: f64p(0),
			Complete:    true,
		},
		{
			Year: 2019, Srvy: strp("GOA"), Survey: "GOA", Haul: 42,
			DateTime:    strp("2019-07-18T11:02:00"),
			DepthM:      f64p(87.504),
			SpeciesCode: i64p(30060), CommonName: strp("Pacific ocean perch"),
			Count: i64p(0), WeightKg: f64p(0),
			Performance: f64p(0),
			Complete:    true,
		},
	})
	putObservations(t, store, keyB, []*groundfish.Record{
		{
			Year: 2018, Srvy: strp("AI"), Survey: "AI", Haul: 7,
			DateTime:    strp("2018-06-02T08:30:00"),
			DepthM:      f64p(152.3),
			SpeciesCode: i64p(30060), CommonName: strp("Pacific ocean perch"),
			Count: i64p(3), WeightKg: f64p(2.1),
			Performance: f64p(1.5),
			Complete:    true,
		},
	})
	return keyA, keyB
}

func decodeIndex(t *testing.T, store *storage.Store, field string) map[string][]groundfish.HaulKey {
	t.Helper()
	data, err := store.Fetch(context.Background(), index.IndexPath(field))
	require.NoError(t, err)
	out := make(map[string][]groundfish.HaulKey)
	err = storage.DecodeIndexEntries(data, func(e storage.IndexEntry) error {
		vk, ok := e.Value.(string)
		if !ok {
			vk = valueKey(e.Value)
		}
		out[vk] = append(out[vk], e.Keys...)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestIndexer(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	keyA, keyB := seedJoined(t, store)

	ix := &Indexer{Store: store, Workers: 2, HaulsPerShard: 1}
	require.NoError(t, ix.Index(ctx))

	t.Run("int index reduces by value", func(t *testing.T) {
		years := decodeIndex(t, store, "year")
		require.Equal(t, []groundfish.HaulKey{keyB}, years[valueKey(int64(2018))])
		require.Equal(t, []groundfish.HaulKey{keyA}, years[valueKey(int64(2019))])
	})

	t.Run("float index stores normalized buckets", func(t *testing.T) {
		depths := decodeIndex(t, store, "depth_m")
		require.Equal(t, []groundfish.HaulKey{keyA}, depths["87.50"])
		require.Equal(t, []groundfish.HaulKey{keyB}, depths["152.30"])
	})

	t.Run("date index truncates to day", func(t *testing.T) {
		dates := decodeIndex(t, store, "date_time")
		require.Contains(t, dates, "2019-07-18")
		require.Contains(t, dates, "2018-06-02")
	})

	t.Run("presence-only index excludes zero-catch rows", func(t *testing.T) {
		species := decodeIndex(t, store, "species_code")
		require.Equal(t, []groundfish.HaulKey{keyA}, species[valueKey(int64(21720))])
		// Perch was actually caught only in haul B; the inferred row in
		// haul A must not index.
		require.Equal(t, []groundfish.HaulKey{keyB}, species[valueKey(int64(30060))])
	})

	t.Run("repeated values in one haul index once", func(t *testing.T) {
		dates := decodeIndex(t, store, "date_time")
		require.Equal(t, []groundfish.HaulKey{keyA}, dates["2019-07-18"])
	})

	t.Run("field with no values merges to an empty index", func(t *testing.T) {
		// station is null in every seeded record; its shards and merged
		// index are header-only containers and must still decode.
		stations := decodeIndex(t, store, "station")
		require.Empty(t, stations)
	})

	t.Run("main index lists all hauls sorted", func(t *testing.T) {
		data, err := store.Fetch(ctx, index.MainIndexPath)
		require.NoError(t, err)
		keys, err := storage.DecodeHaulKeys(data)
		require.NoError(t, err)
		require.Equal(t, []groundfish.HaulKey{keyB, keyA}, keys)
	})

	t.Run("verify passes on a consistent snapshot", func(t *testing.T) {
		v := &Verifier{Store: store, Workers: 2}
		require.NoError(t, v.Verify(ctx))
	})
}

func TestIndexerSkipsMasterMissingCatchRows(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	key := groundfish.HaulKey{Year: 2019, Survey: "GOA", Haul: 42}
	putObservations(t, store, key, []*groundfish.Record{
		{
			Year: 2019, Srvy: strp("GOA"), Survey: "GOA", Haul: 42,
			SpeciesCode: i64p(21720), CommonName: strp("Pacific cod"),
			Count: i64p(12), WeightKg: f64p(13.37),
			Complete: true,
		},
		{
			// Caught, but the species never matched the master.
			Year: 2019, Srvy: strp("GOA"), Survey: "GOA", Haul: 42,
			SpeciesCode: i64p(99999),
			Count:       i64p(1), WeightKg: f64p(0.4),
			Complete:    false,
		},
	})

	ix := &Indexer{Store: store, HaulsPerShard: 1}
	require.NoError(t, ix.Index(ctx))

	species := decodeIndex(t, store, "species_code")
	require.Contains(t, species, valueKey(int64(21720)))
	require.NotContains(t, species, valueKey(int64(99999)),
		"an incomplete catch row must not index on presence-only fields")

	// Non-presence fields still index the incomplete row's haul.
	years := decodeIndex(t, store, "year")
	require.Equal(t, []groundfish.HaulKey{key}, years[valueKey(int64(2019))])
}

func TestIndexerDeterministic(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	seedJoined(t, store)

	snapshot := func() map[string][]storage.IndexEntry {
		out := make(map[string][]storage.IndexEntry)
		for _, field := range groundfish.IndexedStorageFields() {
			data, err := store.Fetch(ctx, index.IndexPath(field))
			require.NoError(t, err)
			var entries []storage.IndexEntry
			require.NoError(t, storage.DecodeIndexEntries(data, func(e storage.IndexEntry) error {
				entries = append(entries, e)
				return nil
			}))
			out[field] = entries
		}
		return out
	}

	ix := &Indexer{Store: store, Workers: 4, HaulsPerShard: 1}
	require.NoError(t, ix.Index(ctx))
	first := snapshot()

	// Re-indexing the same joined/ tree must reproduce the indices
	// entry for entry, regardless of worker interleaving.
	require.NoError(t, ix.Index(ctx))
	require.Equal(t, first, snapshot())
}

func TestVerifierDetectsDanglingIndexKey(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	seedJoined(t, store)
	ix := &Indexer{Store: store, HaulsPerShard: 1}
	require.NoError(t, ix.Index(ctx))

	// Corrupt the year index with a key that has no flat file.
	ghost := groundfish.HaulKey{Year: 1999, Survey: "GOA", Haul: 1}
	data, err := storage.EncodeIndexEntries([]storage.IndexEntry{
		{Value: int64(1999), Keys: []groundfish.HaulKey{ghost}},
	})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, index.IndexPath("year"), data))

	v := &Verifier{Store: store}
	err = v.Verify(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no joined flat file")
}
