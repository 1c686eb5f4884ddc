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
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oceandata/groundfish"
	"github.com/oceandata/groundfish/storage"
)

func strp(s string) *string   { return &s }
func i64p(i int64) *int64     { return &i }
func f64p(f float64) *float64 { return &f }

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	bucket, err := storage.OpenBucket(context.Background(), "file://"+t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bucket.Close() })
	s := storage.NewStore(bucket)
	s.RetryDelay = time.Millisecond
	return s
}

func putSpecies(t *testing.T, store *storage.Store, s *storage.Species) {
	t.Helper()
	data, err := storage.EncodeSpecies([]*storage.Species{s})
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), SpeciesPath(s.SpeciesCode), data))
}

func putHaul(t *testing.T, store *storage.Store, h *storage.Haul) {
	t.Helper()
	data, err := storage.EncodeHauls([]*storage.Haul{h})
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), HaulPath(h.Key()), data))
}

func putCatches(t *testing.T, store *storage.Store, hauljoin int64, catches []*storage.Catch) {
	t.Helper()
	data, err := storage.EncodeCatches(catches)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), CatchPath(hauljoin), data))
}

func seedRawSnapshot(t *testing.T, store *storage.Store) {
	t.Helper()
	putSpecies(t, store, &storage.Species{
		SpeciesCode:    21720,
		ScientificName: strp("Gadus macrocephalus"),
		CommonName:     strp("Pacific cod"),
		IDRank:         strp("species"),
	})
	putSpecies(t, store, &storage.Species{
		SpeciesCode:    30060,
		ScientificName: strp("Sebastes alutus"),
		CommonName:     strp("Pacific ocean perch"),
		IDRank:         strp("species"),
	})
	putHaul(t, store, &storage.Haul{
		Year:            2019,
		Srvy:            strp("GOA"),
		Survey:          "GOA",
		Haul:            42,
		Hauljoin:        i64p(12345),
		DateTime:        strp("2019-07-18T11:02:00"),
		LatitudeDDStart: f64p(53.061),
		DepthM:          f64p(87.5),
	})
	// Haul 43 has no catch file; join must skip it.
	putHaul(t, store, &storage.Haul{
		Year:     2019,
		Srvy:     strp("GOA"),
		Survey:   "GOA",
		Haul:     43,
		Hauljoin: i64p(12346),
	})
	putCatches(t, store, 12345, []*storage.Catch{
		{
			Hauljoin:    12345,
			SpeciesCode: 21720,
			Count:       i64p(12),
			WeightKg:    f64p(13.37),
			CPUEKgKm2:   f64p(427.2),
		},
		{
			// Not in the species master.
			Hauljoin:    12345,
			SpeciesCode: 99999,
			Count:       i64p(1),
			WeightKg:    f64p(0.4),
		},
	})
}

func TestJoin(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	seedRawSnapshot(t, store)

	j := &Joiner{Store: store, Workers: 2}
	emitted, skipped, err := j.Join(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, emitted)
	require.Equal(t, 1, skipped)

	key := groundfish.HaulKey{Year: 2019, Survey: "GOA", Haul: 42}
	data, err := store.Fetch(ctx, key.Path())
	require.NoError(t, err)
	recs, err := storage.DecodeObservations(data)
	require.NoError(t, err)
	// Two real catches plus one inferred zero-catch for the perch.
	require.Len(t, recs, 3)

	cod := recs[0]
	require.Equal(t, int64(21720), *cod.SpeciesCode)
	require.Equal(t, "Pacific cod", *cod.CommonName)
	require.Equal(t, "Gadus macrocephalus", *cod.ScientificName)
	require.Equal(t, int64(12), *cod.Count)
	require.Equal(t, 13.37, *cod.WeightKg)
	require.Equal(t, 87.5, *cod.DepthM) // haul context cloned in
	require.True(t, cod.Complete)
	require.False(t, cod.ZeroCatch())

	unknown := recs[1]
	require.Equal(t, int64(99999), *unknown.SpeciesCode)
	require.Nil(t, unknown.CommonName)
	require.False(t, unknown.Complete, "species missing from the master must be incomplete")

	perch := recs[2]
	require.Equal(t, int64(30060), *perch.SpeciesCode)
	require.Equal(t, "Pacific ocean perch", *perch.CommonName)
	require.Equal(t, int64(0), *perch.Count)
	require.Equal(t, 0.0, *perch.WeightKg)
	require.Equal(t, 0.0, *perch.CPUEKgKm2)
	require.True(t, perch.Complete)
	require.True(t, perch.ZeroCatch())

	// The skipped haul must not produce a flat file.
	skippedKey := groundfish.HaulKey{Year: 2019, Survey: "GOA", Haul: 43}
	ok, err := store.Exists(ctx, skippedKey.Path())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestJoinRequiresSpeciesMaster(t *testing.T) {
	store := testStore(t)
	j := &Joiner{Store: store}
	_, _, err := j.Join(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "species master")
}
