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

package index

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/oceandata/groundfish"
	"github.com/oceandata/groundfish/storage"
)

// mapFetcher serves index files from memory and records the keys touched.
type mapFetcher struct {
	objects map[string][]byte
	touched []string
}

func (m *mapFetcher) Fetch(_ context.Context, key string) ([]byte, error) {
	m.touched = append(m.touched, key)
	if data, ok := m.objects[key]; ok {
		return data, nil
	}
	return nil, &storage.NotFoundError{Key: key}
}

var (
	haulA = groundfish.HaulKey{Year: 2018, Survey: "GOA", Haul: 1}
	haulB = groundfish.HaulKey{Year: 2019, Survey: "GOA", Haul: 2}
	haulC = groundfish.HaulKey{Year: 2019, Survey: "GOA", Haul: 3}
)

// snapshotFetcher builds the index files of a small three-haul snapshot.
func snapshotFetcher(t *testing.T) *mapFetcher {
	t.Helper()
	m := &mapFetcher{objects: make(map[string][]byte)}
	put := func(key string, entries []storage.IndexEntry) {
		data, err := storage.EncodeIndexEntries(entries)
		if err != nil {
			t.Fatal(err)
		}
		m.objects[key] = data
	}
	put(IndexPath("year"), []storage.IndexEntry{
		{Value: int64(2018), Keys: []groundfish.HaulKey{haulA}},
		{Value: int64(2019), Keys: []groundfish.HaulKey{haulB, haulC}},
	})
	put(IndexPath("depth_m"), []storage.IndexEntry{
		{Value: "87.50", Keys: []groundfish.HaulKey{haulA, haulB}},
		{Value: "152.30", Keys: []groundfish.HaulKey{haulC}},
	})
	put(IndexPath("latitude_dd_start"), []storage.IndexEntry{
		{Value: "53.06", Keys: []groundfish.HaulKey{haulA}},
	})
	put(IndexPath("latitude_dd_end"), []storage.IndexEntry{
		{Value: "53.11", Keys: []groundfish.HaulKey{haulB}},
	})
	put(IndexPath("species_code"), []storage.IndexEntry{
		{Value: int64(21720), Keys: []groundfish.HaulKey{haulB}},
	})
	main, err := storage.EncodeHaulKeys([]groundfish.HaulKey{haulA, haulB, haulC})
	if err != nil {
		t.Fatal(err)
	}
	m.objects[MainIndexPath] = main
	return m
}

func selectHauls(t *testing.T, s *Selector, filters ...groundfish.FieldFilter) []groundfish.HaulKey {
	t.Helper()
	keys, err := s.SelectHauls(context.Background(), filters)
	if err != nil {
		t.Fatal(err)
	}
	return keys
}

func TestSelectHauls(t *testing.T) {
	t.Run("single equality", func(t *testing.T) {
		s := &Selector{Fetcher: snapshotFetcher(t)}
		got := selectHauls(t, s, mustFilter(t, "year", 2019, nil, nil))
		if want := []groundfish.HaulKey{haulB, haulC}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("intersection across fields", func(t *testing.T) {
		s := &Selector{Fetcher: snapshotFetcher(t)}
		got := selectHauls(t, s,
			mustFilter(t, "year", 2019, nil, nil),
			mustFilter(t, "depth_m", nil, 50.0, 100.0))
		if want := []groundfish.HaulKey{haulB}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("coordinate field unions start and end indices", func(t *testing.T) {
		s := &Selector{Fetcher: snapshotFetcher(t)}
		got := selectHauls(t, s, mustFilter(t, "latitude_dd", nil, 53.0, 54.0))
		if want := []groundfish.HaulKey{haulA, haulB}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("empty candidate set short-circuits", func(t *testing.T) {
		f := snapshotFetcher(t)
		s := &Selector{Fetcher: f}
		got := selectHauls(t, s, mustFilter(t, "year", 1999, nil, nil))
		if len(got) != 0 {
			t.Errorf("got %v, want none", got)
		}
		for _, key := range f.touched {
			if key == MainIndexPath {
				t.Error("main index fetched despite an empty index-eligible candidate set")
			}
		}
	})

	t.Run("no eligible filter falls back to main index", func(t *testing.T) {
		s := &Selector{Fetcher: snapshotFetcher(t)}
		got := selectHauls(t, s)
		if want := []groundfish.HaulKey{haulA, haulB, haulC}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("local-only filter falls back to main index", func(t *testing.T) {
		f := snapshotFetcher(t)
		s := &Selector{Fetcher: f}
		got := selectHauls(t, s, mustFilter(t, "survey_name", "Gulf of Alaska", nil, nil))
		if len(got) != 3 {
			t.Errorf("got %v, want all three hauls", got)
		}
	})
}

func TestSelectHaulsPresenceOnlyGating(t *testing.T) {
	filter := mustFilter(t, "species_code", 21720, nil, nil)

	t.Run("inference on ignores the species index", func(t *testing.T) {
		f := snapshotFetcher(t)
		s := &Selector{Fetcher: f}
		got := selectHauls(t, s, filter)
		// Every haul has an inferred row for every species, so the
		// species index would under-report; all hauls are candidates.
		if len(got) != 3 {
			t.Errorf("got %v, want all three hauls", got)
		}
		for _, key := range f.touched {
			if key == IndexPath("species_code") {
				t.Error("species index consulted while zero-catch inference is on")
			}
		}
	})

	t.Run("presence-only uses the species index", func(t *testing.T) {
		s := &Selector{Fetcher: snapshotFetcher(t), PresenceOnly: true}
		got := selectHauls(t, s, filter)
		if want := []groundfish.HaulKey{haulB}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestSelectHaulsLargeResultWarning(t *testing.T) {
	var warned []string
	s := &Selector{
		Fetcher:       snapshotFetcher(t),
		WarnThreshold: 2,
		Warn:          func(msg string) { warned = append(warned, msg) },
	}
	selectHauls(t, s)
	if len(warned) != 1 || !strings.Contains(warned[0], "3 hauls") {
		t.Errorf("warnings = %q", warned)
	}

	warned = nil
	s.SuppressLargeWarning = true
	selectHauls(t, s)
	if len(warned) != 0 {
		t.Errorf("suppressed warning still fired: %q", warned)
	}
}

func TestSelectHaulsMissingIndexFile(t *testing.T) {
	s := &Selector{Fetcher: &mapFetcher{objects: map[string][]byte{}}}
	_, err := s.SelectHauls(context.Background(), []groundfish.FieldFilter{
		mustFilter(t, "year", 2019, nil, nil),
	})
	if err == nil {
		t.Fatal("expected error for missing index file")
	}
}
