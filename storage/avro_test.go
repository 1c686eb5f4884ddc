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
	"io"
	"reflect"
	"testing"

	"github.com/oceandata/groundfish"
)

func strp(s string) *string   { return &s }
func i64p(i int64) *int64     { return &i }
func f64p(f float64) *float64 { return &f }

func sampleRecords() []*groundfish.Record {
	return []*groundfish.Record{
		{
			Year:             2019,
			Srvy:             strp("GOA"),
			Survey:           "Gulf of Alaska Bottom Trawl Survey",
			Haul:             42,
			Hauljoin:         i64p(12345),
			DateTime:         strp("2019-07-18T11:02:00"),
			LatitudeDDStart:  f64p(53.061),
			LongitudeDDStart: f64p(-166.045),
			SpeciesCode:      i64p(21720),
			CommonName:       strp("Pacific cod"),
			Count:            i64p(12),
			WeightKg:         f64p(13.37),
			Complete:         true,
		},
		{
			Year:        2019,
			Survey:      "Gulf of Alaska Bottom Trawl Survey",
			Haul:        42,
			SpeciesCode: i64p(30060),
			CommonName:  strp("Pacific ocean perch"),
			Count:       i64p(0),
			WeightKg:    f64p(0),
			Complete:    true,
		},
	}
}

func TestObservationRoundTrip(t *testing.T) {
	recs := sampleRecords()
	data, err := EncodeObservations(recs)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeObservations(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, recs) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got[0], recs[0])
	}
}

func TestObservationReaderOrder(t *testing.T) {
	recs := sampleRecords()
	data, err := EncodeObservations(recs)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewObservationReader(data)
	if err != nil {
		t.Fatal(err)
	}
	for i := range recs {
		got, err := r.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, recs[i]) {
			t.Errorf("record %d out of order or mangled", i)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("want io.EOF at end of file, got %v", err)
	}
}

func TestHaulKeyListRoundTrip(t *testing.T) {
	keys := []groundfish.HaulKey{
		{Year: 2018, Survey: "Aleutian Islands", Haul: 1},
		{Year: 2019, Survey: "Gulf of Alaska", Haul: 42},
	}
	data, err := EncodeHaulKeys(keys)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeHaulKeys(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, keys) {
		t.Errorf("got %v, want %v", got, keys)
	}
}

func TestIndexEntryStreaming(t *testing.T) {
	entries := []IndexEntry{
		{Value: "53.06", Keys: []groundfish.HaulKey{{Year: 2019, Survey: "GOA", Haul: 42}}},
		{Value: int64(2019), Keys: []groundfish.HaulKey{
			{Year: 2019, Survey: "GOA", Haul: 42},
			{Year: 2019, Survey: "GOA", Haul: 43},
		}},
		{Value: 1.25, Keys: []groundfish.HaulKey{{Year: 2018, Survey: "AI", Haul: 7}}},
		{Value: nil, Keys: nil},
	}
	data, err := EncodeIndexEntries(entries)
	if err != nil {
		t.Fatal(err)
	}
	var got []IndexEntry
	err = DecodeIndexEntries(data, func(e IndexEntry) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if !reflect.DeepEqual(got[i].Value, entries[i].Value) {
			t.Errorf("entry %d value = %#v, want %#v", i, got[i].Value, entries[i].Value)
		}
		if len(got[i].Keys) != len(entries[i].Keys) {
			t.Errorf("entry %d has %d keys, want %d", i, len(got[i].Keys), len(entries[i].Keys))
			continue
		}
		for j := range entries[i].Keys {
			if got[i].Keys[j] != entries[i].Keys[j] {
				t.Errorf("entry %d key %d = %v, want %v", i, j, got[i].Keys[j], entries[i].Keys[j])
			}
		}
	}
}

func TestBuildShardRoundTrips(t *testing.T) {
	t.Run("hauls", func(t *testing.T) {
		hauls := []*Haul{{
			Year:            2019,
			Srvy:            strp("GOA"),
			Survey:          "Gulf of Alaska Bottom Trawl Survey",
			Haul:            42,
			Hauljoin:        i64p(12345),
			DateTime:        strp("2019-07-18T11:02:00"),
			LatitudeDDStart: f64p(53.061),
			DepthM:          f64p(87.5),
		}}
		data, err := EncodeHauls(hauls)
		if err != nil {
			t.Fatal(err)
		}
		got, err := DecodeHauls(data)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, hauls) {
			t.Errorf("got %+v, want %+v", got[0], hauls[0])
		}
	})
	t.Run("catches", func(t *testing.T) {
		catches := []*Catch{{
			Hauljoin:    12345,
			SpeciesCode: 21720,
			Count:       i64p(12),
			WeightKg:    f64p(13.37),
		}}
		data, err := EncodeCatches(catches)
		if err != nil {
			t.Fatal(err)
		}
		got, err := DecodeCatches(data)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, catches) {
			t.Errorf("got %+v, want %+v", got[0], catches[0])
		}
	})
	t.Run("species", func(t *testing.T) {
		species := []*Species{{
			SpeciesCode:    21720,
			ScientificName: strp("Gadus macrocephalus"),
			CommonName:     strp("Pacific cod"),
			IDRank:         strp("species"),
			Worms:          i64p(254538),
		}}
		data, err := EncodeSpecies(species)
		if err != nil {
			t.Fatal(err)
		}
		got, err := DecodeSpecies(data)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, species) {
			t.Errorf("got %+v, want %+v", got[0], species[0])
		}
	})
}

func TestEmptyContainerRoundTrip(t *testing.T) {
	// Fields with no non-null values produce empty index files; those must
	// decode as zero records, not fail.
	t.Run("index entries", func(t *testing.T) {
		data, err := EncodeIndexEntries(nil)
		if err != nil {
			t.Fatal(err)
		}
		n := 0
		err = DecodeIndexEntries(data, func(IndexEntry) error {
			n++
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("decoded %d entries from an empty container", n)
		}
	})
	t.Run("observations", func(t *testing.T) {
		data, err := EncodeObservations(nil)
		if err != nil {
			t.Fatal(err)
		}
		recs, err := DecodeObservations(data)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 0 {
			t.Errorf("decoded %d records from an empty container", len(recs))
		}
	})
	t.Run("haul keys", func(t *testing.T) {
		data, err := EncodeHaulKeys(nil)
		if err != nil {
			t.Fatal(err)
		}
		keys, err := DecodeHaulKeys(data)
		if err != nil {
			t.Fatal(err)
		}
		if len(keys) != 0 {
			t.Errorf("decoded %d keys from an empty container", len(keys))
		}
	})
}
