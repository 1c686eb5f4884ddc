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

package groundfish

import "testing"

func TestRecordValidDateTime(t *testing.T) {
	tests := []struct {
		in    *string
		valid bool
	}{
		{strp("2019-07-18"), true},
		{strp("2019-07-18T11:02"), true},
		{strp("2019-07-18T11:02:00"), true},
		{strp("2019-07-18T11:02:00.5"), true},
		{strp("2019-07-18T11:02:00Z"), true},
		{strp("07/18/2019"), false},
		{strp("2019-7-18"), false},
		{strp(""), false},
		{nil, false},
	}
	for _, test := range tests {
		r := &Record{DateTime: test.in}
		name := "nil"
		if test.in != nil {
			name = *test.in
		}
		if got := r.ValidDateTime(); got != test.valid {
			t.Errorf("ValidDateTime(%s) = %v, want %v", name, got, test.valid)
		}
	}
}

func TestRecordZeroCatch(t *testing.T) {
	r := testRecord()
	if r.ZeroCatch() {
		t.Error("record with catch reported as zero catch")
	}
	r.Count = i64p(0)
	r.WeightKg = f64p(0)
	if !r.ZeroCatch() {
		t.Error("zero count and weight should report zero catch")
	}
	r.WeightKg = nil
	if r.ZeroCatch() {
		t.Error("null weight is not an inferred zero-catch row")
	}
}

func TestRecordToMap(t *testing.T) {
	m := testRecord().ToMap()
	if len(m) != len(RecordFields) {
		t.Fatalf("projection has %d fields, want %d", len(m), len(RecordFields))
	}
	if m["srvy"] != "GOA" {
		t.Errorf("srvy = %v", m["srvy"])
	}
	if m["year"] != int64(2019) {
		t.Errorf("year = %v", m["year"])
	}
	if m["complete"] != true {
		t.Errorf("complete = %v", m["complete"])
	}
	// Null fields are present, with nil values.
	if v, ok := m["vessel_id"]; !ok || v != nil {
		t.Errorf("vessel_id = %v, %v; want present and nil", v, ok)
	}
}

func TestIndexedStorageFields(t *testing.T) {
	fields := IndexedStorageFields()
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f] {
			t.Errorf("field %s listed twice", f)
		}
		seen[f] = true
	}
	for _, want := range []string{"year", "latitude_dd_start", "latitude_dd_end", "species_code", "performance"} {
		if !seen[want] {
			t.Errorf("missing indexed field %s", want)
		}
	}
	// Local-only fields must not grow indices.
	for _, localOnly := range []string{"survey_name", "worms", "itis", "id_rank"} {
		if seen[localOnly] {
			t.Errorf("field %s should be local-only", localOnly)
		}
	}
}
