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

import (
	"reflect"
	"testing"
)

func TestHaulKeyString(t *testing.T) {
	k := HaulKey{Year: 2019, Survey: "Gulf of Alaska Bottom Trawl Survey", Haul: 42}
	want := "2019_Gulf of Alaska Bottom Trawl Survey_42"
	if k.String() != want {
		t.Errorf("String() = %q, want %q", k.String(), want)
	}
	if k.Path() != "joined/"+want+".avro" {
		t.Errorf("Path() = %q", k.Path())
	}
}

func TestParseHaulKey(t *testing.T) {
	tests := []struct {
		s    string
		want HaulKey
		err  bool
	}{
		{
			s:    "2019_GOA_42",
			want: HaulKey{Year: 2019, Survey: "GOA", Haul: 42},
		},
		{
			// Survey names may contain underscores; year and haul come
			// from the outermost segments.
			s:    "2021_eastern_bering_sea_7",
			want: HaulKey{Year: 2021, Survey: "eastern_bering_sea", Haul: 7},
		},
		{s: "2019_GOA", err: true},
		{s: "twenty_GOA_42", err: true},
		{s: "2019_GOA_many", err: true},
	}
	for _, test := range tests {
		t.Run(test.s, func(t *testing.T) {
			got, err := ParseHaulKey(test.s)
			if test.err {
				if err == nil {
					t.Fatalf("ParseHaulKey(%q): expected error", test.s)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("ParseHaulKey(%q) = %+v, want %+v", test.s, got, test.want)
			}
			back, err := ParseHaulKey(got.String())
			if err != nil || back != got {
				t.Errorf("round trip of %q failed: %+v, %v", test.s, back, err)
			}
		})
	}
}

func TestHaulKeyLess(t *testing.T) {
	a := HaulKey{Year: 2018, Survey: "GOA", Haul: 9}
	b := HaulKey{Year: 2019, Survey: "AI", Haul: 1}
	c := HaulKey{Year: 2019, Survey: "GOA", Haul: 1}
	d := HaulKey{Year: 2019, Survey: "GOA", Haul: 2}
	ordered := []HaulKey{a, b, c, d}
	for i := 0; i < len(ordered); i++ {
		for j := 0; j < len(ordered); j++ {
			if got, want := ordered[i].Less(ordered[j]), i < j; got != want {
				t.Errorf("%v.Less(%v) = %v, want %v", ordered[i], ordered[j], got, want)
			}
		}
	}
}
