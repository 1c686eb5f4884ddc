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
	"strconv"
	"testing"
)

func TestNormalizeFloat(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "0.00"},
		{1, "1.00"},
		{53.061234, "53.06"},
		{53.065, "53.07"},  // half rounds away from zero
		{-166.045, "-166.05"},
		{-166.044, "-166.04"},
		{0.005, "0.01"},
		{-0.005, "-0.01"},
		{123.456, "123.46"},
		{-0.001, "0.00"}, // negative zero folds into the 0.00 bucket
		{-0.004, "0.00"},
	}
	for _, test := range tests {
		t.Run(test.want, func(t *testing.T) {
			got := NormalizeFloat(test.v)
			if got != test.want {
				t.Errorf("NormalizeFloat(%v) = %q, want %q", test.v, got, test.want)
			}
			// Idempotent over re-parsing: the builder may normalize a value
			// that an older shard already normalized.
			f, err := strconv.ParseFloat(got, 64)
			if err != nil {
				t.Fatal(err)
			}
			if again := NormalizeFloat(f); again != got {
				t.Errorf("NormalizeFloat(%q) = %q; not idempotent", got, again)
			}
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2019-07-18T11:02:00", "2019-07-18"},
		{"2019-07-18T11:02:00Z", "2019-07-18"},
		{"2019-07-18", "2019-07-18"},
		{"", ""},
	}
	for _, test := range tests {
		if got := NormalizeDate(test.in); got != test.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("depth_m", 53.061); got != "53.06" {
		t.Errorf("Normalize(depth_m, 53.061) = %v", got)
	}
	if got := Normalize("depth_m", "53.061"); got != "53.06" {
		t.Errorf("Normalize(depth_m, \"53.061\") = %v; string input should re-bucket", got)
	}
	if got := Normalize("date_time", "2019-07-18T11:02:00"); got != "2019-07-18" {
		t.Errorf("Normalize(date_time, ...) = %v", got)
	}
	if got := Normalize("year", int64(2019)); got != int64(2019) {
		t.Errorf("Normalize(year, 2019) = %v; ints pass through", got)
	}
	if got := Normalize("performance", 1.234); got != 1.234 {
		t.Errorf("Normalize(performance, 1.234) = %v; flat floats pass through", got)
	}
	if got := Normalize("depth_m", nil); got != nil {
		t.Errorf("Normalize(depth_m, nil) = %v, want nil", got)
	}
}
