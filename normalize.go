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
	"math"
	"strconv"
	"strings"
)

// The normalization rules here are the contract between the snapshot builder
// and the query executor: the builder writes normalized values into the
// per-field indices, and the index predicates normalize filter bounds the
// same way before comparing. Both sides must call these functions and
// nothing else.

// floatFields are the storage fields whose index values are bucketed to two
// decimals.
var floatFields = map[string]bool{
	"latitude_dd_start":     true,
	"longitude_dd_start":    true,
	"latitude_dd_end":       true,
	"longitude_dd_end":      true,
	"bottom_temperature_c":  true,
	"surface_temperature_c": true,
	"depth_m":               true,
	"distance_fished_km":    true,
	"duration_hr":           true,
	"net_width_m":           true,
	"net_height_m":          true,
	"area_swept_km2":        true,
	"cpue_kgkm2":            true,
	"cpue_nokm2":            true,
	"weight_kg":             true,
}

// FloatField reports whether the named storage field uses two-decimal
// bucketing in its index.
func FloatField(field string) bool {
	return floatFields[field]
}

// NormalizeFloat buckets a floating-point value to its canonical two-decimal
// string form, rounding half away from zero. Idempotent over re-parsing:
// NormalizeFloat of the parsed result returns the same string.
func NormalizeFloat(v float64) string {
	scaled := v * 100
	if scaled < 0 {
		scaled = math.Ceil(scaled - 0.5)
	} else {
		scaled = math.Floor(scaled + 0.5)
	}
	if scaled == 0 {
		// Fold negative zero so the bucket is "0.00", never "-0.00".
		scaled = 0
	}
	return strconv.FormatFloat(scaled/100, 'f', 2, 64)
}

// NormalizeDate truncates an ISO-8601 timestamp to its YYYY-MM-DD prefix.
func NormalizeDate(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}

// Normalize converts a field value to the canonical quantized form used for
// index lookup and equality. Null normalizes to null. Values of unexpected
// dynamic type pass through unchanged.
func Normalize(field string, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	if floatFields[field] {
		switch x := v.(type) {
		case float64:
			return NormalizeFloat(x)
		case string:
			// Already normalized; re-bucket as a paranoia guard.
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return NormalizeFloat(f)
			}
		}
		return v
	}
	if field == "date_time" {
		if s, ok := v.(string); ok {
			return NormalizeDate(s)
		}
	}
	return v
}
