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

// Package index selects the haul files a filtered query needs to fetch, by
// scanning the per-field inverted indices of a snapshot and intersecting
// the per-field candidate sets.
package index

import (
	"strconv"

	"github.com/oceandata/groundfish"
)

// Predicate decides whether one normalized index value satisfies a field's
// filter. A null value never matches.
type Predicate func(value interface{}) bool

// NewPredicate builds the decision procedure for one field filter. The
// value passed in must already be in canonical normalized form; the
// predicate normalizes the filter bounds the same way, so floating-point
// comparison happens between two-decimal buckets on both sides and
// datetime comparison is day-granular.
func NewPredicate(f groundfish.FieldFilter) Predicate {
	switch f.Info.Type {
	case groundfish.TypeString:
		return stringPredicate(f)
	case groundfish.TypeDatetime:
		return datePredicate(f)
	case groundfish.TypeInt:
		return intPredicate(f)
	case groundfish.TypeFloat:
		if groundfish.FloatField(f.Info.Storage[0]) {
			return bucketedFloatPredicate(f)
		}
		return rawFloatPredicate(f)
	}
	return func(interface{}) bool { return false }
}

func stringPredicate(f groundfish.FieldFilter) Predicate {
	return func(value interface{}) bool {
		s, ok := value.(string)
		if !ok {
			return false
		}
		switch f.Kind {
		case groundfish.FilterEquals:
			return s == f.Eq.(string)
		case groundfish.FilterRange:
			if f.Lo != nil && s < f.Lo.(string) {
				return false
			}
			if f.Hi != nil && s > f.Hi.(string) {
				return false
			}
			return true
		}
		return false
	}
}

func datePredicate(f groundfish.FieldFilter) Predicate {
	var eq, lo, hi string
	if f.Eq != nil {
		eq = groundfish.NormalizeDate(f.Eq.(string))
	}
	if f.Lo != nil {
		lo = groundfish.NormalizeDate(f.Lo.(string))
	}
	if f.Hi != nil {
		hi = groundfish.NormalizeDate(f.Hi.(string))
	}
	return func(value interface{}) bool {
		s, ok := value.(string)
		if !ok {
			return false
		}
		s = groundfish.NormalizeDate(s)
		switch f.Kind {
		case groundfish.FilterEquals:
			return s == eq
		case groundfish.FilterRange:
			if f.Lo != nil && s < lo {
				return false
			}
			if f.Hi != nil && s > hi {
				return false
			}
			return true
		}
		return false
	}
}

func intPredicate(f groundfish.FieldFilter) Predicate {
	return func(value interface{}) bool {
		var i int64
		switch x := value.(type) {
		case int64:
			i = x
		case int32:
			i = int64(x)
		case int:
			i = int64(x)
		default:
			return false
		}
		switch f.Kind {
		case groundfish.FilterEquals:
			return i == f.Eq.(int64)
		case groundfish.FilterRange:
			if f.Lo != nil && i < f.Lo.(int64) {
				return false
			}
			if f.Hi != nil && i > f.Hi.(int64) {
				return false
			}
			return true
		}
		return false
	}
}

// bucketedFloatPredicate compares in the two-decimal bucket domain. Index
// values for bucketed fields are stored as their normalized string form;
// equality is string equality of buckets, and range bounds are quantized
// before numeric comparison so that bucket membership decides inclusion.
func bucketedFloatPredicate(f groundfish.FieldFilter) Predicate {
	quantize := func(v float64) float64 {
		q, _ := strconv.ParseFloat(groundfish.NormalizeFloat(v), 64)
		return q
	}
	return func(value interface{}) bool {
		s, ok := value.(string)
		if !ok {
			return false
		}
		switch f.Kind {
		case groundfish.FilterEquals:
			return s == groundfish.NormalizeFloat(f.Eq.(float64))
		case groundfish.FilterRange:
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return false
			}
			if f.Lo != nil && v < quantize(f.Lo.(float64)) {
				return false
			}
			if f.Hi != nil && v > quantize(f.Hi.(float64)) {
				return false
			}
			return true
		}
		return false
	}
}

// rawFloatPredicate serves the flat float indices (performance), whose
// values are stored unbucketed.
func rawFloatPredicate(f groundfish.FieldFilter) Predicate {
	return func(value interface{}) bool {
		v, ok := value.(float64)
		if !ok {
			return false
		}
		switch f.Kind {
		case groundfish.FilterEquals:
			return v == f.Eq.(float64)
		case groundfish.FilterRange:
			if f.Lo != nil && v < f.Lo.(float64) {
				return false
			}
			if f.Hi != nil && v > f.Hi.(float64) {
				return false
			}
			return true
		}
		return false
	}
}
