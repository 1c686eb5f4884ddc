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

import "strconv"

// LocalFilter evaluates the full filter set against decoded records. The
// index-driven haul selection works at haul granularity, so every filtered
// field is re-checked here per record, not just the residual local-only
// fields.
type LocalFilter struct {
	filters []FieldFilter
}

// NewLocalFilter builds a conjunction of per-field predicates from the
// non-empty filters in the set.
func NewLocalFilter(filters []FieldFilter) *LocalFilter {
	l := &LocalFilter{}
	for _, f := range filters {
		if !f.Empty() {
			l.filters = append(l.filters, f)
		}
	}
	return l
}

// Matches reports whether the record satisfies every field filter. A field
// that maps to multiple record attributes (the coordinate start/end pairs)
// matches when any one attribute does.
func (l *LocalFilter) Matches(r *Record) bool {
	for _, f := range l.filters {
		matched := false
		for _, attr := range f.Info.Storage {
			v, ok := r.Attr(attr)
			if !ok {
				continue
			}
			if matchValue(f, attr, v) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// matchValue evaluates one filter against one non-null attribute value.
func matchValue(f FieldFilter, attr string, v interface{}) bool {
	switch f.Info.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return false
		}
		return matchString(f, s, f.Eq, f.Lo, f.Hi)
	case TypeDatetime:
		s, ok := v.(string)
		if !ok {
			return false
		}
		return matchDate(f, s)
	case TypeInt:
		i, ok := asInt64(v)
		if !ok {
			return false
		}
		return matchInt(f, i)
	case TypeFloat:
		x, ok := asFloat64(v)
		if !ok {
			return false
		}
		return matchFloat(f, attr, x)
	}
	return false
}

func matchString(f FieldFilter, s string, eq, lo, hi interface{}) bool {
	switch f.Kind {
	case FilterEquals:
		return s == eq.(string)
	case FilterRange:
		if lo != nil && s < lo.(string) {
			return false
		}
		if hi != nil && s > hi.(string) {
			return false
		}
		return true
	}
	return true
}

// matchDate compares day-granular: both sides are truncated to their
// YYYY-MM-DD prefix, which makes the lexicographic interval behave as a
// date interval.
func matchDate(f FieldFilter, s string) bool {
	day := NormalizeDate(s)
	var eq, lo, hi interface{}
	if f.Eq != nil {
		eq = NormalizeDate(f.Eq.(string))
	}
	if f.Lo != nil {
		lo = NormalizeDate(f.Lo.(string))
	}
	if f.Hi != nil {
		hi = NormalizeDate(f.Hi.(string))
	}
	return matchString(f, day, eq, lo, hi)
}

func matchInt(f FieldFilter, i int64) bool {
	switch f.Kind {
	case FilterEquals:
		return i == f.Eq.(int64)
	case FilterRange:
		if f.Lo != nil && i < f.Lo.(int64) {
			return false
		}
		if f.Hi != nil && i > f.Hi.(int64) {
			return false
		}
		return true
	}
	return true
}

// matchFloat applies the shared two-decimal bucketing before comparing, so
// local equality agrees exactly with on-disk index equality. Fields outside
// the bucketed set (performance) compare raw.
func matchFloat(f FieldFilter, attr string, x float64) bool {
	bucketed := FloatField(attr)
	quantize := func(v float64) float64 {
		if !bucketed {
			return v
		}
		q, _ := strconv.ParseFloat(NormalizeFloat(v), 64)
		return q
	}
	x = quantize(x)
	switch f.Kind {
	case FilterEquals:
		return x == quantize(f.Eq.(float64))
	case FilterRange:
		if f.Lo != nil && x < quantize(f.Lo.(float64)) {
			return false
		}
		if f.Hi != nil && x > quantize(f.Hi.(float64)) {
			return false
		}
		return true
	}
	return true
}

func asInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int:
		return int64(x), true
	}
	return 0, false
}

func asFloat64(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}
