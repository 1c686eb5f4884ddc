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
	"fmt"

	"github.com/spf13/cast"
)

// FilterKind distinguishes the three filter states a field can be in.
type FilterKind int

const (
	// FilterEmpty means no constraint; the field is ignorable.
	FilterEmpty FilterKind = iota
	// FilterEquals constrains the field to a single value.
	FilterEquals
	// FilterRange constrains the field to a closed interval, either bound
	// possibly absent.
	FilterRange
)

// FieldFilter is the tagged filter value for one field. Values are held in
// the field's storage type and storage units; the setters in package query
// convert user units before construction.
type FieldFilter struct {
	Info FieldInfo
	Kind FilterKind

	// Eq holds the equality value when Kind is FilterEquals.
	Eq interface{}

	// Lo and Hi hold the interval bounds when Kind is FilterRange; a nil
	// bound is open.
	Lo, Hi interface{}
}

// NewFieldFilter builds the filter for one field from an optional equality
// value and optional range bounds. Combining equality with either bound is a
// construction error. A range with both bounds absent is equivalent to no
// constraint at all. Values are coerced to the field's storage type.
func NewFieldFilter(info FieldInfo, eq, lo, hi interface{}) (FieldFilter, error) {
	if eq != nil && (lo != nil || hi != nil) {
		return FieldFilter{}, fmt.Errorf("groundfish: filter on %s combines equality with a range bound", info.Name)
	}
	f := FieldFilter{Info: info}
	var err error
	switch {
	case eq != nil:
		f.Kind = FilterEquals
		if f.Eq, err = coerceValue(info, eq); err != nil {
			return FieldFilter{}, err
		}
	case lo != nil || hi != nil:
		f.Kind = FilterRange
		if lo != nil {
			if f.Lo, err = coerceValue(info, lo); err != nil {
				return FieldFilter{}, err
			}
		}
		if hi != nil {
			if f.Hi, err = coerceValue(info, hi); err != nil {
				return FieldFilter{}, err
			}
		}
	default:
		f.Kind = FilterEmpty
	}
	return f, nil
}

// Empty reports whether the filter imposes no constraint.
func (f FieldFilter) Empty() bool {
	return f.Kind == FilterEmpty
}

func coerceValue(info FieldInfo, v interface{}) (interface{}, error) {
	switch info.Type {
	case TypeInt:
		i, err := cast.ToInt64E(v)
		if err != nil {
			return nil, fmt.Errorf("groundfish: filter on %s: %v", info.Name, err)
		}
		return i, nil
	case TypeFloat:
		x, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("groundfish: filter on %s: %v", info.Name, err)
		}
		return x, nil
	case TypeString, TypeDatetime:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("groundfish: filter on %s: %v", info.Name, err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("groundfish: filter on %s: unknown value type", info.Name)
}
