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

import "fmt"

// Unit dimensions recognized by the filter setters. Conversion always goes
// through the dimension's canonical unit, which is also the storage unit of
// every field carrying that dimension.
const (
	DimArea        = "area"
	DimDistance    = "distance"
	DimTemperature = "temperature"
	DimTime        = "time"
	DimWeight      = "weight"
	DimCPUEWeight  = "cpue_weight"
	DimCPUECount   = "cpue_count"
	DimDegrees     = "degrees"
)

// unitFactors maps, per dimension, each recognized unit to its size in the
// dimension's canonical unit. Temperature is affine and handled separately.
var unitFactors = map[string]map[string]float64{
	DimArea: {
		"ha":  0.01,
		"m2":  1e-6,
		"km2": 1,
	},
	DimDistance: {
		"m":  0.001,
		"km": 1,
	},
	DimTime: {
		"day": 24,
		"hr":  1,
		"min": 1.0 / 60,
	},
	DimWeight: {
		"g":  0.001,
		"kg": 1,
	},
	DimCPUEWeight: {
		"kg/ha":      100,
		"kg/km2":     1,
		"kg1000/km2": 1000,
	},
	DimCPUECount: {
		"no/ha":      100,
		"no/km2":     1,
		"no1000/km2": 1000,
	},
	DimDegrees: {
		"dd": 1,
	},
}

// ConvertUnits converts v between two units of the same dimension. An
// unknown dimension or unit is a filter-construction error.
func ConvertUnits(dim string, v float64, from, to string) (float64, error) {
	if from == to {
		return v, nil
	}
	if dim == DimTemperature {
		return convertTemperature(v, from, to)
	}
	factors, ok := unitFactors[dim]
	if !ok {
		return 0, fmt.Errorf("groundfish: unknown unit dimension %q", dim)
	}
	ff, ok := factors[from]
	if !ok {
		return 0, fmt.Errorf("groundfish: unknown %s unit %q", dim, from)
	}
	tf, ok := factors[to]
	if !ok {
		return 0, fmt.Errorf("groundfish: unknown %s unit %q", dim, to)
	}
	return v * ff / tf, nil
}

func convertTemperature(v float64, from, to string) (float64, error) {
	var c float64
	switch from {
	case "c":
		c = v
	case "f":
		c = (v - 32) / 1.8
	default:
		return 0, fmt.Errorf("groundfish: unknown temperature unit %q", from)
	}
	switch to {
	case "c":
		return c, nil
	case "f":
		return 1.8*c + 32, nil
	}
	return 0, fmt.Errorf("groundfish: unknown temperature unit %q", to)
}
