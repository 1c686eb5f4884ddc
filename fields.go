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

import "sort"

// ValueType is the storage data type a filter compares against.
type ValueType int

const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeDatetime
)

// FieldInfo describes one filterable field: how a user-facing field name
// maps onto stored record attributes and on-disk indices, the value type,
// and the unit dimension if the field carries units.
type FieldInfo struct {
	// Name is the user-facing field name.
	Name string

	// Storage lists the record attributes the field reads. Most fields
	// map to exactly one attribute; latitude_dd and longitude_dd map to
	// their start and end attributes and a record matches when either
	// does.
	Storage []string

	// Indexes lists the on-disk index names consulted for this field.
	// Empty means the field is local-only. The candidate haul set for a
	// field is the union over its indices of the hauls whose entries
	// match.
	Indexes []string

	Type ValueType

	// Dimension and StorageUnit are set for unit-carrying fields.
	// DefaultUnit is the unit assumed when the caller does not pass one;
	// for the alternate-unit cpue and area field names it differs from
	// StorageUnit.
	Dimension   string
	StorageUnit string
	DefaultUnit string

	// PresenceOnly marks species-identity fields whose index excludes
	// inferred zero-catch rows.
	PresenceOnly bool
}

// Fields is the registry of filterable fields, keyed by user-facing name.
var Fields = map[string]FieldInfo{
	"year":        {Name: "year", Storage: []string{"year"}, Indexes: []string{"year"}, Type: TypeInt},
	"srvy":        {Name: "srvy", Storage: []string{"srvy"}, Indexes: []string{"srvy"}, Type: TypeString},
	"survey":      {Name: "survey", Storage: []string{"survey"}, Indexes: []string{"survey"}, Type: TypeString},
	"survey_name": {Name: "survey_name", Storage: []string{"survey_name"}, Type: TypeString},
	"stratum":     {Name: "stratum", Storage: []string{"stratum"}, Indexes: []string{"stratum"}, Type: TypeInt},
	"station":     {Name: "station", Storage: []string{"station"}, Indexes: []string{"station"}, Type: TypeString},
	"vessel_name": {Name: "vessel_name", Storage: []string{"vessel_name"}, Indexes: []string{"vessel_name"}, Type: TypeString},
	"vessel_id":   {Name: "vessel_id", Storage: []string{"vessel_id"}, Indexes: []string{"vessel_id"}, Type: TypeInt},
	"date_time":   {Name: "date_time", Storage: []string{"date_time"}, Indexes: []string{"date_time"}, Type: TypeDatetime},

	"latitude_dd": {Name: "latitude_dd", Storage: []string{"latitude_dd_start", "latitude_dd_end"},
		Indexes: []string{"latitude_dd_start", "latitude_dd_end"}, Type: TypeFloat,
		Dimension: DimDegrees, StorageUnit: "dd", DefaultUnit: "dd"},
	"longitude_dd": {Name: "longitude_dd", Storage: []string{"longitude_dd_start", "longitude_dd_end"},
		Indexes: []string{"longitude_dd_start", "longitude_dd_end"}, Type: TypeFloat,
		Dimension: DimDegrees, StorageUnit: "dd", DefaultUnit: "dd"},
	"latitude_dd_start": {Name: "latitude_dd_start", Storage: []string{"latitude_dd_start"},
		Indexes: []string{"latitude_dd_start"}, Type: TypeFloat, Dimension: DimDegrees, StorageUnit: "dd", DefaultUnit: "dd"},
	"latitude_dd_end": {Name: "latitude_dd_end", Storage: []string{"latitude_dd_end"},
		Indexes: []string{"latitude_dd_end"}, Type: TypeFloat, Dimension: DimDegrees, StorageUnit: "dd", DefaultUnit: "dd"},
	"longitude_dd_start": {Name: "longitude_dd_start", Storage: []string{"longitude_dd_start"},
		Indexes: []string{"longitude_dd_start"}, Type: TypeFloat, Dimension: DimDegrees, StorageUnit: "dd", DefaultUnit: "dd"},
	"longitude_dd_end": {Name: "longitude_dd_end", Storage: []string{"longitude_dd_end"},
		Indexes: []string{"longitude_dd_end"}, Type: TypeFloat, Dimension: DimDegrees, StorageUnit: "dd", DefaultUnit: "dd"},

	"species_code": {Name: "species_code", Storage: []string{"species_code"}, Indexes: []string{"species_code"},
		Type: TypeInt, PresenceOnly: true},
	"common_name": {Name: "common_name", Storage: []string{"common_name"}, Indexes: []string{"common_name"},
		Type: TypeString, PresenceOnly: true},
	"scientific_name": {Name: "scientific_name", Storage: []string{"scientific_name"}, Indexes: []string{"scientific_name"},
		Type: TypeString, PresenceOnly: true},
	"taxon_confidence": {Name: "taxon_confidence", Storage: []string{"taxon_confidence"}, Indexes: []string{"taxon_confidence"},
		Type: TypeString},
	"worms":   {Name: "worms", Storage: []string{"worms"}, Type: TypeInt},
	"itis":    {Name: "itis", Storage: []string{"itis"}, Type: TypeInt},
	"id_rank": {Name: "id_rank", Storage: []string{"id_rank"}, Type: TypeString},

	"cpue_kgkm2": {Name: "cpue_kgkm2", Storage: []string{"cpue_kgkm2"}, Indexes: []string{"cpue_kgkm2"},
		Type: TypeFloat, Dimension: DimCPUEWeight, StorageUnit: "kg/km2", DefaultUnit: "kg/km2"},
	"cpue_kgha": {Name: "cpue_kgha", Storage: []string{"cpue_kgkm2"}, Indexes: []string{"cpue_kgkm2"},
		Type: TypeFloat, Dimension: DimCPUEWeight, StorageUnit: "kg/km2", DefaultUnit: "kg/ha"},
	"cpue_kg1000km2": {Name: "cpue_kg1000km2", Storage: []string{"cpue_kgkm2"}, Indexes: []string{"cpue_kgkm2"},
		Type: TypeFloat, Dimension: DimCPUEWeight, StorageUnit: "kg/km2", DefaultUnit: "kg1000/km2"},
	"cpue_nokm2": {Name: "cpue_nokm2", Storage: []string{"cpue_nokm2"}, Indexes: []string{"cpue_nokm2"},
		Type: TypeFloat, Dimension: DimCPUECount, StorageUnit: "no/km2", DefaultUnit: "no/km2"},
	"cpue_noha": {Name: "cpue_noha", Storage: []string{"cpue_nokm2"}, Indexes: []string{"cpue_nokm2"},
		Type: TypeFloat, Dimension: DimCPUECount, StorageUnit: "no/km2", DefaultUnit: "no/ha"},
	"cpue_no1000km2": {Name: "cpue_no1000km2", Storage: []string{"cpue_nokm2"}, Indexes: []string{"cpue_nokm2"},
		Type: TypeFloat, Dimension: DimCPUECount, StorageUnit: "no/km2", DefaultUnit: "no1000/km2"},

	"weight_kg": {Name: "weight_kg", Storage: []string{"weight_kg"}, Indexes: []string{"weight_kg"},
		Type: TypeFloat, Dimension: DimWeight, StorageUnit: "kg", DefaultUnit: "kg"},
	"count": {Name: "count", Storage: []string{"count"}, Indexes: []string{"count"}, Type: TypeInt},
	"bottom_temperature_c": {Name: "bottom_temperature_c", Storage: []string{"bottom_temperature_c"},
		Indexes: []string{"bottom_temperature_c"}, Type: TypeFloat, Dimension: DimTemperature, StorageUnit: "c", DefaultUnit: "c"},
	"surface_temperature_c": {Name: "surface_temperature_c", Storage: []string{"surface_temperature_c"},
		Indexes: []string{"surface_temperature_c"}, Type: TypeFloat, Dimension: DimTemperature, StorageUnit: "c", DefaultUnit: "c"},
	"depth_m": {Name: "depth_m", Storage: []string{"depth_m"}, Indexes: []string{"depth_m"},
		Type: TypeFloat, Dimension: DimDistance, StorageUnit: "m", DefaultUnit: "m"},
	"distance_fished_km": {Name: "distance_fished_km", Storage: []string{"distance_fished_km"}, Indexes: []string{"distance_fished_km"},
		Type: TypeFloat, Dimension: DimDistance, StorageUnit: "km", DefaultUnit: "km"},
	"net_width_m": {Name: "net_width_m", Storage: []string{"net_width_m"}, Indexes: []string{"net_width_m"},
		Type: TypeFloat, Dimension: DimDistance, StorageUnit: "m", DefaultUnit: "m"},
	"net_height_m": {Name: "net_height_m", Storage: []string{"net_height_m"}, Indexes: []string{"net_height_m"},
		Type: TypeFloat, Dimension: DimDistance, StorageUnit: "m", DefaultUnit: "m"},
	"area_swept_km2": {Name: "area_swept_km2", Storage: []string{"area_swept_km2"}, Indexes: []string{"area_swept_km2"},
		Type: TypeFloat, Dimension: DimArea, StorageUnit: "km2", DefaultUnit: "km2"},
	"area_swept_ha": {Name: "area_swept_ha", Storage: []string{"area_swept_km2"}, Indexes: []string{"area_swept_km2"},
		Type: TypeFloat, Dimension: DimArea, StorageUnit: "km2", DefaultUnit: "ha"},
	"duration_hr": {Name: "duration_hr", Storage: []string{"duration_hr"}, Indexes: []string{"duration_hr"},
		Type: TypeFloat, Dimension: DimTime, StorageUnit: "hr", DefaultUnit: "hr"},

	"performance": {Name: "performance", Storage: []string{"performance"}, Indexes: []string{"performance"}, Type: TypeFloat},
	"cruise":      {Name: "cruise", Storage: []string{"cruise"}, Indexes: []string{"cruise"}, Type: TypeInt},
	"cruisejoin":  {Name: "cruisejoin", Storage: []string{"cruisejoin"}, Indexes: []string{"cruisejoin"}, Type: TypeInt},
	"hauljoin":    {Name: "hauljoin", Storage: []string{"hauljoin"}, Indexes: []string{"hauljoin"}, Type: TypeInt},
	"haul":        {Name: "haul", Storage: []string{"haul"}, Indexes: []string{"haul"}, Type: TypeInt},
}

// flatIndexFields do not benefit from value bucketing: their indices are
// written flat, one entry per observation, with no reduce step.
var flatIndexFields = map[string]bool{
	"performance": true,
	"cruise":      true,
	"cruisejoin":  true,
	"hauljoin":    true,
	"haul":        true,
}

// FlatIndexField reports whether the named storage field is written flat.
func FlatIndexField(field string) bool {
	return flatIndexFields[field]
}

// presenceOnlyFields are meaningful only on rows where a species was
// actually caught; their indices exclude inferred zero-catch rows.
var presenceOnlyFields = map[string]bool{
	"species_code":    true,
	"scientific_name": true,
	"common_name":     true,
}

// PresenceOnlyField reports whether the named storage field is
// presence-only.
func PresenceOnlyField(field string) bool {
	return presenceOnlyFields[field]
}

// IndexedStorageFields returns the sorted set of storage fields that carry
// an on-disk index, which is also the set of indices the snapshot builder
// produces.
func IndexedStorageFields() []string {
	set := make(map[string]struct{})
	for _, info := range Fields {
		for _, idx := range info.Indexes {
			set[idx] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
