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

import "regexp"

// Record is one observation: the catch (possibly inferred zero catch) of one
// species in one haul, joined with the haul context. The key fields year,
// survey and haul are always present; every other field may be null in the
// upstream data and is therefore a pointer.
type Record struct {
	Year       int
	Srvy       *string
	Survey     string
	SurveyName *string
	Cruise     *int64
	Cruisejoin *int64
	Hauljoin   *int64
	Haul       int64
	Stratum    *int64
	Station    *string
	VesselName *string
	VesselID   *int64
	DateTime   *string

	LatitudeDDStart  *float64
	LongitudeDDStart *float64
	LatitudeDDEnd    *float64
	LongitudeDDEnd   *float64

	SpeciesCode     *int64
	CommonName      *string
	ScientificName  *string
	TaxonConfidence *string
	Worms           *int64
	Itis            *int64
	IDRank          *string

	CPUEKgKm2 *float64
	CPUENoKm2 *float64
	Count     *int64
	WeightKg  *float64

	BottomTemperatureC  *float64
	SurfaceTemperatureC *float64
	DepthM              *float64
	DistanceFishedKm    *float64
	NetWidthM           *float64
	NetHeightM          *float64
	AreaSweptKm2        *float64
	DurationHr          *float64
	Performance         *float64

	// Complete is materialized at build time; readers never recompute it.
	Complete bool
}

// Key returns the haul key of the tow this observation belongs to.
func (r *Record) Key() HaulKey {
	return HaulKey{Year: r.Year, Survey: r.Survey, Haul: r.Haul}
}

// ZeroCatch reports whether this record is an inferred zero-catch row: the
// haul occurred but the species was not caught.
func (r *Record) ZeroCatch() bool {
	return r.Count != nil && *r.Count == 0 && r.WeightKg != nil && *r.WeightKg == 0
}

// dateTimePattern matches ISO-8601 timestamps without a timezone; a trailing
// Z is tolerated because normalization truncates at the T anyway.
var dateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}(:\d{2}(\.\d+)?)?Z?)?$`)

// ValidDateTime reports whether the record carries a well-formed ISO-8601
// date_time string.
func (r *Record) ValidDateTime() bool {
	return r.DateTime != nil && dateTimePattern.MatchString(*r.DateTime)
}

// Attr returns the value of the storage field named by field, or (nil,
// false) if the field is null on this record. Unknown field names yield
// (nil, false) as well.
func (r *Record) Attr(field string) (interface{}, bool) {
	switch field {
	case "year":
		return int64(r.Year), true
	case "srvy":
		return strAttr(r.Srvy)
	case "survey":
		return r.Survey, true
	case "survey_name":
		return strAttr(r.SurveyName)
	case "cruise":
		return intAttr(r.Cruise)
	case "cruisejoin":
		return intAttr(r.Cruisejoin)
	case "hauljoin":
		return intAttr(r.Hauljoin)
	case "haul":
		return r.Haul, true
	case "stratum":
		return intAttr(r.Stratum)
	case "station":
		return strAttr(r.Station)
	case "vessel_name":
		return strAttr(r.VesselName)
	case "vessel_id":
		return intAttr(r.VesselID)
	case "date_time":
		return strAttr(r.DateTime)
	case "latitude_dd_start":
		return floatAttr(r.LatitudeDDStart)
	case "longitude_dd_start":
		return floatAttr(r.LongitudeDDStart)
	case "latitude_dd_end":
		return floatAttr(r.LatitudeDDEnd)
	case "longitude_dd_end":
		return floatAttr(r.LongitudeDDEnd)
	case "species_code":
		return intAttr(r.SpeciesCode)
	case "common_name":
		return strAttr(r.CommonName)
	case "scientific_name":
		return strAttr(r.ScientificName)
	case "taxon_confidence":
		return strAttr(r.TaxonConfidence)
	case "worms":
		return intAttr(r.Worms)
	case "itis":
		return intAttr(r.Itis)
	case "id_rank":
		return strAttr(r.IDRank)
	case "cpue_kgkm2":
		return floatAttr(r.CPUEKgKm2)
	case "cpue_nokm2":
		return floatAttr(r.CPUENoKm2)
	case "count":
		return intAttr(r.Count)
	case "weight_kg":
		return floatAttr(r.WeightKg)
	case "bottom_temperature_c":
		return floatAttr(r.BottomTemperatureC)
	case "surface_temperature_c":
		return floatAttr(r.SurfaceTemperatureC)
	case "depth_m":
		return floatAttr(r.DepthM)
	case "distance_fished_km":
		return floatAttr(r.DistanceFishedKm)
	case "net_width_m":
		return floatAttr(r.NetWidthM)
	case "net_height_m":
		return floatAttr(r.NetHeightM)
	case "area_swept_km2":
		return floatAttr(r.AreaSweptKm2)
	case "duration_hr":
		return floatAttr(r.DurationHr)
	case "performance":
		return floatAttr(r.Performance)
	case "complete":
		return r.Complete, true
	}
	return nil, false
}

// ToMap projects the record to a schemaless dictionary keyed by storage
// field name. Null fields are present with nil values.
func (r *Record) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(RecordFields))
	for _, f := range RecordFields {
		if v, ok := r.Attr(f); ok {
			m[f] = v
		} else {
			m[f] = nil
		}
	}
	return m
}

// RecordFields lists every storage field of the observation schema, in
// schema order.
var RecordFields = []string{
	"year", "srvy", "survey", "survey_name", "cruise", "cruisejoin",
	"hauljoin", "haul", "stratum", "station", "vessel_name", "vessel_id",
	"date_time", "latitude_dd_start", "longitude_dd_start",
	"latitude_dd_end", "longitude_dd_end", "species_code", "common_name",
	"scientific_name", "taxon_confidence", "worms", "itis", "id_rank",
	"cpue_kgkm2", "cpue_nokm2", "count", "weight_kg",
	"bottom_temperature_c", "surface_temperature_c", "depth_m",
	"distance_fished_km", "net_width_m", "net_height_m", "area_swept_km2",
	"duration_hr", "performance", "complete",
}

func strAttr(p *string) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func intAttr(p *int64) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func floatAttr(p *float64) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}
