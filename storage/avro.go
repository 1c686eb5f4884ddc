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

package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/linkedin/goavro/v2"

	"github.com/oceandata/groundfish"
)

// The Avro schemas below are the wire contract of a snapshot. They must not
// change within a release; the builder verifies every produced file against
// them before cutover.

const haulKeySchema = `{
  "type": "record", "name": "HaulKey", "namespace": "groundfish",
  "fields": [
    {"name": "year", "type": "int"},
    {"name": "survey", "type": "string"},
    {"name": "haul", "type": "long"}
  ]
}`

const indexEntrySchema = `{
  "type": "record", "name": "IndexEntry", "namespace": "groundfish",
  "fields": [
    {"name": "value", "type": ["null", "string", "long", "double"]},
    {"name": "keys", "type": {"type": "array", "items": {
      "type": "record", "name": "HaulKey",
      "fields": [
        {"name": "year", "type": "int"},
        {"name": "survey", "type": "string"},
        {"name": "haul", "type": "long"}
      ]}}}
  ]
}`

const observationSchema = `{
  "type": "record", "name": "Observation", "namespace": "groundfish",
  "fields": [
    {"name": "year", "type": "int"},
    {"name": "srvy", "type": ["null", "string"]},
    {"name": "survey", "type": "string"},
    {"name": "survey_name", "type": ["null", "string"]},
    {"name": "cruise", "type": ["null", "long"]},
    {"name": "cruisejoin", "type": ["null", "long"]},
    {"name": "hauljoin", "type": ["null", "long"]},
    {"name": "haul", "type": "long"},
    {"name": "stratum", "type": ["null", "long"]},
    {"name": "station", "type": ["null", "string"]},
    {"name": "vessel_name", "type": ["null", "string"]},
    {"name": "vessel_id", "type": ["null", "long"]},
    {"name": "date_time", "type": ["null", "string"]},
    {"name": "latitude_dd_start", "type": ["null", "double"]},
    {"name": "longitude_dd_start", "type": ["null", "double"]},
    {"name": "latitude_dd_end", "type": ["null", "double"]},
    {"name": "longitude_dd_end", "type": ["null", "double"]},
    {"name": "species_code", "type": ["null", "long"]},
    {"name": "common_name", "type": ["null", "string"]},
    {"name": "scientific_name", "type": ["null", "string"]},
    {"name": "taxon_confidence", "type": ["null", "string"]},
    {"name": "worms", "type": ["null", "long"]},
    {"name": "itis", "type": ["null", "long"]},
    {"name": "id_rank", "type": ["null", "string"]},
    {"name": "cpue_kgkm2", "type": ["null", "double"]},
    {"name": "cpue_nokm2", "type": ["null", "double"]},
    {"name": "count", "type": ["null", "long"]},
    {"name": "weight_kg", "type": ["null", "double"]},
    {"name": "bottom_temperature_c", "type": ["null", "double"]},
    {"name": "surface_temperature_c", "type": ["null", "double"]},
    {"name": "depth_m", "type": ["null", "double"]},
    {"name": "distance_fished_km", "type": ["null", "double"]},
    {"name": "net_width_m", "type": ["null", "double"]},
    {"name": "net_height_m", "type": ["null", "double"]},
    {"name": "area_swept_km2", "type": ["null", "double"]},
    {"name": "duration_hr", "type": ["null", "double"]},
    {"name": "performance", "type": ["null", "double"]},
    {"name": "complete", "type": "boolean"}
  ]
}`

const haulSchema = `{
  "type": "record", "name": "Haul", "namespace": "groundfish",
  "fields": [
    {"name": "year", "type": "int"},
    {"name": "srvy", "type": ["null", "string"]},
    {"name": "survey", "type": "string"},
    {"name": "survey_name", "type": ["null", "string"]},
    {"name": "cruise", "type": ["null", "long"]},
    {"name": "cruisejoin", "type": ["null", "long"]},
    {"name": "hauljoin", "type": ["null", "long"]},
    {"name": "haul", "type": "long"},
    {"name": "stratum", "type": ["null", "long"]},
    {"name": "station", "type": ["null", "string"]},
    {"name": "vessel_name", "type": ["null", "string"]},
    {"name": "vessel_id", "type": ["null", "long"]},
    {"name": "date_time", "type": ["null", "string"]},
    {"name": "latitude_dd_start", "type": ["null", "double"]},
    {"name": "longitude_dd_start", "type": ["null", "double"]},
    {"name": "latitude_dd_end", "type": ["null", "double"]},
    {"name": "longitude_dd_end", "type": ["null", "double"]},
    {"name": "bottom_temperature_c", "type": ["null", "double"]},
    {"name": "surface_temperature_c", "type": ["null", "double"]},
    {"name": "depth_m", "type": ["null", "double"]},
    {"name": "distance_fished_km", "type": ["null", "double"]},
    {"name": "net_width_m", "type": ["null", "double"]},
    {"name": "net_height_m", "type": ["null", "double"]},
    {"name": "area_swept_km2", "type": ["null", "double"]},
    {"name": "duration_hr", "type": ["null", "double"]},
    {"name": "performance", "type": ["null", "double"]}
  ]
}`

const catchSchema = `{
  "type": "record", "name": "Catch", "namespace": "groundfish",
  "fields": [
    {"name": "hauljoin", "type": "long"},
    {"name": "species_code", "type": "long"},
    {"name": "cpue_kgkm2", "type": ["null", "double"]},
    {"name": "cpue_nokm2", "type": ["null", "double"]},
    {"name": "count", "type": ["null", "long"]},
    {"name": "weight_kg", "type": ["null", "double"]},
    {"name": "taxon_confidence", "type": ["null", "string"]}
  ]
}`

const speciesSchema = `{
  "type": "record", "name": "Species", "namespace": "groundfish",
  "fields": [
    {"name": "species_code", "type": "long"},
    {"name": "scientific_name", "type": ["null", "string"]},
    {"name": "common_name", "type": ["null", "string"]},
    {"name": "id_rank", "type": ["null", "string"]},
    {"name": "worms", "type": ["null", "long"]},
    {"name": "itis", "type": ["null", "long"]}
  ]
}`

var (
	haulKeyCodec     = mustCodec(haulKeySchema)
	indexEntryCodec  = mustCodec(indexEntrySchema)
	observationCodec = mustCodec(observationSchema)
	haulCodec        = mustCodec(haulSchema)
	catchCodec       = mustCodec(catchSchema)
	speciesCodec     = mustCodec(speciesSchema)
)

func mustCodec(schema string) *goavro.Codec {
	c, err := goavro.NewCodec(schema)
	if err != nil {
		panic(fmt.Sprintf("storage: bad avro schema: %v", err))
	}
	return c
}

// InvalidRecordError reports a record in a flat file that does not conform
// to the observation schema. The raw decoded form is preserved so it can be
// surfaced on the cursor's invalid-records side channel.
type InvalidRecordError struct {
	Raw    map[string]interface{}
	Reason string
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("storage: invalid observation record: %s", e.Reason)
}

// IndexEntry pairs one normalized field value with the hauls containing an
// observation that normalizes to it.
type IndexEntry struct {
	Value interface{}
	Keys  []groundfish.HaulKey
}

// Haul is one upstream haul-metadata row.
type Haul struct {
	Year                int
	Srvy                *string
	Survey              string
	SurveyName          *string
	Cruise              *int64
	Cruisejoin          *int64
	Hauljoin            *int64
	Haul                int64
	Stratum             *int64
	Station             *string
	VesselName          *string
	VesselID            *int64
	DateTime            *string
	LatitudeDDStart     *float64
	LongitudeDDStart    *float64
	LatitudeDDEnd       *float64
	LongitudeDDEnd      *float64
	BottomTemperatureC  *float64
	SurfaceTemperatureC *float64
	DepthM              *float64
	DistanceFishedKm    *float64
	NetWidthM           *float64
	NetHeightM          *float64
	AreaSweptKm2        *float64
	DurationHr          *float64
	Performance         *float64
}

// Key returns the haul key of the row.
func (h *Haul) Key() groundfish.HaulKey {
	return groundfish.HaulKey{Year: h.Year, Survey: h.Survey, Haul: h.Haul}
}

// Catch is one upstream catch row: one species's take in one haul.
type Catch struct {
	Hauljoin        int64
	SpeciesCode     int64
	CPUEKgKm2       *float64
	CPUENoKm2       *float64
	Count           *int64
	WeightKg        *float64
	TaxonConfidence *string
}

// Species is one row of the curated species master list.
type Species struct {
	SpeciesCode    int64
	ScientificName *string
	CommonName     *string
	IDRank         *string
	Worms          *int64
	Itis           *int64
}

// writeOCF appends the native records to a new Avro object-container file
// and returns its bytes.
func writeOCF(codec *goavro.Codec, native []interface{}) ([]byte, error) {
	var buf bytes.Buffer
	w, err := goavro.NewOCFWriter(goavro.OCFConfig{W: &buf, Codec: codec})
	if err != nil {
		return nil, fmt.Errorf("storage: creating avro writer: %v", err)
	}
	// Appending an empty slice would write a zero-count block that readers
	// reject; a header-only container decodes as zero records.
	if len(native) > 0 {
		if err := w.Append(native); err != nil {
			return nil, fmt.Errorf("storage: appending avro records: %v", err)
		}
	}
	return buf.Bytes(), nil
}

// readOCF streams the records of an Avro object-container file through fn.
func readOCF(data []byte, fn func(interface{}) error) error {
	r, err := goavro.NewOCFReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("storage: opening avro container: %v", err)
	}
	for r.Scan() {
		datum, err := r.Read()
		if err != nil {
			return fmt.Errorf("storage: reading avro record: %v", err)
		}
		if err := fn(datum); err != nil {
			return err
		}
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("storage: scanning avro container: %v", err)
	}
	return nil
}

// EncodeHaulKeys writes a haul-key list file (index/main.avro).
func EncodeHaulKeys(keys []groundfish.HaulKey) ([]byte, error) {
	native := make([]interface{}, len(keys))
	for i, k := range keys {
		native[i] = haulKeyNative(k)
	}
	return writeOCF(haulKeyCodec, native)
}

// DecodeHaulKeys reads a haul-key list file.
func DecodeHaulKeys(data []byte) ([]groundfish.HaulKey, error) {
	var keys []groundfish.HaulKey
	err := readOCF(data, func(datum interface{}) error {
		k, err := nativeHaulKey(datum)
		if err != nil {
			return err
		}
		keys = append(keys, k)
		return nil
	})
	return keys, err
}

// EncodeIndexEntries writes one per-field index file or shard.
func EncodeIndexEntries(entries []IndexEntry) ([]byte, error) {
	native := make([]interface{}, len(entries))
	for i, e := range entries {
		keys := make([]interface{}, len(e.Keys))
		for j, k := range e.Keys {
			keys[j] = haulKeyNative(k)
		}
		native[i] = map[string]interface{}{
			"value": wrapIndexValue(e.Value),
			"keys":  keys,
		}
	}
	return writeOCF(indexEntryCodec, native)
}

// DecodeIndexEntries streams the entries of an index file through fn,
// without materializing the whole file's entries at once.
func DecodeIndexEntries(data []byte, fn func(IndexEntry) error) error {
	return readOCF(data, func(datum interface{}) error {
		m, ok := datum.(map[string]interface{})
		if !ok {
			return fmt.Errorf("storage: index entry has type %T", datum)
		}
		entry := IndexEntry{Value: unwrapUnion(m["value"])}
		rawKeys, _ := m["keys"].([]interface{})
		entry.Keys = make([]groundfish.HaulKey, 0, len(rawKeys))
		for _, rk := range rawKeys {
			k, err := nativeHaulKey(rk)
			if err != nil {
				return err
			}
			entry.Keys = append(entry.Keys, k)
		}
		return fn(entry)
	})
}

// EncodeObservations writes one joined per-haul flat file.
func EncodeObservations(recs []*groundfish.Record) ([]byte, error) {
	native := make([]interface{}, len(recs))
	for i, r := range recs {
		native[i] = observationNative(r)
	}
	return writeOCF(observationCodec, native)
}

// DecodeObservations reads a whole joined flat file, aborting on the first
// invalid record. The builder's verification step uses it; the query path
// streams with ObservationReader instead.
func DecodeObservations(data []byte) ([]*groundfish.Record, error) {
	var recs []*groundfish.Record
	err := readOCF(data, func(datum interface{}) error {
		r, err := nativeObservation(datum)
		if err != nil {
			return err
		}
		recs = append(recs, r)
		return nil
	})
	return recs, err
}

// ObservationReader decodes a joined flat file one record at a time, in
// file order.
type ObservationReader struct {
	r *goavro.OCFReader
}

// NewObservationReader opens a joined flat file for streaming.
func NewObservationReader(data []byte) (*ObservationReader, error) {
	r, err := goavro.NewOCFReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("storage: opening avro container: %v", err)
	}
	return &ObservationReader{r: r}, nil
}

// Next returns the next record, io.EOF at end of file, or an
// *InvalidRecordError for a record that does not conform to the schema.
// Container-level corruption returns an ordinary error.
func (o *ObservationReader) Next() (*groundfish.Record, error) {
	if !o.r.Scan() {
		if err := o.r.Err(); err != nil {
			return nil, fmt.Errorf("storage: scanning avro container: %v", err)
		}
		return nil, io.EOF
	}
	datum, err := o.r.Read()
	if err != nil {
		return nil, fmt.Errorf("storage: reading avro record: %v", err)
	}
	return nativeObservation(datum)
}

// EncodeHauls writes a haul shard file.
func EncodeHauls(hauls []*Haul) ([]byte, error) {
	native := make([]interface{}, len(hauls))
	for i, h := range hauls {
		native[i] = map[string]interface{}{
			"year":                  int32(h.Year),
			"srvy":                  wrapString(h.Srvy),
			"survey":                h.Survey,
			"survey_name":           wrapString(h.SurveyName),
			"cruise":                wrapLong(h.Cruise),
			"cruisejoin":            wrapLong(h.Cruisejoin),
			"hauljoin":              wrapLong(h.Hauljoin),
			"haul":                  h.Haul,
			"stratum":               wrapLong(h.Stratum),
			"station":               wrapString(h.Station),
			"vessel_name":           wrapString(h.VesselName),
			"vessel_id":             wrapLong(h.VesselID),
			"date_time":             wrapString(h.DateTime),
			"latitude_dd_start":     wrapDouble(h.LatitudeDDStart),
			"longitude_dd_start":    wrapDouble(h.LongitudeDDStart),
			"latitude_dd_end":       wrapDouble(h.LatitudeDDEnd),
			"longitude_dd_end":      wrapDouble(h.LongitudeDDEnd),
			"bottom_temperature_c":  wrapDouble(h.BottomTemperatureC),
			"surface_temperature_c": wrapDouble(h.SurfaceTemperatureC),
			"depth_m":               wrapDouble(h.DepthM),
			"distance_fished_km":    wrapDouble(h.DistanceFishedKm),
			"net_width_m":           wrapDouble(h.NetWidthM),
			"net_height_m":          wrapDouble(h.NetHeightM),
			"area_swept_km2":        wrapDouble(h.AreaSweptKm2),
			"duration_hr":           wrapDouble(h.DurationHr),
			"performance":           wrapDouble(h.Performance),
		}
	}
	return writeOCF(haulCodec, native)
}

// DecodeHauls reads a haul shard file.
func DecodeHauls(data []byte) ([]*Haul, error) {
	var hauls []*Haul
	err := readOCF(data, func(datum interface{}) error {
		m, ok := datum.(map[string]interface{})
		if !ok {
			return fmt.Errorf("storage: haul record has type %T", datum)
		}
		year, ok := asInt(m["year"])
		if !ok {
			return fmt.Errorf("storage: haul record missing year")
		}
		survey, ok := m["survey"].(string)
		if !ok {
			return fmt.Errorf("storage: haul record missing survey")
		}
		haulNo, ok := asLong(m["haul"])
		if !ok {
			return fmt.Errorf("storage: haul record missing haul")
		}
		hauls = append(hauls, &Haul{
			Year:                year,
			Srvy:                unwrapString(m["srvy"]),
			Survey:              survey,
			SurveyName:          unwrapString(m["survey_name"]),
			Cruise:              unwrapLong(m["cruise"]),
			Cruisejoin:          unwrapLong(m["cruisejoin"]),
			Hauljoin:            unwrapLong(m["hauljoin"]),
			Haul:                haulNo,
			Stratum:             unwrapLong(m["stratum"]),
			Station:             unwrapString(m["station"]),
			VesselName:          unwrapString(m["vessel_name"]),
			VesselID:            unwrapLong(m["vessel_id"]),
			DateTime:            unwrapString(m["date_time"]),
			LatitudeDDStart:     unwrapDouble(m["latitude_dd_start"]),
			LongitudeDDStart:    unwrapDouble(m["longitude_dd_start"]),
			LatitudeDDEnd:       unwrapDouble(m["latitude_dd_end"]),
			LongitudeDDEnd:      unwrapDouble(m["longitude_dd_end"]),
			BottomTemperatureC:  unwrapDouble(m["bottom_temperature_c"]),
			SurfaceTemperatureC: unwrapDouble(m["surface_temperature_c"]),
			DepthM:              unwrapDouble(m["depth_m"]),
			DistanceFishedKm:    unwrapDouble(m["distance_fished_km"]),
			NetWidthM:           unwrapDouble(m["net_width_m"]),
			NetHeightM:          unwrapDouble(m["net_height_m"]),
			AreaSweptKm2:        unwrapDouble(m["area_swept_km2"]),
			DurationHr:          unwrapDouble(m["duration_hr"]),
			Performance:         unwrapDouble(m["performance"]),
		})
		return nil
	})
	return hauls, err
}

// EncodeCatches writes a catch shard file.
func EncodeCatches(catches []*Catch) ([]byte, error) {
	native := make([]interface{}, len(catches))
	for i, c := range catches {
		native[i] = map[string]interface{}{
			"hauljoin":         c.Hauljoin,
			"species_code":     c.SpeciesCode,
			"cpue_kgkm2":       wrapDouble(c.CPUEKgKm2),
			"cpue_nokm2":       wrapDouble(c.CPUENoKm2),
			"count":            wrapLong(c.Count),
			"weight_kg":        wrapDouble(c.WeightKg),
			"taxon_confidence": wrapString(c.TaxonConfidence),
		}
	}
	return writeOCF(catchCodec, native)
}

// DecodeCatches reads a catch shard file.
func DecodeCatches(data []byte) ([]*Catch, error) {
	var catches []*Catch
	err := readOCF(data, func(datum interface{}) error {
		m, ok := datum.(map[string]interface{})
		if !ok {
			return fmt.Errorf("storage: catch record has type %T", datum)
		}
		hauljoin, ok := asLong(m["hauljoin"])
		if !ok {
			return fmt.Errorf("storage: catch record missing hauljoin")
		}
		code, ok := asLong(m["species_code"])
		if !ok {
			return fmt.Errorf("storage: catch record missing species_code")
		}
		catches = append(catches, &Catch{
			Hauljoin:        hauljoin,
			SpeciesCode:     code,
			CPUEKgKm2:       unwrapDouble(m["cpue_kgkm2"]),
			CPUENoKm2:       unwrapDouble(m["cpue_nokm2"]),
			Count:           unwrapLong(m["count"]),
			WeightKg:        unwrapDouble(m["weight_kg"]),
			TaxonConfidence: unwrapString(m["taxon_confidence"]),
		})
		return nil
	})
	return catches, err
}

// EncodeSpecies writes a species master shard file.
func EncodeSpecies(species []*Species) ([]byte, error) {
	native := make([]interface{}, len(species))
	for i, s := range species {
		native[i] = map[string]interface{}{
			"species_code":    s.SpeciesCode,
			"scientific_name": wrapString(s.ScientificName),
			"common_name":     wrapString(s.CommonName),
			"id_rank":         wrapString(s.IDRank),
			"worms":           wrapLong(s.Worms),
			"itis":            wrapLong(s.Itis),
		}
	}
	return writeOCF(speciesCodec, native)
}

// DecodeSpecies reads a species master shard file.
func DecodeSpecies(data []byte) ([]*Species, error) {
	var species []*Species
	err := readOCF(data, func(datum interface{}) error {
		m, ok := datum.(map[string]interface{})
		if !ok {
			return fmt.Errorf("storage: species record has type %T", datum)
		}
		code, ok := asLong(m["species_code"])
		if !ok {
			return fmt.Errorf("storage: species record missing species_code")
		}
		species = append(species, &Species{
			SpeciesCode:    code,
			ScientificName: unwrapString(m["scientific_name"]),
			CommonName:     unwrapString(m["common_name"]),
			IDRank:         unwrapString(m["id_rank"]),
			Worms:          unwrapLong(m["worms"]),
			Itis:           unwrapLong(m["itis"]),
		})
		return nil
	})
	return species, err
}

func haulKeyNative(k groundfish.HaulKey) map[string]interface{} {
	return map[string]interface{}{
		"year":   int32(k.Year),
		"survey": k.Survey,
		"haul":   k.Haul,
	}
}

func nativeHaulKey(datum interface{}) (groundfish.HaulKey, error) {
	m, ok := datum.(map[string]interface{})
	if !ok {
		return groundfish.HaulKey{}, fmt.Errorf("storage: haul key has type %T", datum)
	}
	year, yok := asInt(m["year"])
	survey, sok := m["survey"].(string)
	haul, hok := asLong(m["haul"])
	if !yok || !sok || !hok {
		return groundfish.HaulKey{}, fmt.Errorf("storage: malformed haul key %v", m)
	}
	return groundfish.HaulKey{Year: year, Survey: survey, Haul: haul}, nil
}

func observationNative(r *groundfish.Record) map[string]interface{} {
	return map[string]interface{}{
		"year":                  int32(r.Year),
		"srvy":                  wrapString(r.Srvy),
		"survey":                r.Survey,
		"survey_name":           wrapString(r.SurveyName),
		"cruise":                wrapLong(r.Cruise),
		"cruisejoin":            wrapLong(r.Cruisejoin),
		"hauljoin":              wrapLong(r.Hauljoin),
		"haul":                  r.Haul,
		"stratum":               wrapLong(r.Stratum),
		"station":               wrapString(r.Station),
		"vessel_name":           wrapString(r.VesselName),
		"vessel_id":             wrapLong(r.VesselID),
		"date_time":             wrapString(r.DateTime),
		"latitude_dd_start":     wrapDouble(r.LatitudeDDStart),
		"longitude_dd_start":    wrapDouble(r.LongitudeDDStart),
		"latitude_dd_end":       wrapDouble(r.LatitudeDDEnd),
		"longitude_dd_end":      wrapDouble(r.LongitudeDDEnd),
		"species_code":          wrapLong(r.SpeciesCode),
		"common_name":           wrapString(r.CommonName),
		"scientific_name":       wrapString(r.ScientificName),
		"taxon_confidence":      wrapString(r.TaxonConfidence),
		"worms":                 wrapLong(r.Worms),
		"itis":                  wrapLong(r.Itis),
		"id_rank":               wrapString(r.IDRank),
		"cpue_kgkm2":            wrapDouble(r.CPUEKgKm2),
		"cpue_nokm2":            wrapDouble(r.CPUENoKm2),
		"count":                 wrapLong(r.Count),
		"weight_kg":             wrapDouble(r.WeightKg),
		"bottom_temperature_c":  wrapDouble(r.BottomTemperatureC),
		"surface_temperature_c": wrapDouble(r.SurfaceTemperatureC),
		"depth_m":               wrapDouble(r.DepthM),
		"distance_fished_km":    wrapDouble(r.DistanceFishedKm),
		"net_width_m":           wrapDouble(r.NetWidthM),
		"net_height_m":          wrapDouble(r.NetHeightM),
		"area_swept_km2":        wrapDouble(r.AreaSweptKm2),
		"duration_hr":           wrapDouble(r.DurationHr),
		"performance":           wrapDouble(r.Performance),
		"complete":              r.Complete,
	}
}

func nativeObservation(datum interface{}) (*groundfish.Record, error) {
	m, ok := datum.(map[string]interface{})
	if !ok {
		return nil, &InvalidRecordError{Reason: fmt.Sprintf("record has type %T", datum)}
	}
	year, yok := asInt(m["year"])
	survey, sok := m["survey"].(string)
	haul, hok := asLong(m["haul"])
	complete, cok := m["complete"].(bool)
	if !yok || !sok || !hok || !cok {
		return nil, &InvalidRecordError{Raw: m, Reason: "missing schema-required field"}
	}
	return &groundfish.Record{
		Year:                year,
		Srvy:                unwrapString(m["srvy"]),
		Survey:              survey,
		SurveyName:          unwrapString(m["survey_name"]),
		Cruise:              unwrapLong(m["cruise"]),
		Cruisejoin:          unwrapLong(m["cruisejoin"]),
		Hauljoin:            unwrapLong(m["hauljoin"]),
		Haul:                haul,
		Stratum:             unwrapLong(m["stratum"]),
		Station:             unwrapString(m["station"]),
		VesselName:          unwrapString(m["vessel_name"]),
		VesselID:            unwrapLong(m["vessel_id"]),
		DateTime:            unwrapString(m["date_time"]),
		LatitudeDDStart:     unwrapDouble(m["latitude_dd_start"]),
		LongitudeDDStart:    unwrapDouble(m["longitude_dd_start"]),
		LatitudeDDEnd:       unwrapDouble(m["latitude_dd_end"]),
		LongitudeDDEnd:      unwrapDouble(m["longitude_dd_end"]),
		SpeciesCode:         unwrapLong(m["species_code"]),
		CommonName:          unwrapString(m["common_name"]),
		ScientificName:      unwrapString(m["scientific_name"]),
		TaxonConfidence:     unwrapString(m["taxon_confidence"]),
		Worms:               unwrapLong(m["worms"]),
		Itis:                unwrapLong(m["itis"]),
		IDRank:              unwrapString(m["id_rank"]),
		CPUEKgKm2:           unwrapDouble(m["cpue_kgkm2"]),
		CPUENoKm2:           unwrapDouble(m["cpue_nokm2"]),
		Count:               unwrapLong(m["count"]),
		WeightKg:            unwrapDouble(m["weight_kg"]),
		BottomTemperatureC:  unwrapDouble(m["bottom_temperature_c"]),
		SurfaceTemperatureC: unwrapDouble(m["surface_temperature_c"]),
		DepthM:              unwrapDouble(m["depth_m"]),
		DistanceFishedKm:    unwrapDouble(m["distance_fished_km"]),
		NetWidthM:           unwrapDouble(m["net_width_m"]),
		NetHeightM:          unwrapDouble(m["net_height_m"]),
		AreaSweptKm2:        unwrapDouble(m["area_swept_km2"]),
		DurationHr:          unwrapDouble(m["duration_hr"]),
		Performance:         unwrapDouble(m["performance"]),
		Complete:            complete,
	}, nil
}

// Union helpers. goavro represents a union value as a single-entry map
// keyed by the member type name, or nil for null.

func wrapString(p *string) interface{} {
	if p == nil {
		return nil
	}
	return goavro.Union("string", *p)
}

func wrapLong(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return goavro.Union("long", *p)
}

func wrapDouble(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return goavro.Union("double", *p)
}

// wrapIndexValue wraps a normalized index value into the
// {null,string,long,double} union.
func wrapIndexValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return goavro.Union("string", x)
	case int64:
		return goavro.Union("long", x)
	case int:
		return goavro.Union("long", int64(x))
	case int32:
		return goavro.Union("long", int64(x))
	case float64:
		return goavro.Union("double", x)
	}
	return goavro.Union("string", fmt.Sprint(v))
}

func unwrapUnion(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	for _, member := range m {
		return member
	}
	return nil
}

func unwrapString(v interface{}) *string {
	if s, ok := unwrapUnion(v).(string); ok {
		return &s
	}
	return nil
}

func unwrapLong(v interface{}) *int64 {
	if i, ok := asLong(unwrapUnion(v)); ok {
		return &i
	}
	return nil
}

func unwrapDouble(v interface{}) *float64 {
	if f, ok := unwrapUnion(v).(float64); ok {
		return &f
	}
	return nil
}

func asInt(v interface{}) (int, bool) {
	switch x := unwrapUnion(v).(type) {
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case int:
		return x, true
	}
	return 0, false
}

func asLong(v interface{}) (int64, bool) {
	switch x := unwrapUnion(v).(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int:
		return int64(x), true
	}
	return 0, false
}
