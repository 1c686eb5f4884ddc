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

// Package query builds and executes filtered queries against a snapshot:
// the per-field filter setters with unit conversion, the index-driven haul
// selection, the parallel record stream, and the pull cursor the results
// are read from.
package query

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/oceandata/groundfish"
	"github.com/oceandata/groundfish/index"
	"github.com/oceandata/groundfish/storage"
)

// defaultIndexCacheEntries is the number of index files held in the
// environment's memory cache.
const defaultIndexCacheEntries = 64

// Env is a reusable execution environment for one snapshot bucket. Index
// files fetched by one query stay cached for the next; joined haul files
// are streamed uncached. An Env is safe for use from multiple goroutines,
// though each Cursor has a single consumer.
type Env struct {
	store *storage.Store
	cache *storage.CachingFetcher
}

// NewEnv opens the snapshot bucket at baseURL ("file://", "s3://" or
// "gs://").
func NewEnv(ctx context.Context, baseURL string) (*Env, error) {
	bucket, err := storage.OpenBucket(ctx, baseURL)
	if err != nil {
		return nil, fmt.Errorf("query: opening snapshot bucket: %v", err)
	}
	store := storage.NewStore(bucket)
	return &Env{
		store: store,
		cache: storage.NewCachingFetcher(store, defaultIndexCacheEntries),
	}, nil
}

// NewQuery starts an empty query against this environment.
func (e *Env) NewQuery() *Query {
	return &Query{
		filters:      make(map[string]groundfish.FieldFilter),
		fetcher:      e.store,
		indexFetcher: e.cache,
	}
}

// Query accumulates per-field filters and execution options. Setting a
// filter on a field overrides any previous filter on that field. Filter
// values are converted to storage units at the setter, so a construction
// error (equality combined with a range bound, or an unknown unit)
// surfaces immediately and no I/O happens until Run and the first Next.
type Query struct {
	filters map[string]groundfish.FieldFilter

	fetcher      storage.Fetcher
	indexFetcher storage.Fetcher

	limit                int
	filterIncomplete     bool
	presenceOnly         bool
	suppressLargeWarning bool
	warnThreshold        int
	warn                 func(string)
	concurrency          int
}

// New starts an empty query that will open the snapshot bucket at baseURL
// when it runs. Prefer an Env when issuing several queries against the
// same snapshot.
func New(ctx context.Context, baseURL string) (*Query, error) {
	env, err := NewEnv(ctx, baseURL)
	if err != nil {
		return nil, err
	}
	return env.NewQuery(), nil
}

// SetRequestor injects the object-storage fetcher, replacing the bucket
// client for both index and haul files. Intended for tests and callers
// with their own storage layer.
func (q *Query) SetRequestor(f storage.Fetcher) {
	q.fetcher = f
	q.indexFetcher = f
}

// SetLimit caps the number of records the cursor yields. Zero means no
// limit.
func (q *Query) SetLimit(n int) {
	q.limit = n
}

// FilterIncomplete drops records whose complete flag is false or whose
// date_time is not valid ISO-8601, diverting them to the cursor's
// invalid-records queue.
func (q *Query) FilterIncomplete(on bool) {
	q.filterIncomplete = on
}

// PresenceOnly disables zero-catch inference: only rows where a species was
// actually caught are wanted. This is also what makes the species-identity
// indices eligible for haul selection.
func (q *Query) PresenceOnly(on bool) {
	q.presenceOnly = on
}

// SuppressLargeWarning silences the advisory warning emitted when a filter
// selects an unusually large haul set.
func (q *Query) SuppressLargeWarning(on bool) {
	q.suppressLargeWarning = on
}

// SetWarnThreshold overrides the selected-set size that triggers the
// advisory warning.
func (q *Query) SetWarnThreshold(n int) {
	q.warnThreshold = n
}

// SetWarnFunc injects the warning sink.
func (q *Query) SetWarnFunc(f func(string)) {
	q.warn = f
}

// SetConcurrency overrides the haul-fetch concurrency cap.
func (q *Query) SetConcurrency(n int) {
	q.concurrency = n
}

// Filter constrains one field by an optional equality value and optional
// range bounds (nil bounds are open). units applies to unit-carrying
// fields and defaults to the field's natural unit; values are converted to
// storage units here. Combining eq with a bound, an unknown field, or an
// unknown unit is a construction error.
func (q *Query) Filter(field string, eq, lo, hi interface{}, units string) error {
	info, ok := groundfish.Fields[field]
	if !ok {
		return fmt.Errorf("query: unknown filter field %q", field)
	}
	if units != "" && info.Dimension == "" {
		return fmt.Errorf("query: field %s does not carry units", field)
	}
	var err error
	if info.Dimension != "" {
		if units == "" {
			units = info.DefaultUnit
		}
		if eq, err = convertBound(info, eq, units); err != nil {
			return err
		}
		if lo, err = convertBound(info, lo, units); err != nil {
			return err
		}
		if hi, err = convertBound(info, hi, units); err != nil {
			return err
		}
	}
	f, err := groundfish.NewFieldFilter(info, eq, lo, hi)
	if err != nil {
		return err
	}
	q.filters[info.Name] = f
	return nil
}

// convertBound converts one filter value from user units into the field's
// storage unit.
func convertBound(info groundfish.FieldInfo, v interface{}, units string) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	x, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, fmt.Errorf("query: filter on %s: %v", info.Name, err)
	}
	converted, err := groundfish.ConvertUnits(info.Dimension, x, units, info.StorageUnit)
	if err != nil {
		return nil, fmt.Errorf("query: filter on %s: %v", info.Name, err)
	}
	return converted, nil
}

// FilterYear constrains the survey year.
func (q *Query) FilterYear(eq, min, max *int) error {
	return q.Filter("year", intVal(eq), intVal(min), intVal(max), "")
}

// FilterSrvy constrains the short survey code (e.g. "GOA", "BSS").
func (q *Query) FilterSrvy(eq, min, max *string) error {
	return q.Filter("srvy", strVal(eq), strVal(min), strVal(max), "")
}

// FilterSurvey constrains the long survey name.
func (q *Query) FilterSurvey(eq, min, max *string) error {
	return q.Filter("survey", strVal(eq), strVal(min), strVal(max), "")
}

// FilterStratum constrains the survey stratum.
func (q *Query) FilterStratum(eq, min, max *int) error {
	return q.Filter("stratum", intVal(eq), intVal(min), intVal(max), "")
}

// FilterStation constrains the station code.
func (q *Query) FilterStation(eq, min, max *string) error {
	return q.Filter("station", strVal(eq), strVal(min), strVal(max), "")
}

// FilterVesselName constrains the vessel name.
func (q *Query) FilterVesselName(eq, min, max *string) error {
	return q.Filter("vessel_name", strVal(eq), strVal(min), strVal(max), "")
}

// FilterVesselID constrains the vessel id.
func (q *Query) FilterVesselID(eq, min, max *int) error {
	return q.Filter("vessel_id", intVal(eq), intVal(min), intVal(max), "")
}

// FilterDateTime constrains the tow timestamp; comparison is day-granular.
func (q *Query) FilterDateTime(eq, min, max *string) error {
	return q.Filter("date_time", strVal(eq), strVal(min), strVal(max), "")
}

// FilterLatitude constrains the tow latitude in decimal degrees, matching
// when either the start or end position falls in range.
func (q *Query) FilterLatitude(eq, min, max *float64) error {
	return q.Filter("latitude_dd", floatVal(eq), floatVal(min), floatVal(max), "dd")
}

// FilterLongitude constrains the tow longitude in decimal degrees.
func (q *Query) FilterLongitude(eq, min, max *float64) error {
	return q.Filter("longitude_dd", floatVal(eq), floatVal(min), floatVal(max), "dd")
}

// FilterSpeciesCode constrains the species code.
func (q *Query) FilterSpeciesCode(eq, min, max *int) error {
	return q.Filter("species_code", intVal(eq), intVal(min), intVal(max), "")
}

// FilterCommonName constrains the species common name.
func (q *Query) FilterCommonName(eq, min, max *string) error {
	return q.Filter("common_name", strVal(eq), strVal(min), strVal(max), "")
}

// FilterScientificName constrains the species scientific name.
func (q *Query) FilterScientificName(eq, min, max *string) error {
	return q.Filter("scientific_name", strVal(eq), strVal(min), strVal(max), "")
}

// FilterTaxonConfidence constrains the taxon-confidence grade.
func (q *Query) FilterTaxonConfidence(eq, min, max *string) error {
	return q.Filter("taxon_confidence", strVal(eq), strVal(min), strVal(max), "")
}

// FilterCPUEWeight constrains weight-per-area catch effort; units is one of
// "kg/ha", "kg/km2", "kg1000/km2".
func (q *Query) FilterCPUEWeight(eq, min, max *float64, units string) error {
	return q.Filter("cpue_kgkm2", floatVal(eq), floatVal(min), floatVal(max), units)
}

// FilterCPUECount constrains count-per-area catch effort; units is one of
// "no/ha", "no/km2", "no1000/km2".
func (q *Query) FilterCPUECount(eq, min, max *float64, units string) error {
	return q.Filter("cpue_nokm2", floatVal(eq), floatVal(min), floatVal(max), units)
}

// FilterWeight constrains the haul weight; units is "g" or "kg".
func (q *Query) FilterWeight(eq, min, max *float64, units string) error {
	return q.Filter("weight_kg", floatVal(eq), floatVal(min), floatVal(max), units)
}

// FilterCount constrains the specimen count.
func (q *Query) FilterCount(eq, min, max *int) error {
	return q.Filter("count", intVal(eq), intVal(min), intVal(max), "")
}

// FilterBottomTemperature constrains the bottom temperature; units is "c"
// or "f".
func (q *Query) FilterBottomTemperature(eq, min, max *float64, units string) error {
	return q.Filter("bottom_temperature_c", floatVal(eq), floatVal(min), floatVal(max), units)
}

// FilterSurfaceTemperature constrains the surface temperature; units is
// "c" or "f".
func (q *Query) FilterSurfaceTemperature(eq, min, max *float64, units string) error {
	return q.Filter("surface_temperature_c", floatVal(eq), floatVal(min), floatVal(max), units)
}

// FilterDepth constrains the bottom depth; units is "m" or "km".
func (q *Query) FilterDepth(eq, min, max *float64, units string) error {
	return q.Filter("depth_m", floatVal(eq), floatVal(min), floatVal(max), units)
}

// FilterDistanceFished constrains the distance fished; units is "m" or
// "km".
func (q *Query) FilterDistanceFished(eq, min, max *float64, units string) error {
	return q.Filter("distance_fished_km", floatVal(eq), floatVal(min), floatVal(max), units)
}

// FilterNetWidth constrains the net width; units is "m" or "km".
func (q *Query) FilterNetWidth(eq, min, max *float64, units string) error {
	return q.Filter("net_width_m", floatVal(eq), floatVal(min), floatVal(max), units)
}

// FilterNetHeight constrains the net height; units is "m" or "km".
func (q *Query) FilterNetHeight(eq, min, max *float64, units string) error {
	return q.Filter("net_height_m", floatVal(eq), floatVal(min), floatVal(max), units)
}

// FilterAreaSwept constrains the area swept; units is "ha", "m2" or "km2".
func (q *Query) FilterAreaSwept(eq, min, max *float64, units string) error {
	return q.Filter("area_swept_km2", floatVal(eq), floatVal(min), floatVal(max), units)
}

// FilterDuration constrains the tow duration; units is "day", "hr" or
// "min".
func (q *Query) FilterDuration(eq, min, max *float64, units string) error {
	return q.Filter("duration_hr", floatVal(eq), floatVal(min), floatVal(max), units)
}

// Run prepares a cursor for the accumulated filters. No object-storage
// traffic happens until the cursor's first Next call.
func (q *Query) Run(ctx context.Context) (*Cursor, error) {
	if q.fetcher == nil {
		return nil, fmt.Errorf("query: no snapshot bucket or requestor configured")
	}
	filters := make([]groundfish.FieldFilter, 0, len(q.filters))
	for _, f := range q.filters {
		filters = append(filters, f)
	}
	sel := &index.Selector{
		Fetcher:              q.indexFetcher,
		PresenceOnly:         q.presenceOnly,
		WarnThreshold:        q.warnThreshold,
		SuppressLargeWarning: q.suppressLargeWarning,
		Warn:                 q.warn,
	}
	return &Cursor{
		fetcher:          q.fetcher,
		indexFetcher:     q.indexFetcher,
		selector:         sel,
		filters:          filters,
		local:            groundfish.NewLocalFilter(filters),
		limit:            q.limit,
		filterIncomplete: q.filterIncomplete,
		presenceOnly:     q.presenceOnly,
		concurrency:      q.concurrency,
		ctx:              ctx,
	}, nil
}

// Int returns a pointer to v, for use as a filter argument.
func Int(v int) *int { return &v }

// Float returns a pointer to v, for use as a filter argument.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v, for use as a filter argument.
func String(v string) *string { return &v }

func intVal(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func strVal(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func floatVal(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
