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

package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/spf13/cast"

	"github.com/oceandata/groundfish/storage"
)

// MaxPageRows is the largest page the upstream survey API serves.
const MaxPageRows = 5000

// Default upstream table paths, relative to the API base URL.
const (
	haulEndpoint    = "afsc_groundfish_survey_haul/"
	catchEndpoint   = "afsc_groundfish_survey_catch/"
	speciesEndpoint = "afsc_groundfish_survey_species/"
)

// Upstream pages through the survey REST API during ingest. Pages arrive as
// {items, hasMore, links} envelopes and are walked by offset until a page
// comes back empty.
type Upstream struct {
	// BaseURL is the API root, e.g.
	// "https://apps-st.fisheries.noaa.gov/ods/foss/".
	BaseURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// PageRows is the page size requested, capped at MaxPageRows.
	PageRows int

	// RetryDelay is the fixed back-off before the single retry of a failed
	// page request.
	RetryDelay time.Duration
}

// NewUpstream creates a client for the survey API at baseURL.
func NewUpstream(baseURL string) *Upstream {
	return &Upstream{
		BaseURL:    baseURL,
		HTTPClient: http.DefaultClient,
		PageRows:   MaxPageRows,
		RetryDelay: storage.DefaultRetryDelay,
	}
}

// page is the upstream response envelope.
type page struct {
	Items   []map[string]interface{} `json:"items"`
	HasMore bool                     `json:"hasMore"`
	Links   []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// fetchPage issues one page request, retrying once after the fixed back-off.
func (u *Upstream) fetchPage(ctx context.Context, endpoint string, query url.Values, offset int) (*page, error) {
	rows := u.PageRows
	if rows <= 0 || rows > MaxPageRows {
		rows = MaxPageRows
	}
	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	q.Set("offset", fmt.Sprint(offset))
	q.Set("limit", fmt.Sprint(rows))
	addr := u.BaseURL + endpoint + "?" + q.Encode()

	client := u.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	var p page
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("build: %s returned status %s", addr, resp.Status)
		}
		p = page{}
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return fmt.Errorf("build: decoding page from %s: %v", addr, err)
		}
		return nil
	}
	delay := u.RetryDelay
	if delay <= 0 {
		delay = storage.DefaultRetryDelay
	}
	err := backoff.RetryNotify(op,
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), 1),
		func(err error, d time.Duration) {
			log.Printf("build: fetching %s: %v: retrying in %v", addr, err, d)
		})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// walk pages through one endpoint, passing each row to fn, until the API
// reports no more pages or a page comes back empty.
func (u *Upstream) walk(ctx context.Context, endpoint string, query url.Values, fn func(row map[string]interface{}) error) error {
	for offset := 0; ; {
		p, err := u.fetchPage(ctx, endpoint, query, offset)
		if err != nil {
			return err
		}
		if len(p.Items) == 0 {
			return nil
		}
		for _, row := range p.Items {
			if err := fn(row); err != nil {
				return err
			}
		}
		if !p.HasMore {
			return nil
		}
		offset += len(p.Items)
	}
}

// Hauls streams the haul-metadata rows for one survey year.
func (u *Upstream) Hauls(ctx context.Context, year int, fn func(*storage.Haul) error) error {
	query := url.Values{"q": []string{fmt.Sprintf(`{"year":%d}`, year)}}
	return u.walk(ctx, haulEndpoint, query, func(row map[string]interface{}) error {
		h, err := parseHaulRow(row)
		if err != nil {
			return err
		}
		return fn(h)
	})
}

// Catches streams all catch rows.
func (u *Upstream) Catches(ctx context.Context, fn func(*storage.Catch) error) error {
	return u.walk(ctx, catchEndpoint, nil, func(row map[string]interface{}) error {
		c, err := parseCatchRow(row)
		if err != nil {
			return err
		}
		return fn(c)
	})
}

// Species streams the curated species master list.
func (u *Upstream) Species(ctx context.Context, fn func(*storage.Species) error) error {
	return u.walk(ctx, speciesEndpoint, nil, func(row map[string]interface{}) error {
		s, err := parseSpeciesRow(row)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

func parseHaulRow(row map[string]interface{}) (*storage.Haul, error) {
	year, err := cast.ToIntE(row["year"])
	if err != nil {
		return nil, fmt.Errorf("build: haul row missing year: %v", err)
	}
	survey, err := cast.ToStringE(row["survey"])
	if err != nil || survey == "" {
		return nil, fmt.Errorf("build: haul row missing survey")
	}
	haul, err := cast.ToInt64E(row["haul"])
	if err != nil {
		return nil, fmt.Errorf("build: haul row missing haul: %v", err)
	}
	return &storage.Haul{
		Year:                year,
		Srvy:                optString(row["srvy"]),
		Survey:              survey,
		SurveyName:          optString(row["survey_name"]),
		Cruise:              optLong(row["cruise"]),
		Cruisejoin:          optLong(row["cruisejoin"]),
		Hauljoin:            optLong(row["hauljoin"]),
		Haul:                haul,
		Stratum:             optLong(row["stratum"]),
		Station:             optString(row["station"]),
		VesselName:          optString(row["vessel_name"]),
		VesselID:            optLong(row["vessel_id"]),
		DateTime:            optString(row["date_time"]),
		LatitudeDDStart:     optDouble(row["latitude_dd_start"]),
		LongitudeDDStart:    optDouble(row["longitude_dd_start"]),
		LatitudeDDEnd:       optDouble(row["latitude_dd_end"]),
		LongitudeDDEnd:      optDouble(row["longitude_dd_end"]),
		BottomTemperatureC:  optDouble(row["bottom_temperature_c"]),
		SurfaceTemperatureC: optDouble(row["surface_temperature_c"]),
		DepthM:              optDouble(row["depth_m"]),
		DistanceFishedKm:    optDouble(row["distance_fished_km"]),
		NetWidthM:           optDouble(row["net_width_m"]),
		NetHeightM:          optDouble(row["net_height_m"]),
		AreaSweptKm2:        optDouble(row["area_swept_km2"]),
		DurationHr:          optDouble(row["duration_hr"]),
		Performance:         optDouble(row["performance"]),
	}, nil
}

func parseCatchRow(row map[string]interface{}) (*storage.Catch, error) {
	hauljoin, err := cast.ToInt64E(row["hauljoin"])
	if err != nil {
		return nil, fmt.Errorf("build: catch row missing hauljoin: %v", err)
	}
	code, err := cast.ToInt64E(row["species_code"])
	if err != nil {
		return nil, fmt.Errorf("build: catch row missing species_code: %v", err)
	}
	return &storage.Catch{
		Hauljoin:        hauljoin,
		SpeciesCode:     code,
		CPUEKgKm2:       optDouble(row["cpue_kgkm2"]),
		CPUENoKm2:       optDouble(row["cpue_nokm2"]),
		Count:           optLong(row["count"]),
		WeightKg:        optDouble(row["weight_kg"]),
		TaxonConfidence: optString(row["taxon_confidence"]),
	}, nil
}

func parseSpeciesRow(row map[string]interface{}) (*storage.Species, error) {
	code, err := cast.ToInt64E(row["species_code"])
	if err != nil {
		return nil, fmt.Errorf("build: species row missing species_code: %v", err)
	}
	return &storage.Species{
		SpeciesCode:    code,
		ScientificName: optString(row["scientific_name"]),
		CommonName:     optString(row["common_name"]),
		IDRank:         optString(row["id_rank"]),
		Worms:          optLong(row["worms"]),
		Itis:           optLong(row["itis"]),
	}, nil
}

func optString(v interface{}) *string {
	if v == nil {
		return nil
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return nil
	}
	return &s
}

func optLong(v interface{}) *int64 {
	if v == nil {
		return nil
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return nil
	}
	return &i
}

func optDouble(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil
	}
	return &f
}
