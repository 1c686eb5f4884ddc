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
	"fmt"
	"log"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/alitto/pond"

	"github.com/oceandata/groundfish"
	"github.com/oceandata/groundfish/storage"
)

// Joiner materializes joined/{haul_key}.avro for every ingested haul:
// each real catch row joined with its haul context and species master row,
// plus one inferred zero-catch row per master species absent from the haul's
// catches. Hauls are independent units of work; a unit that fails is retried
// once before failing the whole build.
type Joiner struct {
	Store *storage.Store

	// Workers caps the parallel join units; zero means GOMAXPROCS.
	Workers int
}

// LoadSpeciesMaster reads the whole curated species list from the raw
// species/ shards, sorted by species code.
func (j *Joiner) LoadSpeciesMaster(ctx context.Context) ([]*storage.Species, error) {
	keys, err := j.Store.List(ctx, "species")
	if err != nil {
		return nil, fmt.Errorf("build: listing species master: %v", err)
	}
	var master []*storage.Species
	for _, key := range keys {
		data, err := j.Store.Fetch(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("build: reading species shard %s: %v", key, err)
		}
		species, err := storage.DecodeSpecies(data)
		if err != nil {
			return nil, fmt.Errorf("build: decoding species shard %s: %v", key, err)
		}
		master = append(master, species...)
	}
	sort.Slice(master, func(i, k int) bool {
		return master[i].SpeciesCode < master[k].SpeciesCode
	})
	return master, nil
}

// Join fans out over every ingested haul and writes the joined flat files.
// It returns the number of hauls emitted and the number skipped for missing
// inputs.
func (j *Joiner) Join(ctx context.Context) (emitted, skipped int, err error) {
	master, err := j.LoadSpeciesMaster(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(master) == 0 {
		return 0, 0, fmt.Errorf("build: species master is empty; run ingest first")
	}
	haulKeys, err := j.Store.List(ctx, "haul")
	if err != nil {
		return 0, 0, fmt.Errorf("build: listing hauls: %v", err)
	}

	workers := j.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(-1)
	}
	pool := pond.New(workers, len(haulKeys))
	defer pool.StopAndWait()
	group, gctx := pool.GroupContext(ctx)

	var nEmitted, nSkipped uint64
	for _, key := range haulKeys {
		key := key
		group.Submit(func() error {
			return retryUnit(fmt.Sprintf("joining %s", key), func() error {
				ok, err := j.joinOne(gctx, key, master)
				if err != nil {
					return err
				}
				if ok {
					atomic.AddUint64(&nEmitted, 1)
				} else {
					atomic.AddUint64(&nSkipped, 1)
				}
				return nil
			})
		})
	}
	if err := group.Wait(); err != nil {
		return 0, 0, err
	}
	return int(nEmitted), int(nSkipped), nil
}

// retryUnit runs one independent unit of build work, retrying once on
// failure. The second failure fails the build so joined/ and index/ cannot
// drift apart.
func retryUnit(what string, f func() error) error {
	err := f()
	if err == nil {
		return nil
	}
	log.Printf("build: %s: %v: retrying", what, err)
	if err := f(); err != nil {
		return fmt.Errorf("build: %s: %v", what, err)
	}
	return nil
}

// joinOne joins a single haul, reporting false when the haul was skipped for
// missing inputs.
func (j *Joiner) joinOne(ctx context.Context, haulKey string, master []*storage.Species) (bool, error) {
	data, err := j.Store.Fetch(ctx, haulKey)
	if err != nil {
		if storage.IsNotFound(err) {
			log.Printf("build: haul file %s vanished; skipping", haulKey)
			return false, nil
		}
		return false, err
	}
	hauls, err := storage.DecodeHauls(data)
	if err != nil {
		return false, fmt.Errorf("decoding %s: %v", haulKey, err)
	}
	if len(hauls) == 0 {
		log.Printf("build: haul file %s is empty; skipping", haulKey)
		return false, nil
	}
	haul := hauls[0]

	if haul.Hauljoin == nil {
		log.Printf("build: haul %s has no hauljoin; skipping", haul.Key())
		return false, nil
	}
	catchData, err := j.Store.Fetch(ctx, CatchPath(*haul.Hauljoin))
	if err != nil {
		if storage.IsNotFound(err) {
			log.Printf("build: no catch file for haul %s; skipping", haul.Key())
			return false, nil
		}
		return false, err
	}
	catches, err := storage.DecodeCatches(catchData)
	if err != nil {
		return false, fmt.Errorf("decoding catches for %s: %v", haul.Key(), err)
	}

	byCode := make(map[int64]*storage.Species, len(master))
	for _, s := range master {
		byCode[s.SpeciesCode] = s
	}

	records := make([]*groundfish.Record, 0, len(master))
	caught := make(map[int64]bool, len(catches))
	for _, c := range catches {
		caught[c.SpeciesCode] = true
		records = append(records, joinCatch(haul, c, byCode[c.SpeciesCode]))
	}
	for _, s := range master {
		if !caught[s.SpeciesCode] {
			records = append(records, zeroCatch(haul, s))
		}
	}

	out, err := storage.EncodeObservations(records)
	if err != nil {
		return false, err
	}
	if err := j.Store.Put(ctx, haul.Key().Path(), out); err != nil {
		return false, err
	}
	return true, nil
}

// haulRecord clones the haul context into a fresh observation record.
func haulRecord(h *storage.Haul) *groundfish.Record {
	return &groundfish.Record{
		Year:                h.Year,
		Srvy:                h.Srvy,
		Survey:              h.Survey,
		SurveyName:          h.SurveyName,
		Cruise:              h.Cruise,
		Cruisejoin:          h.Cruisejoin,
		Hauljoin:            h.Hauljoin,
		Haul:                h.Haul,
		Stratum:             h.Stratum,
		Station:             h.Station,
		VesselName:          h.VesselName,
		VesselID:            h.VesselID,
		DateTime:            h.DateTime,
		LatitudeDDStart:     h.LatitudeDDStart,
		LongitudeDDStart:    h.LongitudeDDStart,
		LatitudeDDEnd:       h.LatitudeDDEnd,
		LongitudeDDEnd:      h.LongitudeDDEnd,
		BottomTemperatureC:  h.BottomTemperatureC,
		SurfaceTemperatureC: h.SurfaceTemperatureC,
		DepthM:              h.DepthM,
		DistanceFishedKm:    h.DistanceFishedKm,
		NetWidthM:           h.NetWidthM,
		NetHeightM:          h.NetHeightM,
		AreaSweptKm2:        h.AreaSweptKm2,
		DurationHr:          h.DurationHr,
		Performance:         h.Performance,
	}
}

// joinCatch joins one real catch row. A catch whose species code is absent
// from the master keeps its metrics but is marked incomplete.
func joinCatch(h *storage.Haul, c *storage.Catch, s *storage.Species) *groundfish.Record {
	r := haulRecord(h)
	code := c.SpeciesCode
	r.SpeciesCode = &code
	r.TaxonConfidence = c.TaxonConfidence
	r.CPUEKgKm2 = c.CPUEKgKm2
	r.CPUENoKm2 = c.CPUENoKm2
	r.Count = c.Count
	r.WeightKg = c.WeightKg
	if s == nil {
		r.Complete = false
		return r
	}
	r.ScientificName = s.ScientificName
	r.CommonName = s.CommonName
	r.IDRank = s.IDRank
	r.Worms = s.Worms
	r.Itis = s.Itis
	r.Complete = true
	return r
}

// zeroCatch infers the record for a master species absent from the haul's
// catches: the haul happened, the net was sampled, and none of this species
// came up.
func zeroCatch(h *storage.Haul, s *storage.Species) *groundfish.Record {
	r := haulRecord(h)
	code := s.SpeciesCode
	var count int64
	var zero float64
	r.SpeciesCode = &code
	r.ScientificName = s.ScientificName
	r.CommonName = s.CommonName
	r.IDRank = s.IDRank
	r.Worms = s.Worms
	r.Itis = s.Itis
	var zeroCPUEKg, zeroCPUENo float64
	r.CPUEKgKm2 = &zeroCPUEKg
	r.CPUENoKm2 = &zeroCPUENo
	r.Count = &count
	r.WeightKg = &zero
	r.Complete = true
	return r
}
