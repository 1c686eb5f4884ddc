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

// Package build turns the three upstream survey tables into an immutable
// snapshot: sharded raw files, joined per-haul flat files with inferred
// zero-catch rows, and the per-field inverted indices the query executor
// consumes.
package build

import (
	"context"
	"fmt"
	"log"

	"github.com/oceandata/groundfish"
	"github.com/oceandata/groundfish/storage"
)

// catchFlushRows bounds the number of catch rows buffered in memory before
// the pending groups are merged into their shard files.
const catchFlushRows = 50000

// HaulPath returns the raw haul-metadata object key for one haul.
func HaulPath(k groundfish.HaulKey) string {
	return "haul/" + k.String() + ".avro"
}

// CatchPath returns the raw catch shard key for one haul join.
func CatchPath(hauljoin int64) string {
	return fmt.Sprintf("catch/%d.avro", hauljoin)
}

// SpeciesPath returns the species-master shard key for one species code.
func SpeciesPath(code int64) string {
	return fmt.Sprintf("species/%d.avro", code)
}

// Ingester pages the upstream tables into sharded raw Avro files. Re-running
// an ingest is idempotent per shard: a shard that receives new rows is read,
// concatenated in memory and rewritten whole.
type Ingester struct {
	Store    *storage.Store
	Upstream *Upstream
}

// IngestHauls fetches the haul metadata for the given survey years, one raw
// file per haul key.
func (in *Ingester) IngestHauls(ctx context.Context, years []int) error {
	for _, year := range years {
		n := 0
		err := in.Upstream.Hauls(ctx, year, func(h *storage.Haul) error {
			data, err := storage.EncodeHauls([]*storage.Haul{h})
			if err != nil {
				return err
			}
			n++
			return in.Store.Put(ctx, HaulPath(h.Key()), data)
		})
		if err != nil {
			return fmt.Errorf("build: ingesting hauls for %d: %v", year, err)
		}
		log.Printf("build: ingested %d hauls for %d", n, year)
	}
	return nil
}

// IngestCatches fetches all catch rows, grouped into one shard file per haul
// join.
func (in *Ingester) IngestCatches(ctx context.Context) error {
	pending := make(map[int64][]*storage.Catch)
	buffered := 0
	flush := func() error {
		for hauljoin, group := range pending {
			if err := in.appendCatches(ctx, hauljoin, group); err != nil {
				return err
			}
		}
		pending = make(map[int64][]*storage.Catch)
		buffered = 0
		return nil
	}
	err := in.Upstream.Catches(ctx, func(c *storage.Catch) error {
		pending[c.Hauljoin] = append(pending[c.Hauljoin], c)
		buffered++
		if buffered >= catchFlushRows {
			return flush()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("build: ingesting catches: %v", err)
	}
	if err := flush(); err != nil {
		return fmt.Errorf("build: ingesting catches: %v", err)
	}
	return nil
}

// appendCatches merges a group of new rows into an existing catch shard.
func (in *Ingester) appendCatches(ctx context.Context, hauljoin int64, group []*storage.Catch) error {
	key := CatchPath(hauljoin)
	prior, err := in.Store.Fetch(ctx, key)
	switch {
	case storage.IsNotFound(err):
	case err != nil:
		return err
	default:
		existing, err := storage.DecodeCatches(prior)
		if err != nil {
			return fmt.Errorf("build: reading prior catch shard %s: %v", key, err)
		}
		group = append(existing, group...)
	}
	data, err := storage.EncodeCatches(group)
	if err != nil {
		return err
	}
	return in.Store.Put(ctx, key, data)
}

// IngestSpecies fetches the curated species master, one raw file per species
// code.
func (in *Ingester) IngestSpecies(ctx context.Context) error {
	n := 0
	err := in.Upstream.Species(ctx, func(s *storage.Species) error {
		data, err := storage.EncodeSpecies([]*storage.Species{s})
		if err != nil {
			return err
		}
		n++
		return in.Store.Put(ctx, SpeciesPath(s.SpeciesCode), data)
	})
	if err != nil {
		return fmt.Errorf("build: ingesting species master: %v", err)
	}
	log.Printf("build: ingested %d species", n)
	return nil
}
