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
	"strings"

	"github.com/alitto/pond"

	"github.com/oceandata/groundfish"
	"github.com/oceandata/groundfish/index"
	"github.com/oceandata/groundfish/storage"
)

// Verifier reads back every produced snapshot file and checks that each
// record carries its schema-required fields and that every haul key
// referenced by an index has a joined flat file. A mismatch aborts the
// build: a snapshot where joined/ and index/ disagree silently drops
// records at query time.
type Verifier struct {
	Store *storage.Store

	// Workers caps the parallel read-backs; zero means GOMAXPROCS.
	Workers int
}

// Verify checks the whole snapshot, returning the first inconsistency found.
func (v *Verifier) Verify(ctx context.Context) error {
	joined, err := v.Store.List(ctx, "joined")
	if err != nil {
		return fmt.Errorf("build: listing joined flat files: %v", err)
	}
	exists := make(map[groundfish.HaulKey]bool, len(joined))
	for _, obj := range joined {
		stem := strings.TrimSuffix(strings.TrimPrefix(obj, "joined/"), ".avro")
		k, err := groundfish.ParseHaulKey(stem)
		if err != nil {
			return fmt.Errorf("build: unexpected object %s under joined/: %v", obj, err)
		}
		exists[k] = true
	}

	if err := v.verifyJoined(ctx, joined); err != nil {
		return err
	}
	if err := v.verifyIndices(ctx, exists); err != nil {
		return err
	}
	log.Printf("build: verified %d flat files and their indices", len(joined))
	return nil
}

// verifyJoined decodes every flat file whole; the decoder rejects any record
// missing a schema-required field.
func (v *Verifier) verifyJoined(ctx context.Context, objects []string) error {
	workers := v.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(-1)
	}
	pool := pond.New(workers, len(objects))
	defer pool.StopAndWait()
	group, gctx := pool.GroupContext(ctx)

	for _, obj := range objects {
		obj := obj
		group.Submit(func() error {
			data, err := v.Store.Fetch(gctx, obj)
			if err != nil {
				return err
			}
			if _, err := storage.DecodeObservations(data); err != nil {
				return fmt.Errorf("build: verify %s: %v", obj, err)
			}
			return nil
		})
	}
	return group.Wait()
}

// verifyIndices decodes every index file and cross-checks its keys against
// the joined/ listing.
func (v *Verifier) verifyIndices(ctx context.Context, exists map[groundfish.HaulKey]bool) error {
	for _, field := range groundfish.IndexedStorageFields() {
		data, err := v.Store.Fetch(ctx, index.IndexPath(field))
		if err != nil {
			return fmt.Errorf("build: verify index %s: %v", field, err)
		}
		err = storage.DecodeIndexEntries(data, func(e storage.IndexEntry) error {
			for _, k := range e.Keys {
				if !exists[k] {
					return fmt.Errorf("index %s references haul %s with no joined flat file", field, k)
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("build: verify index %s: %v", field, err)
		}
	}

	data, err := v.Store.Fetch(ctx, index.MainIndexPath)
	if err != nil {
		return fmt.Errorf("build: verify main index: %v", err)
	}
	keys, err := storage.DecodeHaulKeys(data)
	if err != nil {
		return fmt.Errorf("build: verify main index: %v", err)
	}
	if len(keys) != len(exists) {
		return fmt.Errorf("build: main index lists %d hauls but joined/ holds %d", len(keys), len(exists))
	}
	for _, k := range keys {
		if !exists[k] {
			return fmt.Errorf("build: main index references haul %s with no joined flat file", k)
		}
	}
	return nil
}
