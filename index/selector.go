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

package index

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/samber/lo"

	"github.com/oceandata/groundfish"
	"github.com/oceandata/groundfish/storage"
)

// DefaultWarnThreshold is the selected-set size above which the selector
// emits its advisory large-result warning. The exact value is not
// contractually stable.
const DefaultWarnThreshold = 3000

// MainIndexPath is the object key of the global haul-key list.
const MainIndexPath = "index/main.avro"

// IndexPath returns the object key of a per-field index file.
func IndexPath(field string) string {
	return "index/" + field + ".avro"
}

// Selector computes the candidate haul set for a filter by intersecting
// per-field index lookups.
type Selector struct {
	Fetcher storage.Fetcher

	// PresenceOnly marks that the caller disabled zero-catch inference
	// and wants only rows where a species was actually caught. Only then
	// are the species-identity indices safe to consult: they exclude
	// inferred zero-catch rows, so with inference enabled they would
	// under-report.
	PresenceOnly bool

	// WarnThreshold overrides DefaultWarnThreshold when positive.
	WarnThreshold int

	// SuppressLargeWarning disables the advisory warning entirely.
	SuppressLargeWarning bool

	// Warn receives the advisory warning; nil falls back to log.Printf.
	Warn func(msg string)
}

// eligible reports whether a field's filter can be served from an index.
func (s *Selector) eligible(f groundfish.FieldFilter) bool {
	if f.Empty() || len(f.Info.Indexes) == 0 {
		return false
	}
	if f.Info.PresenceOnly && !s.PresenceOnly {
		return false
	}
	return true
}

// SelectHauls returns the sorted haul keys whose flat files could contain
// records matching the filter set. With no index-eligible field it falls
// back to the complete key list in index/main.avro; with an index-eligible
// field whose candidate set is empty it returns no keys without touching
// any haul file.
func (s *Selector) SelectHauls(ctx context.Context, filters []groundfish.FieldFilter) ([]groundfish.HaulKey, error) {
	eligible := lo.Filter(filters, func(f groundfish.FieldFilter, _ int) bool {
		return s.eligible(f)
	})

	var selected map[groundfish.HaulKey]struct{}
	for _, f := range eligible {
		candidates, err := s.fieldCandidates(ctx, f)
		if err != nil {
			return nil, err
		}
		if selected == nil {
			selected = candidates
		} else {
			for k := range selected {
				if _, ok := candidates[k]; !ok {
					delete(selected, k)
				}
			}
		}
		if len(selected) == 0 {
			return nil, nil
		}
	}

	if selected == nil {
		keys, err := s.allHauls(ctx)
		if err != nil {
			return nil, err
		}
		selected = make(map[groundfish.HaulKey]struct{}, len(keys))
		for _, k := range keys {
			selected[k] = struct{}{}
		}
	}

	keys := lo.Keys(selected)
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	if threshold := s.threshold(); !s.SuppressLargeWarning && len(keys) > threshold {
		s.warn(fmt.Sprintf("groundfish: query selects %d hauls (more than %d); consider narrowing the filter or streaming results", len(keys), threshold))
	}
	return keys, nil
}

// fieldCandidates unions, over the field's stored indices, the keys of
// entries whose normalized value satisfies the filter. The coordinate
// fields map to a start and an end index and a haul is a candidate when
// either matches.
func (s *Selector) fieldCandidates(ctx context.Context, f groundfish.FieldFilter) (map[groundfish.HaulKey]struct{}, error) {
	pred := NewPredicate(f)
	candidates := make(map[groundfish.HaulKey]struct{})
	for _, idx := range f.Info.Indexes {
		data, err := s.Fetcher.Fetch(ctx, IndexPath(idx))
		if err != nil {
			return nil, fmt.Errorf("index: fetching index for %s: %v", f.Info.Name, err)
		}
		err = storage.DecodeIndexEntries(data, func(e storage.IndexEntry) error {
			v := groundfish.Normalize(idx, e.Value)
			if v == nil || !pred(v) {
				return nil
			}
			for _, k := range e.Keys {
				candidates[k] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("index: scanning index %s: %v", idx, err)
		}
	}
	return candidates, nil
}

func (s *Selector) allHauls(ctx context.Context) ([]groundfish.HaulKey, error) {
	data, err := s.Fetcher.Fetch(ctx, MainIndexPath)
	if err != nil {
		return nil, fmt.Errorf("index: fetching main index: %v", err)
	}
	keys, err := storage.DecodeHaulKeys(data)
	if err != nil {
		return nil, fmt.Errorf("index: decoding main index: %v", err)
	}
	return keys, nil
}

func (s *Selector) threshold() int {
	if s.WarnThreshold > 0 {
		return s.WarnThreshold
	}
	return DefaultWarnThreshold
}

func (s *Selector) warn(msg string) {
	if s.Warn != nil {
		s.Warn(msg)
		return
	}
	log.Print(msg)
}
