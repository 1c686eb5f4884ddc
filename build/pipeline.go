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
)

// Pipeline runs the full snapshot build: ingest the three upstream tables,
// join per haul, index, verify. Each stage is also exposed on its own so an
// operator can, for example, re-index an existing joined/ tree without
// touching upstream.
type Pipeline struct {
	Ingester *Ingester
	Joiner   *Joiner
	Indexer  *Indexer
	Verifier *Verifier

	// Years selects the survey years ingested.
	Years []int
}

// Run executes all stages in order, stopping at the first failure.
func (p *Pipeline) Run(ctx context.Context) error {
	if len(p.Years) == 0 {
		return fmt.Errorf("build: no survey years configured")
	}
	if err := p.Ingester.IngestSpecies(ctx); err != nil {
		return err
	}
	if err := p.Ingester.IngestHauls(ctx, p.Years); err != nil {
		return err
	}
	if err := p.Ingester.IngestCatches(ctx); err != nil {
		return err
	}
	emitted, skipped, err := p.Joiner.Join(ctx)
	if err != nil {
		return err
	}
	log.Printf("build: joined %d hauls (%d skipped for missing inputs)", emitted, skipped)
	if err := p.Indexer.Index(ctx); err != nil {
		return err
	}
	return p.Verifier.Verify(ctx)
}
