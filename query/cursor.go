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

package query

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oceandata/groundfish"
	"github.com/oceandata/groundfish/index"
	"github.com/oceandata/groundfish/storage"
)

// State describes where a cursor is in its lifecycle.
type State int

const (
	// StateSelecting means no I/O has happened yet; the first Next
	// materializes the haul set and launches the fetches.
	StateSelecting State = iota
	// StateStreaming means records are flowing.
	StateStreaming
	// StateDrained means the stream ended normally or the limit was
	// reached.
	StateDrained
	// StateTerminated means the cursor was closed or hit its terminal
	// error.
	StateTerminated
)

// Cursor is a single-consumer pull iterator over the observation records
// matching a query. It is consumed once and is not restartable. At most one
// terminal error is surfaced; after that Next keeps returning false and the
// invalid-records queue remains drainable.
type Cursor struct {
	fetcher      storage.Fetcher
	indexFetcher storage.Fetcher
	selector     *index.Selector
	filters      []groundfish.FieldFilter
	local        *groundfish.LocalFilter

	limit            int
	filterIncomplete bool
	presenceOnly     bool
	concurrency      int

	state   State
	stream  *stream
	cur     *groundfish.Record
	err     error
	yielded int

	invalidMu sync.Mutex
	invalid   []map[string]interface{}

	closeOnce sync.Once
	ctx       context.Context
}

// Next advances to the next matching record, reporting false at end of
// stream, when the limit is reached, or on a terminal error (see Err).
func (c *Cursor) Next() bool {
	switch c.state {
	case StateDrained, StateTerminated:
		return false
	case StateSelecting:
		if err := c.start(); err != nil {
			c.fail(err)
			return false
		}
		c.state = StateStreaming
	}
	if c.limit > 0 && c.yielded >= c.limit {
		c.state = StateDrained
		c.stream.close()
		return false
	}
	for {
		rec, ok := <-c.stream.out
		if !ok {
			if err := c.stream.err; err != nil && !errors.Is(err, context.Canceled) {
				c.fail(err)
			} else {
				c.state = StateDrained
			}
			return false
		}
		if c.presenceOnly && rec.ZeroCatch() {
			// Inferred rows are baked into the flat files; presence-only
			// callers want only the species actually caught.
			continue
		}
		if c.filterIncomplete && (!rec.Complete || !rec.ValidDateTime()) {
			c.pushInvalid(rec.ToMap())
			continue
		}
		c.cur = rec
		c.yielded++
		return true
	}
}

// start materializes the haul set and launches the parallel fetches.
func (c *Cursor) start() error {
	keys, err := c.selector.SelectHauls(c.ctx, c.filters)
	if err != nil {
		return fmt.Errorf("query: selecting hauls: %v", err)
	}
	onInvalid := func(raw map[string]interface{}) error {
		if !c.filterIncomplete {
			return &storage.InvalidRecordError{Raw: raw, Reason: "record does not conform to the observation schema"}
		}
		c.pushInvalid(raw)
		return nil
	}
	c.stream = newStream(c.ctx, c.fetcher, keys, c.local.Matches, onInvalid, c.concurrency)
	return nil
}

// Record returns the record the last successful Next call produced.
func (c *Cursor) Record() *groundfish.Record {
	return c.cur
}

// RecordMap lazily projects the current record to a dictionary.
func (c *Cursor) RecordMap() map[string]interface{} {
	if c.cur == nil {
		return nil
	}
	return c.cur.ToMap()
}

// Err returns the cursor's terminal error, if any.
func (c *Cursor) Err() error {
	return c.err
}

// State returns the cursor's lifecycle state.
func (c *Cursor) State() State {
	return c.state
}

// Close terminates the cursor. In-flight fetches and decoders stop at their
// next safe point and queued records are discarded. The invalid-records
// queue remains drainable after Close.
func (c *Cursor) Close() error {
	c.closeOnce.Do(func() {
		if c.stream != nil {
			c.stream.close()
		}
		if c.state != StateDrained {
			c.state = StateTerminated
		}
	})
	return nil
}

// Invalid drains the invalid-records side channel: records dropped by the
// completeness filter and records that failed schema decoding, in their raw
// dictionary form.
func (c *Cursor) Invalid() []map[string]interface{} {
	c.invalidMu.Lock()
	defer c.invalidMu.Unlock()
	out := c.invalid
	c.invalid = nil
	return out
}

func (c *Cursor) pushInvalid(raw map[string]interface{}) {
	c.invalidMu.Lock()
	c.invalid = append(c.invalid, raw)
	c.invalidMu.Unlock()
}

func (c *Cursor) fail(err error) {
	c.err = err
	c.state = StateTerminated
	if c.stream != nil {
		c.stream.close()
	}
}
