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

package groundfishutil

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oceandata/groundfish"
	"github.com/oceandata/groundfish/query"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Stream the observation records matching a filter",
	Long: `query runs a filtered query against the snapshot and streams the
matching observation records to standard output. Records from one haul
keep their file order; records across hauls interleave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL := Cfg.GetString("bucket")
		if baseURL == "" {
			return fmt.Errorf("groundfish: no snapshot bucket configured; use --bucket")
		}
		q, err := query.New(cmd.Context(), baseURL)
		if err != nil {
			return err
		}
		for _, spec := range Cfg.GetStringSlice("filter") {
			if err := applyFilterSpec(q, spec); err != nil {
				return err
			}
		}
		q.SetLimit(Cfg.GetInt("limit"))
		q.FilterIncomplete(Cfg.GetBool("filter_incomplete"))
		q.PresenceOnly(Cfg.GetBool("presence_only"))
		q.SuppressLargeWarning(Cfg.GetBool("suppress_large_warning"))
		q.SetConcurrency(Cfg.GetInt("concurrency"))

		cur, err := q.Run(cmd.Context())
		if err != nil {
			return err
		}
		defer cur.Close()

		w, err := newRecordWriter(cmd.OutOrStdout(), Cfg.GetString("format"))
		if err != nil {
			return err
		}
		n := 0
		for cur.Next() {
			if err := w.write(cur.RecordMap()); err != nil {
				return err
			}
			n++
		}
		if err := w.flush(); err != nil {
			return err
		}
		if err := cur.Err(); err != nil {
			return err
		}
		if invalid := cur.Invalid(); len(invalid) > 0 {
			log.Printf("groundfish: %d records dropped as incomplete or invalid", len(invalid))
		}
		log.Printf("groundfish: %d records", n)
		return nil
	},
	DisableAutoGenTag: true,
}

// applyFilterSpec parses one --filter argument of the form
// 'field=value', 'field=lo..hi', or 'field:unit=...' and applies it.
func applyFilterSpec(q *query.Query, spec string) error {
	name, rhs, ok := strings.Cut(spec, "=")
	if !ok {
		return fmt.Errorf("groundfish: filter %q is not of the form field=value", spec)
	}
	var units string
	if field, u, ok := strings.Cut(name, ":"); ok {
		name, units = field, u
	}
	var eq, lo, hi interface{}
	if low, high, ok := strings.Cut(rhs, ".."); ok {
		if low != "" {
			lo = low
		}
		if high != "" {
			hi = high
		}
		if lo == nil && hi == nil {
			return fmt.Errorf("groundfish: filter %q has no bounds", spec)
		}
	} else {
		eq = rhs
	}
	return q.Filter(name, eq, lo, hi, units)
}

// recordWriter encodes record dictionaries for the terminal.
type recordWriter struct {
	csv *csv.Writer
	enc *json.Encoder
}

func newRecordWriter(w io.Writer, format string) (*recordWriter, error) {
	switch format {
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(groundfish.RecordFields); err != nil {
			return nil, err
		}
		return &recordWriter{csv: cw}, nil
	case "json":
		return &recordWriter{enc: json.NewEncoder(w)}, nil
	}
	return nil, fmt.Errorf("groundfish: unknown output format %q", format)
}

func (w *recordWriter) write(rec map[string]interface{}) error {
	if w.enc != nil {
		return w.enc.Encode(rec)
	}
	row := make([]string, len(groundfish.RecordFields))
	for i, f := range groundfish.RecordFields {
		if v := rec[f]; v != nil {
			row[i] = fmt.Sprint(v)
		}
	}
	return w.csv.Write(row)
}

func (w *recordWriter) flush() error {
	if w.csv == nil {
		return nil
	}
	w.csv.Flush()
	return w.csv.Error()
}
