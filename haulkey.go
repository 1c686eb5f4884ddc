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

package groundfish

import (
	"fmt"
	"strconv"
	"strings"
)

// HaulKey uniquely identifies a single bottom-trawl tow. Its string form
// "{year}_{survey}_{haul}" is also the filename stem of the per-haul flat
// file under joined/ in the snapshot bucket.
type HaulKey struct {
	Year   int
	Survey string
	Haul   int64
}

// String returns the serialized form of the key.
func (k HaulKey) String() string {
	return fmt.Sprintf("%d_%s_%d", k.Year, k.Survey, k.Haul)
}

// Path returns the object-storage key of the joined flat file for this haul.
func (k HaulKey) Path() string {
	return "joined/" + k.String() + ".avro"
}

// Less reports whether k orders before o by (year, survey, haul).
func (k HaulKey) Less(o HaulKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	if k.Survey != o.Survey {
		return k.Survey < o.Survey
	}
	return k.Haul < o.Haul
}

// ParseHaulKey parses the serialized "{year}_{survey}_{haul}" form. Survey
// names may themselves contain underscores, so the year and haul are taken
// from the outermost segments.
func ParseHaulKey(s string) (HaulKey, error) {
	parts := strings.Split(s, "_")
	if len(parts) < 3 {
		return HaulKey{}, fmt.Errorf("groundfish: invalid haul key %q", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return HaulKey{}, fmt.Errorf("groundfish: invalid year in haul key %q: %v", s, err)
	}
	haul, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return HaulKey{}, fmt.Errorf("groundfish: invalid haul in haul key %q: %v", s, err)
	}
	return HaulKey{
		Year:   year,
		Survey: strings.Join(parts[1:len(parts)-1], "_"),
		Haul:   haul,
	}, nil
}
