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

// Package groundfish holds the shared data model for filtered access to
// precomputed bottom-trawl groundfish survey snapshots: the haul key and
// observation record schemas, the value-normalization rules shared by the
// snapshot builder and the query executor, the unit-conversion tables, and
// the per-field filter model.
//
// A snapshot is an immutable release of per-haul flat files under joined/
// plus per-field inverted indices under index/ in an object-storage bucket.
// The query side lives in package query, index scanning and haul selection
// in package index, object-storage access and Avro codecs in package
// storage, and snapshot construction in package build.
package groundfish

// Version gives the release number of this library.
const Version = "1.1.0"
