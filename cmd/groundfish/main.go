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

// Command groundfish builds and queries bottom-trawl survey snapshots.
package main

import (
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oceandata/groundfish/groundfishutil"
)

var logger *logrus.Logger

func init() {
	logger = logrus.StandardLogger()
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableSorting:  true,
	})
	// Library code logs through the standard logger; route it here so all
	// output shares one format.
	log.SetFlags(0)
	log.SetOutput(logger.Writer())
}

func main() {
	if err := groundfishutil.Root.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
