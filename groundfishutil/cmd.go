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

// Package groundfishutil wires the groundfish library into a command-line
// tool: flag and configuration handling plus the snapshot-build and query
// subcommands.
package groundfishutil

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/oceandata/groundfish"
	"github.com/oceandata/groundfish/build"
	"github.com/oceandata/groundfish/storage"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to groundfish.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "bucket",
			usage: `
              bucket is the base URL of the snapshot bucket, e.g.
              file:///var/groundfish, s3://groundfish-snapshots or
              gs://groundfish-snapshots.`,
			shorthand:  "b",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "upstream",
			usage: `
              upstream is the base URL of the survey REST API the build
              pipeline ingests from.`,
			defaultVal: "https://apps-st.fisheries.noaa.gov/ods/foss/",
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags(), buildCmd.Flags()},
		},
		{
			name: "years",
			usage: `
              years lists the survey years to ingest haul metadata for.`,
			defaultVal: []int{},
			flagsets:   []*pflag.FlagSet{ingestCmd.Flags(), buildCmd.Flags()},
		},
		{
			name: "workers",
			usage: `
              workers caps the parallel build units. The default 0 uses
              one worker per CPU.`,
			defaultVal: 0,
			flagsets: []*pflag.FlagSet{joinCmd.Flags(), indexCmd.Flags(),
				verifyCmd.Flags(), buildCmd.Flags()},
		},
		{
			name: "hauls_per_shard",
			usage: `
              hauls_per_shard sets how many joined flat files one index
              worker scans into a single shard.`,
			defaultVal: build.DefaultHaulsPerShard,
			flagsets:   []*pflag.FlagSet{indexCmd.Flags(), buildCmd.Flags()},
		},
		{
			name: "filter",
			usage: `
              filter constrains one field, and repeats. 'year=2019' filters
              by equality, 'depth_m=50..200' by closed range ('..200' and
              '50..' leave a bound open), and 'weight_kg:g=10..500' reads
              the values in the named unit.`,
			shorthand:  "f",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{queryCmd.Flags()},
		},
		{
			name: "limit",
			usage: `
              limit caps the number of records returned; 0 is unlimited.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{queryCmd.Flags()},
		},
		{
			name: "filter_incomplete",
			usage: `
              filter_incomplete drops records whose complete flag is false
              or whose date_time is malformed.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{queryCmd.Flags()},
		},
		{
			name: "presence_only",
			usage: `
              presence_only disables zero-catch inference, returning only
              rows where a species was actually caught. Species-identity
              filters can only use their indices in this mode.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{queryCmd.Flags()},
		},
		{
			name: "suppress_large_warning",
			usage: `
              suppress_large_warning silences the advisory warning emitted
              when a filter selects an unusually large haul set.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{queryCmd.Flags()},
		},
		{
			name: "format",
			usage: `
              format selects the query output encoding: csv or json
              (newline-delimited objects).`,
			shorthand:  "o",
			defaultVal: "csv",
			flagsets:   []*pflag.FlagSet{queryCmd.Flags()},
		},
		{
			name: "concurrency",
			usage: `
              concurrency caps the parallel haul-file fetches of a query.
              The default 0 uses the built-in cap.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{queryCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GROUNDFISH")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case []int:
				if option.shorthand == "" {
					set.IntSlice(option.name, option.defaultVal.([]int), option.usage)
				} else {
					set.IntSliceP(option.name, option.shorthand, option.defaultVal.([]int), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(ingestCmd)
	Root.AddCommand(joinCmd)
	Root.AddCommand(indexCmd)
	Root.AddCommand(verifyCmd)
	Root.AddCommand(buildCmd)
	Root.AddCommand(queryCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("groundfish: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// openStore opens the configured snapshot bucket.
func openStore(cmd *cobra.Command) (*storage.Store, error) {
	baseURL := Cfg.GetString("bucket")
	if baseURL == "" {
		return nil, fmt.Errorf("groundfish: no snapshot bucket configured; use --bucket")
	}
	bucket, err := storage.OpenBucket(cmd.Context(), baseURL)
	if err != nil {
		return nil, err
	}
	return storage.NewStore(bucket), nil
}

// logStats prints the bucket traffic a build stage generated.
func logStats(store *storage.Store) {
	fetches, retries := store.Stats()
	log.Printf("groundfish: %d bucket fetches, %d retried", fetches, retries)
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "groundfish",
	Short: "Filtered access to bottom-trawl survey snapshots.",
	Long: `Groundfish builds and queries immutable snapshots of bottom-trawl
groundfish survey data. A snapshot joins the upstream haul, catch and
species tables into per-haul flat files with inferred zero-catch records,
plus per-field inverted indices; queries intersect those indices to fetch
only the hauls a filter can match.

Configuration can be changed by using a configuration file (and providing
the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format
'GROUNDFISH_var' where 'var' is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of groundfish.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("groundfish v%s\n", groundfish.Version)
	},
	DisableAutoGenTag: true,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch the upstream survey tables into raw shard files",
	Long: `ingest pages the upstream haul, catch and species REST endpoints
into sharded raw Avro files under the snapshot bucket. Re-running an
ingest is idempotent per shard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer logStats(store)
		in := &build.Ingester{
			Store:    store,
			Upstream: build.NewUpstream(Cfg.GetString("upstream")),
		}
		if err := in.IngestSpecies(cmd.Context()); err != nil {
			return err
		}
		if err := in.IngestHauls(cmd.Context(), Cfg.GetIntSlice("years")); err != nil {
			return err
		}
		return in.IngestCatches(cmd.Context())
	},
	DisableAutoGenTag: true,
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join the raw shards into per-haul flat files",
	Long: `join materializes joined/{haul_key}.avro for every ingested haul:
real catch rows joined with haul context and the species master, plus one
inferred zero-catch record per master species absent from the haul.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer logStats(store)
		j := &build.Joiner{Store: store, Workers: Cfg.GetInt("workers")}
		emitted, skipped, err := j.Join(cmd.Context())
		if err != nil {
			return err
		}
		log.Printf("groundfish: joined %d hauls (%d skipped for missing inputs)", emitted, skipped)
		return nil
	},
	DisableAutoGenTag: true,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the per-field inverted indices from joined/",
	Long: `index scans the joined flat files into sharded per-field inverted
indices, merges the shards, and writes the global key list. It can re-index
an existing joined/ tree without re-joining.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer logStats(store)
		ix := &build.Indexer{
			Store:         store,
			Workers:       Cfg.GetInt("workers"),
			HaulsPerShard: Cfg.GetInt("hauls_per_shard"),
		}
		return ix.Index(cmd.Context())
	},
	DisableAutoGenTag: true,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Read back and cross-check a built snapshot",
	Long: `verify decodes every flat file and index of the snapshot and
checks that each record carries its schema-required fields and that every
indexed haul has a flat file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer logStats(store)
		v := &build.Verifier{Store: store, Workers: Cfg.GetInt("workers")}
		return v.Verify(cmd.Context())
	},
	DisableAutoGenTag: true,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the full snapshot build: ingest, join, index, verify",
	Long: `build runs the whole pipeline in order, stopping at the first
failure. The produced snapshot is immutable; queries never observe a
partially built one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer logStats(store)
		workers := Cfg.GetInt("workers")
		p := &build.Pipeline{
			Ingester: &build.Ingester{
				Store:    store,
				Upstream: build.NewUpstream(Cfg.GetString("upstream")),
			},
			Joiner: &build.Joiner{Store: store, Workers: workers},
			Indexer: &build.Indexer{
				Store:         store,
				Workers:       workers,
				HaulsPerShard: Cfg.GetInt("hauls_per_shard"),
			},
			Verifier: &build.Verifier{Store: store, Workers: workers},
			Years:    Cfg.GetIntSlice("years"),
		}
		return p.Run(cmd.Context())
	},
	DisableAutoGenTag: true,
}
