/*
Copyright © 2021 the adios2nc authors.
This file is part of adios2nc.

adios2nc is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

adios2nc is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with adios2nc.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package adios2ncutil is the command-line and configuration layer of
// adios2nc.
package adios2ncutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	adios2nc "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4"
	// Register the source and destination backends.
	_ "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/adios"
	_ "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/classic"
	_ "github.com/MichaelLaufer/WRF-ADIOS2-to-NetCDF4/nc4"
)

// Cfg holds configuration information.
type Cfg struct {
	*viper.Viper

	// Root is the main command.
	Root *cobra.Command

	versionCmd, inspectCmd *cobra.Command
}

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig creates the commands and binds their flags to a new
// configuration.
func InitializeConfig() *Cfg {
	cfg := &Cfg{Viper: viper.New()}

	cfg.Root = &cobra.Command{
		Use:   "adios2nc",
		Short: "Convert WRF ADIOS2 output to NetCDF.",
		Long: `adios2nc converts a WRF history dataset written with the ADIOS2 BP
engine into a NetCDF-4 (or NetCDF classic) file that standard NetCDF tools
can read. Run it with --input and --output to convert a dataset, or use the
subcommands specified below.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'ADIOS2NC_var' where 'var' is
the name of the variable to be set, with '.' replaced by '_'.

Several copies of adios2nc started by a parallel launcher (mpirun, srun) can
share one conversion when --coord.nats_url is set.`,
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig(cfg) },
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cfg.versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  "version prints the version number of this version of adios2nc.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("adios2nc v%s\n", adios2nc.Version)
		},
		DisableAutoGenTag: true,
	}

	cfg.inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Print the NetCDF layout of a dataset.",
		Long: `inspect converts the input dataset in memory without writing any
output, and prints the resulting dimensions, variables and attributes
along with summary statistics of each numeric variable.`,
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunInspect(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	cfg.Root.AddCommand(cfg.versionCmd)
	cfg.Root.AddCommand(cfg.inspectCmd)

	options := []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "input",
			usage: `
              input specifies the ADIOS2 BP dataset (a directory) to convert.
              It can be a local path or a blob storage address such as
              gs://bucket/wrfout_d01.bp, s3://bucket/wrfout_d01.bp or
              file:///data/wrfout_d01.bp.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "output",
			usage: `
              output specifies the NetCDF file to create. It can be a local path
              or a blob storage address. Blob outputs are written to a
              temporary file and uploaded once the conversion succeeds.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "format",
			usage: `
              format specifies the output format: "netcdf4" (HDF5-based, with
              compression) or "classic" (NetCDF 64-bit offset, no compression).`,
			defaultVal: adios2nc.DefaultFormat,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "source",
			usage: `
              source specifies the reader used for the input dataset.`,
			defaultVal: adios2nc.DefaultSource,
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "compression.level",
			usage: `
              compression.level specifies the deflate level (0-9) of variables
              with at least one dimension. 0 disables compression.`,
			defaultVal: adios2nc.DefaultCompression.Level,
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "compression.shuffle",
			usage: `
              compression.shuffle specifies whether to apply the byte-shuffle
              filter before compressing.`,
			defaultVal: adios2nc.DefaultCompression.Shuffle,
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "dim_names",
			usage: `
              dim_names specifies how dimensions are named: "extent" names them
              after their length (dim<N>), "source" uses the WRF dimension names
              recorded in the input (west_east, south_north, ...).`,
			defaultVal: adios2nc.NameByExtent.String(),
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "min_partition",
			usage: `
              min_partition specifies the smallest leading extent at which a
              variable without a Time dimension is split between workers.`,
			defaultVal: adios2nc.DefaultMinPartition,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "on_failure",
			usage: `
              on_failure specifies what happens to an incomplete output file after
              a failed conversion: "keep" leaves it in place, "remove" deletes it.`,
			defaultVal: adios2nc.KeepPartial.String(),
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "coord.nats_url",
			usage: `
              coord.nats_url specifies the NATS server used to coordinate the
              workers of a distributed conversion. If it is empty the conversion
              runs in a single process.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "coord.run_id",
			usage: `
              coord.run_id identifies a distributed conversion. Every worker must
              use the same value. The default is the launcher job id, or a hash of
              the output path if there is none.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "coord.size",
			usage: `
              coord.size specifies the number of workers. 0 reads it from the
              environment set by the launcher.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "coord.timeout",
			usage: `
              coord.timeout specifies how long a worker waits for the others at
              each synchronization point.`,
			defaultVal: 10 * time.Minute,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "coord.ttl",
			usage: `
              coord.ttl specifies how long the coordination state of a run is
              kept by the NATS server.`,
			defaultVal: 24 * time.Hour,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "log_level",
			usage: `
              log_level specifies the logging level: debug, info, warn or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name: "log_file",
			usage: `
              log_file specifies a file to write log messages to in addition to
              standard output. The default is the output path with the extension
              .log when the output is a local file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "metrics.pushgateway",
			usage: `
              metrics.pushgateway specifies the address of a Prometheus Pushgateway
              to send conversion metrics to when the conversion ends.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "metrics.job",
			usage: `
              metrics.job specifies the Pushgateway job name.`,
			defaultVal: "adios2nc",
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name: "inspect.format",
			usage: `
              inspect.format specifies the output format of inspect: "text" or "yaml".`,
			defaultVal: "text",
			flagsets:   []*pflag.FlagSet{cfg.inspectCmd.Flags()},
		},
	}

	// Set the prefix for configuration environment variables.
	cfg.SetEnvPrefix("ADIOS2NC")
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case time.Duration:
				set.DurationP(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
	return cfg
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig(cfg *Cfg) error {
	if cfgpath := cfg.GetString("config"); cfgpath != "" {
		cfg.SetConfigFile(cfgpath)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("adios2nc: problem reading configuration file: %v", err)
		}
	}
	return nil
}
