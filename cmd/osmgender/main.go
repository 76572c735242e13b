// Package main provides the osmgender binary: the pipeline that attributes
// a gender to the streets of a city, and an MCP server over its results.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/NERVsystems/osmgender/pkg/pipeline"
	"github.com/NERVsystems/osmgender/pkg/version"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel    string
	dataDir     string
	city        string
	metricsFile string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "osmgender",
		Short: "Gender attribution of city streets from OpenStreetMap and Wikidata",
		Long: `osmgender builds GeoJSON collections of the streets of a city, each
street carrying the gender of the person it is named after.

The pipeline runs in three stages, each reading the output of the previous:
- overpass: fetch the named streets and associated relations of the city
- wikidata: download the entities referenced by name:etymology:wikidata
- geojson:  resolve geometry and attribution and write the collections

Settings are read from OSMGENDER_* environment variables; flags override them.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "Data directory holding cities/, process/ and output/ (default $OSMGENDER_DATA_DIR or ./data)")
	pf.StringVarP(&flags.city, "city", "c", "", "City directory name under cities/")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile when a stage ends")

	cmd.AddCommand(
		stageCmd(flags, pipeline.StageOverpass, "Fetch the streets of the city from Overpass"),
		stageCmd(flags, pipeline.StageWikidata, "Download the Wikidata entities the streets are named after"),
		stageCmd(flags, pipeline.StageGeoJSON, "Build the attributed GeoJSON collections"),
		allCmd(flags),
		serveCmd(flags),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
