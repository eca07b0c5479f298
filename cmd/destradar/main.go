package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/elonfeng/destradar/internal/config"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "destradar",
		Short:         "Rank vacation destinations by cost, weather, activities and travel time",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file")

	root.AddCommand(rankCmd())
	root.AddCommand(runsCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())
	root.AddCommand(coordsCmd())

	return root
}

const rankExample = `  destradar rank --origin JFK --start 2026-11-01 --end 2026-11-08 --candidates MIA,LAX
  destradar rank --w-cost 1 --w-weather 0 --w-activity 0 --w-travel 0 --json`

func rankCmd() *cobra.Command {
	var opts rankOptions

	cmd := &cobra.Command{
		Use:     "rank",
		Short:   "Rank candidate destinations for one trip",
		Example: rankExample,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			opts.overrideCost = flags.Changed("w-cost")
			opts.overrideWeather = flags.Changed("w-weather")
			opts.overrideActivity = flags.Changed("w-activity")
			opts.overrideTravel = flags.Changed("w-travel")
			return runRank(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.origin, "origin", "", "origin location code (default: search.origin)")
	f.StringVar(&opts.start, "start", "", "trip start date YYYY-MM-DD (default: today + search.trip_offset_days)")
	f.StringVar(&opts.end, "end", "", "trip end date YYYY-MM-DD (default: start + search.trip_length_days)")
	f.StringVar(&opts.candidates, "candidates", "", "comma-separated destination codes (default: search.candidates)")
	f.StringVar(&opts.currency, "currency", "", "currency code (default: search.currency)")
	f.Float64Var(&opts.weights.Cost, "w-cost", 0, "cost weight")
	f.Float64Var(&opts.weights.Weather, "w-weather", 0, "weather weight")
	f.Float64Var(&opts.weights.Activity, "w-activity", 0, "activity weight")
	f.Float64Var(&opts.weights.Travel, "w-travel", 0, "travel time weight")
	f.BoolVar(&opts.jsonOutput, "json", false, "output as JSON")
	f.StringVar(&opts.csvPath, "csv", "", "also write the ranked table as CSV to this path")
	f.BoolVar(&opts.save, "save", false, "persist the run to the database")
	return cmd
}

func runsCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored ranking runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd.Context(), limit, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		runID  int64
		out    string
		upload bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a stored run as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), runID, out, upload)
		},
	}

	cmd.Flags().Int64Var(&runID, "run", 0, "run id (default: latest run)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&upload, "upload", false, "upload the snapshot to the configured MinIO bucket")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: server.port)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with watch scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: server.port)")
	return cmd
}

func coordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "coords",
		Short: "List known location codes and their coordinates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoords()
		},
	}
}
