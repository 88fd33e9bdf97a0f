package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/edgescan/internal/domain/feature"
	domrun "github.com/kailas-cloud/edgescan/internal/domain/run"
	"github.com/kailas-cloud/edgescan/internal/metrics"
	"github.com/kailas-cloud/edgescan/internal/usecase/job"
)

var (
	jobName       string
	exportFormats []string
	noStore       bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Sweep the search area, trace every feature and fit its geometry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runJob(cmd.Context(), domrun.ModeSearch)
	},
}

var rasterCmd = &cobra.Command{
	Use:   "raster",
	Short: "Map the raster area without stopping",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runJob(cmd.Context(), domrun.ModeRaster)
	},
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, rasterCmd} {
		c.Flags().StringVarP(&jobName, "name", "n", "", "run name (default job.name)")
		c.Flags().StringSliceVarP(&exportFormats, "export", "e", nil, "export formats: csv, parquet, heatmap (default export.formats)")
		c.Flags().BoolVar(&noStore, "no-store", false, "do not save the run to the database")
		rootCmd.AddCommand(c)
	}
}

func runJob(parent context.Context, mode domrun.Mode) error {
	ctx, stop := signalContext(parent)
	defer stop()

	c := cfg
	c.Job.Mode = string(mode)
	if jobName != "" {
		c.Job.Name = jobName
	}
	if exportFormats != nil {
		c.Export.Formats = exportFormats
	}
	metrics.RegisterScanMetrics()

	r, err := openRig(ctx, c)
	if err != nil {
		return fmt.Errorf("open stage: %w", err)
	}
	defer func() {
		if err := r.close(); err != nil {
			log.Warn("Failed to close stage", zap.Error(err))
		}
	}()

	var repo job.Repository
	if !noStore {
		store, err := openStore(ctx, c.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		repo = newRunRepo(store, c.Database)
	}

	svc := job.New(newSearch(r, c), repo, exportOptions(c.Export), log.Named("job"))
	out, err := svc.Run(ctx, jobSpec(c))
	if out.Run != nil {
		printOutcome(out)
	}
	return err
}

func printOutcome(out job.Outcome) {
	r := out.Run
	status := green(r.Status)
	if r.Status != domrun.StatusCompleted {
		status = red(r.Status)
	}
	fmt.Printf("%s %s (%s) %s\n", cyan("Run"), r.ID, r.Name, status)
	lo, hi := job.MagnitudeRange(r.Trace)
	fmt.Printf("  samples:   %d (magnitude %.4g .. %.4g)\n", r.Trace.Len(), lo, hi)
	fmt.Printf("  features:  %d\n", len(r.Features))
	for i, f := range r.Features {
		fmt.Printf("    %d. %s\n", i+1, describeFeature(f))
	}
	for _, path := range out.Files {
		fmt.Printf("  %s %s\n", yellow("wrote"), path)
	}
	if r.Error != "" {
		fmt.Printf("  %s %s\n", red("error:"), r.Error)
	}
}

func describeFeature(f feature.Feature) string {
	if f.Kind == feature.KindLine && f.Segment != nil {
		return fmt.Sprintf("line from (%.3f, %.3f) to (%.3f, %.3f), length %.3f",
			f.Segment.Start.X(), f.Segment.Start.Y(), f.Segment.End.X(), f.Segment.End.Y(), f.Segment.Length())
	}
	r := f.Rect
	return fmt.Sprintf("area at (%.3f, %.3f) size %.3f x %.3f rotation %.4f rad",
		r.OriginX, r.OriginY, r.Width, r.Height, r.Rotation)
}
