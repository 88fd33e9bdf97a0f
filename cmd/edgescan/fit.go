package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/edgescan/internal/domain/geometry"
	"github.com/kailas-cloud/edgescan/internal/domain/sample"
	"github.com/kailas-cloud/edgescan/internal/export"
	"github.com/kailas-cloud/edgescan/internal/usecase/fit"
	"github.com/kailas-cloud/edgescan/internal/usecase/job"
)

var (
	fitLiftoff   string
	fitLine      bool
	fitReference float64
)

var fitCmd = &cobra.Command{
	Use:   "fit <trace.parquet>",
	Short: "Fit a rectangle or crack segment to an exported trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		rows, err := export.ReadParquet(args[0])
		if err != nil {
			return err
		}
		tr := make(sample.Trace, 0, len(rows))
		for _, r := range rows {
			pos := geometry.C(r.X, r.Y)
			if r.Z != nil {
				pos = geometry.C(r.X, r.Y, *r.Z)
			}
			tr.Append(sample.Sample{Position: pos, Magnitude: r.Magnitude})
		}
		if fitLiftoff != "" {
			if tr, err = fit.CorrectLiftoff(tr, fit.LiftoffModel(fitLiftoff)); err != nil {
				return err
			}
		}

		fmt.Printf("%s %d samples from %s\n", cyan("Fit"), tr.Len(), args[0])
		if fitLine {
			ref := fitReference
			if ref == 0 {
				_, ref = job.MagnitudeRange(tr)
			}
			seg, err := fit.Segment(tr, ref)
			if err != nil {
				return err
			}
			fmt.Printf("  %s (%.4f, %.4f) -> (%.4f, %.4f) length %.4f\n", green("segment"),
				seg.Start.X(), seg.Start.Y(), seg.End.X(), seg.End.Y(), seg.Length())
			return nil
		}

		opts := fitOptions(cfg.Fit)
		rect, err := fit.Rectangle(tr, fit.Seed(tr, opts), opts)
		if err != nil {
			return err
		}
		fmt.Printf("  %s origin (%.4f, %.4f) size %.4f x %.4f rotation %.5f rad\n", green("rectangle"),
			rect.OriginX, rect.OriginY, rect.Width, rect.Height, rect.Rotation)
		return nil
	},
}

func init() {
	fitCmd.Flags().StringVar(&fitLiftoff, "liftoff", "", "correct probe drift first: linear or quadratic")
	fitCmd.Flags().BoolVar(&fitLine, "line", false, "fit a crack segment instead of a rectangle")
	fitCmd.Flags().Float64Var(&fitReference, "reference", 0, "off-crack magnitude for --line (default: trace maximum)")
	rootCmd.AddCommand(fitCmd)
}
