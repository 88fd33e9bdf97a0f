package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/edgescan/internal/domain/sweep"
)

var sweepRaster bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Print the boustrophedon waypoints of the search or raster area",
	Long: `Print the waypoints the stage visits, one "x y" pair per line. The area
and spacing come from the search section, or the raster section with --raster.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		p := sweep.Params{
			Separation: cfg.Search.SnakeSeparation,
			XInit:      cfg.Search.OriginX,
			YInit:      cfg.Search.OriginY,
			Width:      cfg.Search.Width,
			Height:     cfg.Search.Height,
			Rotation:   cfg.Search.Rotation,
			Epsilon:    cfg.Search.Epsilon,
		}
		if sweepRaster {
			r := cfg.Raster
			p = sweep.Params{
				Separation: r.Separation,
				XInit:      r.OriginX,
				YInit:      r.OriginY,
				Width:      r.Width,
				Height:     r.Height,
				Rotation:   r.Rotation,
				Epsilon:    r.Epsilon,
			}
		}
		waypoints, err := sweep.Generate(p)
		if err != nil {
			return err
		}
		for _, w := range waypoints {
			fmt.Printf("%.6f %.6f\n", w.X(), w.Y())
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepRaster, "raster", false, "use the raster area")
	rootCmd.AddCommand(sweepCmd)
}
