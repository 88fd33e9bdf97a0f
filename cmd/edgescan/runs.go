package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var showJSON bool

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		items, err := newRunRepo(store, cfg.Database).List(cmd.Context())
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println(yellow("No runs stored."))
			return nil
		}
		for _, s := range items {
			fmt.Printf("%s  %-20s %-7s %-9s %s  %d samples, %d features\n",
				cyan(s.ID), s.Name, s.Mode, s.Status, s.StartedAt.Format(time.RFC3339), s.Samples, s.Features)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		r, err := newRunRepo(store, cfg.Database).Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if showJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		}
		fmt.Printf("%s %s (%s, %s)\n", cyan("Run"), r.ID, r.Name, r.Mode)
		fmt.Printf("  status:    %s\n", r.Status)
		fmt.Printf("  started:   %s\n", r.StartedAt.Format(time.RFC3339))
		if !r.FinishedAt.IsZero() {
			fmt.Printf("  duration:  %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		}
		fmt.Printf("  samples:   %d\n", r.Trace.Len())
		fmt.Printf("  features:  %d\n", len(r.Features))
		for i, f := range r.Features {
			fmt.Printf("    %d. %s\n", i+1, describeFeature(f))
		}
		if r.Error != "" {
			fmt.Printf("  %s %s\n", red("error:"), r.Error)
		}
		return nil
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := newRunRepo(store, cfg.Database).Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", green("Deleted"), args[0])
		return nil
	},
}

func init() {
	runsShowCmd.Flags().BoolVar(&showJSON, "json", false, "print the full run as JSON")
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}
