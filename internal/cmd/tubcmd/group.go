package tubcmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lmxia/pmlcar/internal/runtime"
	"github.com/lmxia/pmlcar/internal/tubplot"
)

func addGroupFlags(cmd *cobra.Command) {
	cmd.Flags().String("filter", "", `CEL row filter, e.g. record["user/throttle"] > 0.1`)
	cmd.Flags().Bool("no-cache", false, "Read every record file instead of the index cache")
}

func groupOptions(cmd *cobra.Command, args []string) runtime.GroupOptions {
	filter, _ := cmd.Flags().GetString("filter")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	opts := runtime.GroupOptions{Filter: filter, NoCache: noCache}
	if len(args) > 0 {
		opts.Paths = args[0]
	}
	return opts
}

// newTubHistCommand constructs the `tub hist` subcommand.
func newTubHistCommand(open RuntimeFunc) *cobra.Command {
	histCmd := &cobra.Command{
		Use:   "hist [tubs]",
		Short: "Plot a histogram of a numeric field across tubs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetString("key")
			out, _ := cmd.Flags().GetString("out")
			bins, _ := cmd.Flags().GetInt("bins")
			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				g, err := rt.BuildGroup(cmd.Context(), groupOptions(cmd, args))
				if err != nil {
					return err
				}
				values, err := g.Column(cmd.Context(), key)
				if err != nil {
					return err
				}
				s := tubplot.Summarize(values)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: n=%s mean=%.4f std=%.4f min=%.4f max=%.4f\n",
					key, humanize.Comma(int64(s.Count)), s.Mean, s.Stddev, s.Min, s.Max)
				if out == "" {
					return nil
				}
				if err := tubplot.SaveHistogram(out, key, values, bins); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", out)
				return nil
			})
		},
	}
	histCmd.Flags().String("key", "user/angle", "Numeric field to plot")
	histCmd.Flags().StringP("out", "o", "", "PNG path (default: print the summary only)")
	histCmd.Flags().Int("bins", tubplot.DefaultBins, "Histogram bins")
	addGroupFlags(histCmd)
	return histCmd
}

// newTubSplitCommand constructs the `tub split` subcommand.
func newTubSplitCommand(open RuntimeFunc) *cobra.Command {
	splitCmd := &cobra.Command{
		Use:   "split [tubs]",
		Short: "Show the train/validation split a training run would use",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				cfg := rt.Config().Training
				fraction := cfg.TrainTestSplit
				if cmd.Flags().Changed("fraction") {
					fraction, _ = cmd.Flags().GetFloat64("fraction")
				}
				batch := cfg.BatchSize
				if cmd.Flags().Changed("batch-size") {
					batch, _ = cmd.Flags().GetInt("batch-size")
				}
				opts := groupOptions(cmd, args)
				opts.Keys = append(append([]string(nil), cfg.InputKeys...), cfg.OutputKeys...)
				g, err := rt.BuildGroup(cmd.Context(), opts)
				if err != nil {
					return err
				}
				s, err := g.Split(cmd.Context(), fraction)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tubs=%d train=%s val=%s steps_per_epoch=%d seed=%d\n",
					len(g.Tubs()), humanize.Comma(int64(len(s.Train))), humanize.Comma(int64(len(s.Val))),
					s.StepsPerEpoch(batch), g.Seed())
				return nil
			})
		},
	}
	splitCmd.Flags().Float64("fraction", 0, "Train fraction (default from config)")
	splitCmd.Flags().Int("batch-size", 0, "Batch size for steps per epoch (default from config)")
	addGroupFlags(splitCmd)
	return splitCmd
}

// newTubCacheCommand constructs the `tub cache` command group.
func newTubCacheCommand(open RuntimeFunc) *cobra.Command {
	cacheCmd := &cobra.Command{Use: "cache", Short: "Index cache operations"}

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List cached tub indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				cache, err := rt.Cache()
				if err != nil || cache == nil {
					return err
				}
				list, err := cache.List()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TUB\tRECORDS\tBUILT")
				for _, c := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Path, humanize.Comma(int64(c.Stamp.Count)), humanize.Time(c.Stamp.Built))
				}
				return tw.Flush()
			})
		},
	}

	rebuildCmd := &cobra.Command{
		Use:   "rebuild [tubs]",
		Short: "Drop and rebuild the cached indexes of the given tubs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				g, err := rt.BuildGroup(cmd.Context(), groupOptions(cmd, args))
				if err != nil {
					return err
				}
				rows, err := g.Rebuild(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %s rows from %d tubs\n", humanize.Comma(int64(len(rows))), len(g.Tubs()))
				return nil
			})
		},
	}
	rebuildCmd.Flags().String("filter", "", "CEL row filter applied to the reported count")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				cache, err := rt.Cache()
				if err != nil || cache == nil {
					return err
				}
				if err := cache.Purge(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "index cache cleared")
				return nil
			})
		},
	}

	cacheCmd.AddCommand(lsCmd, rebuildCmd, clearCmd)
	return cacheCmd
}
