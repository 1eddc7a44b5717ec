package tubcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lmxia/pmlcar/internal/runtime"
	"github.com/lmxia/pmlcar/internal/tub"
	"github.com/lmxia/pmlcar/internal/tubgroup"
)

// newTubNewCommand constructs the `tub new` subcommand.
func newTubNewCommand(open RuntimeFunc) *cobra.Command {
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create a tub (next session tub under the data path unless --path is set)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			inputs, _ := cmd.Flags().GetString("inputs")
			types, _ := cmd.Flags().GetString("types")
			path, _ := cmd.Flags().GetString("path")
			schema, err := parseSchema(inputs, types)
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				var t *tub.Tub
				if path != "" {
					t, err = rt.CreateTub(path, schema)
				} else {
					t, err = rt.NewSessionTub(schema)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.Path())
				return nil
			})
		},
	}
	newCmd.Flags().String("inputs", "cam/image_array,user/angle,user/throttle,user/mode", "Comma-separated field names")
	newCmd.Flags().String("types", "image_array,float,float,str", "Comma-separated field kinds")
	newCmd.Flags().String("path", "", "Tub directory (default: next tub_<n>_<date> under the data path)")
	return newCmd
}

// newTubLsCommand constructs the `tub ls` subcommand.
func newTubLsCommand(open RuntimeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [tubs]",
		Short: "List tubs with record counts and sizes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				list := rt.DataPath()
				if len(args) == 1 {
					list = args[0]
				}
				paths, err := tubgroup.ExpandPaths(list)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TUB\tRECORDS\tNEXT\tSIZE\tINPUTS")
				for _, p := range paths {
					t, err := rt.OpenTub(p)
					if err != nil {
						fmt.Fprintf(tw, "%s\t-\t-\t-\t%v\n", p, err)
						continue
					}
					n, err := t.NumRecords()
					if err != nil {
						return err
					}
					size, err := dirSize(t.Path())
					if err != nil {
						return err
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", t.Path(), humanize.Comma(int64(n)), t.CurrentIndex(),
						humanize.Bytes(size), strings.Join(t.Schema().Inputs(), ","))
				}
				return tw.Flush()
			})
		},
	}
}

// newTubCheckCommand constructs the `tub check` subcommand.
func newTubCheckCommand(open RuntimeFunc) *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check <tubs>",
		Short: "Load every record and report (or with --fix remove) the broken ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fix, _ := cmd.Flags().GetBool("fix")
			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				paths, err := tubgroup.ExpandPaths(args[0])
				if err != nil {
					return err
				}
				cache, err := rt.Cache()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				unhealthy := 0
				for _, p := range paths {
					t, err := rt.OpenTub(p)
					if err != nil {
						return err
					}
					rep := t.Check(fix)
					if rep.Err != nil {
						fmt.Fprintf(out, "%s: %v\n", t.Path(), rep.Err)
						unhealthy++
						continue
					}
					for _, pr := range rep.Problems {
						state := "broken"
						if pr.Removed {
							state = "removed"
						}
						fmt.Fprintf(out, "%s: record %d %s: %v\n", t.Path(), pr.Index, state, pr.Err)
					}
					fmt.Fprintf(out, "%s: %d records checked, %d problems\n", t.Path(), rep.Checked, len(rep.Problems))
					if fix && len(rep.Problems) > 0 && cache != nil {
						if err := cache.Invalidate(cmd.Context(), t.Path()); err != nil {
							return err
						}
					}
					if !rep.OK() && !fix {
						unhealthy++
					}
				}
				if unhealthy > 0 {
					return fmt.Errorf("%d tub(s) have problems; rerun with --fix to remove broken records", unhealthy)
				}
				return nil
			})
		},
	}
	checkCmd.Flags().Bool("fix", false, "Remove records that fail to load")
	return checkCmd
}

// newTubExportCommand constructs the `tub export` subcommand.
func newTubExportCommand(open RuntimeFunc) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export <tub>",
		Short: "Write records in [start, end) and meta.json to a tar.gz archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			start, _ := cmd.Flags().GetInt("start")
			end, _ := cmd.Flags().GetInt("end")
			media, _ := cmd.Flags().GetBool("media")
			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				t, err := rt.OpenTub(args[0])
				if err != nil {
					return err
				}
				if out == "" {
					out = filepath.Base(t.Path()) + ".tar.gz"
				}
				n, err := t.ExportFile(cmd.Context(), out, tub.ExportOptions{Start: start, End: end, IncludeMedia: media})
				if err != nil {
					return err
				}
				fi, err := os.Stat(out)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s (%s)\n", n, out, humanize.Bytes(uint64(fi.Size())))
				return nil
			})
		},
	}
	exportCmd.Flags().StringP("out", "o", "", "Archive path (default <tub>.tar.gz)")
	exportCmd.Flags().Int("start", 0, "First index to include")
	exportCmd.Flags().Int("end", 0, "One past the last index to include (default: all)")
	exportCmd.Flags().Bool("media", false, "Also archive the image files the records reference")
	return exportCmd
}

// newTubImportCommand constructs the `tub import` subcommand.
func newTubImportCommand(open RuntimeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive> <dest>",
		Short: "Extract an exported archive into a tub directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(rt *runtime.Runtime) error {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				n, err := tub.Import(cmd.Context(), f, args[1])
				if err != nil {
					return err
				}
				t, err := rt.OpenTub(args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d records into %s (next index %d)\n", n, t.Path(), t.CurrentIndex())
				return nil
			})
		},
	}
}
