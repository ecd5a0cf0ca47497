package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/advdv/jsgi"
	"github.com/advdv/jsgi/internal/example"
	"github.com/advdv/jsgi/jsgiapp"
	"github.com/advdv/jsgi/mw"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(routesCmd)
}

var routesCmd = &cobra.Command{
	Use:   "routes [routes-file]",
	Short: "Check a routes file and print its routing table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := jsgiapp.LoadRouting(args[0])
		if err != nil {
			return err
		}

		reg := jsgiapp.NewRegistry().
			Middleware("gzip", mw.Gzip()).
			Middleware("conditional", mw.ConditionalGet())
		for name, mod := range example.Modules() {
			reg.Module(name, mod)
		}
		if err := rt.Apply(jsgi.NewDispatcher(), reg); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PATTERN\tMODULE\tNAME\tACTIONS")
		for _, entry := range rt.Routes {
			pattern := entry.Pattern
			if pattern == "" {
				pattern = "~" + entry.Regexp
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", pattern, entry.Module, entry.Name, example.Modules()[entry.Module].Actions())
		}
		return w.Flush()
	},
}
