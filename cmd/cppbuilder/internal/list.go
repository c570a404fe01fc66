package internal

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goplus/cppbuilder/internal/registry"
	"github.com/goplus/cppbuilder/internal/versions"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the installed components",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printComponents(cmd.OutOrStdout(), registry.Load(registryFile()))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

type row struct {
	key string
	registry.Descriptor
}

// sortedRows orders components by name, then by version, then by key.
func sortedRows(r *registry.Registry) []row {
	rows := make([]row, 0, r.Len())
	for key, d := range r.All() {
		rows = append(rows, row{key, d})
	}
	slices.SortFunc(rows, func(a, b row) int {
		return cmp.Or(
			cmp.Compare(a.Name, b.Name),
			versions.Compare(a.Version, b.Version),
			cmp.Compare(a.key, b.key),
		)
	})
	return rows
}

func printComponents(w io.Writer, r *registry.Registry) error {
	rows := sortedRows(r)
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no components installed")
		return err
	}
	bold := color.New(color.Bold)
	def := color.New(color.FgGreen)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	bold.Fprintln(tw, "NAME\tVERSION\tKEY\tTRIPLET\tPATH")
	for _, c := range rows {
		name := c.Name
		if c.Default {
			name = def.Sprint(name + "*")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", name, c.Version, c.key, c.Triplet, c.Path)
	}
	return tw.Flush()
}
