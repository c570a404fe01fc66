package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goplus/cppbuilder/internal/environ"
	"github.com/goplus/cppbuilder/internal/registry"
)

var envWrite string

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the variables derived from the installation record",
	Args:  cobra.NoArgs,
	RunE:  runEnv,
}

func init() {
	envCmd.Flags().StringVarP(&envWrite, "write", "w", "", "write the variables to this file instead of stdout")
	rootCmd.AddCommand(envCmd)
}

func runEnv(cmd *cobra.Command, args []string) error {
	vars, err := environ.FromRegistry(registry.Load(registryFile()))
	if err != nil {
		return err
	}
	if envWrite != "" {
		return environ.WriteFile(envWrite, vars)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), environ.Format(vars))
	return err
}
