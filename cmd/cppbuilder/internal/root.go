package internal

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goplus/cppbuilder/internal/env"
	"github.com/goplus/cppbuilder/internal/logging"
)

var registryPath string

var rootCmd = &cobra.Command{
	Use:   "cppbuilder",
	Short: "cppbuilder installs isolated C/C++ toolchains",
	Long: `cppbuilder builds or unpacks the declared compilers and tools into an
isolated tree, records what was installed, and derives the BUILDER_*_DIR
variables that locate each component.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.ConfigureRuntime()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&registryPath, "registry", "", fmt.Sprintf("installation record (default $%s or %s)", env.SummaryPath, env.DefaultSummaryPath))
}

func registryFile() string {
	if registryPath != "" {
		return registryPath
	}
	return env.SummaryFile()
}

// exitCode carries the status of a command run on behalf of the user.
type exitCode int

func (c exitCode) Error() string { return fmt.Sprintf("exit status %d", int(c)) }

// Execute runs the root command and returns the process exit status.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var code exitCode
	if errors.As(err, &code) {
		return int(code)
	}
	log.Error().Err(err).Msg("cppbuilder failed")
	return 1
}
