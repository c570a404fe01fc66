package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goplus/cppbuilder/internal/config"
	"github.com/goplus/cppbuilder/internal/env"
	"github.com/goplus/cppbuilder/internal/installer"
	"github.com/goplus/cppbuilder/internal/orchestrator"
	"github.com/goplus/cppbuilder/internal/process"
	"github.com/goplus/cppbuilder/internal/sources"
)

var (
	installConfig          string
	installEnvFile         string
	installConanDir        string
	installScratch         string
	installContinueOnError bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install every declared component",
	Long: `Install reads the declaration file, installs each component in order,
records the result and writes the environment file.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	flags := installCmd.Flags()
	flags.StringVarP(&installConfig, "config", "c", "", fmt.Sprintf("declaration file (default $%s or %s)", env.MetadataPath, env.DefaultMetadataPath))
	flags.StringVar(&installEnvFile, "env-file", "", fmt.Sprintf("environment file to write (default $%s or %s)", env.EnvFilePath, env.DefaultEnvFilePath))
	flags.StringVar(&installConanDir, "conan-dir", "", fmt.Sprintf("conan profile directory (default $%s or %s)", env.ConanProfilesPath, env.DefaultConanProfilesPath))
	flags.StringVar(&installScratch, "scratch", "", "parent of the per-component scratch directories (default system temp dir)")
	flags.BoolVar(&installContinueOnError, "continue-on-error", false, "keep installing after a component fails")
	rootCmd.AddCommand(installCmd)
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(orDefault(installConfig, env.MetadataFile()))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := env.Load()
	runner := process.ExecRunner{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}
	orch := orchestrator.New(installer.Deps{
		Runner:      runner,
		Sources:     sources.New(runner, settings),
		Settings:    settings,
		ScratchRoot: installScratch,
	}, orchestrator.Options{
		RegistryPath:    registryFile(),
		EnvFilePath:     orDefault(installEnvFile, env.EnvFile()),
		ConanDir:        orDefault(installConanDir, env.ConanProfilesDir()),
		ContinueOnError: installContinueOnError,
	})

	res, err := orch.Run(ctx, cfg)
	if res != nil {
		printSummary(cmd.OutOrStdout(), cfg, res)
	}
	return err
}

func printSummary(w io.Writer, cfg *config.Config, res *orchestrator.Result) {
	failed := make(map[string]bool, len(res.Failed))
	for _, key := range res.Failed {
		failed[key] = true
	}
	ok, bad, skip := color.New(color.FgGreen), color.New(color.FgRed), color.New(color.FgYellow)
	for _, d := range cfg.Components {
		switch desc, installed := res.Registry.Get(d.Key); {
		case installed:
			ok.Fprintf(w, "  ✓ %-24s %s %s\n", d.Key, desc.Version, desc.Path)
		case failed[d.Key]:
			bad.Fprintf(w, "  ✗ %-24s failed\n", d.Key)
		default:
			skip.Fprintf(w, "  - %-24s skipped\n", d.Key)
		}
	}
}
