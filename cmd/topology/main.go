// Command topology resolves, checks and renders the agents deployment
// topology, records planning history, and serves the planner over HTTP.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/shell/network"
	"github.com/artpar/fa-topology/internal/shell/planner"
	"github.com/artpar/fa-topology/internal/shell/store"
	"github.com/artpar/fa-topology/internal/shell/tfvars"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var sErr *ServerError
	var cfgErr *config.ConfigError
	var storeErr *store.StoreError
	switch {
	case errors.As(err, &sErr):
		return sErr.ExitCode
	case errors.Is(err, planner.ErrBlocked):
		return ExitBlocked
	case errors.As(err, &cfgErr), errors.Is(err, tfvars.ErrDecode):
		return ExitConfigError
	case errors.Is(err, planner.ErrDiscovery),
		errors.Is(err, network.ErrNoDefaultVPC),
		errors.Is(err, network.ErrNoSubnets),
		errors.Is(err, network.ErrAccessDenied):
		return ExitDiscoveryError
	case errors.As(err, &storeErr):
		return ExitDatabaseError
	default:
		return ExitRuntimeError
	}
}

// =============================================================================
// Root Command
// =============================================================================

// app carries state shared by subcommands.
type app struct {
	configPath string
	stdout     io.Writer

	config *Config
	logger *slog.Logger
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	a := &app{stdout: stdout}

	root := &cobra.Command{
		Use:           "topology",
		Short:         "Plan the financial-assistant agents deployment topology",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(a.configPath)
			if err != nil {
				return &ServerError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
			}
			a.config = cfg
			a.logger = SetupLogger(cfg)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file")

	root.AddCommand(
		a.newPlanCommand(),
		a.newRenderCommand(),
		a.newOutputsCommand(),
		a.newHistoryCommand(),
		a.newServeCommand(),
		newVersionCommand(stdout),
	)
	return root
}

func newVersionCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		// Skips config loading.
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "topology %s (built %s)\n", Version, BuildTime)
		},
	}
}

// discoverer returns the network filler for cfg, or nil when discovery is
// off.
func discoverer(cfg *Config, logger *slog.Logger) planner.NetworkFiller {
	if !cfg.Network.Discover {
		return nil
	}
	if !cfg.AWS.HasCredentials() {
		logger.Warn("network discovery enabled without AWS credentials")
	}
	return network.NewRegional(func(region string) network.EC2API {
		return network.NewEC2Client(region, cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey)
	}, logger)
}
