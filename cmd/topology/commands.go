package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/fa-topology/internal/core/config"
	"github.com/artpar/fa-topology/internal/core/invariant"
	"github.com/artpar/fa-topology/internal/core/output"
	"github.com/artpar/fa-topology/internal/shell/planner"
	"github.com/artpar/fa-topology/internal/shell/render"
	"github.com/artpar/fa-topology/internal/shell/store"
	"github.com/artpar/fa-topology/internal/shell/tfvars"
)

// =============================================================================
// Variables
// =============================================================================

// variables holds the flags that make up raw configuration. Flags that are
// set override values from the variables file.
type variables struct {
	file         string
	region       string
	domainName   string
	zoneID       string
	cpu          int
	memory       int
	desiredCount int
	vpcID        string
	subnetIDs    []string
}

func (v *variables) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&v.file, "var-file", "", "Path to a .tfvars file")
	f.StringVar(&v.region, "region", "", "AWS region")
	f.StringVar(&v.domainName, "domain", "", "Custom domain name (enables HTTPS)")
	f.StringVar(&v.zoneID, "zone-id", "", "Route53 hosted zone id for the domain")
	f.IntVar(&v.cpu, "cpu", 0, "Task CPU units")
	f.IntVar(&v.memory, "memory", 0, "Task memory in MiB")
	f.IntVar(&v.desiredCount, "desired-count", 0, "Number of running tasks")
	f.StringVar(&v.vpcID, "vpc-id", "", "VPC to run in")
	f.StringSliceVar(&v.subnetIDs, "subnet-ids", nil, "Subnets to run in")
}

func (v *variables) raw(cmd *cobra.Command, a *app) (config.Raw, error) {
	var raw config.Raw
	if v.file != "" {
		result, err := tfvars.Load(v.file)
		if err != nil {
			return config.Raw{}, &ServerError{Op: "LoadVariables", Err: err, ExitCode: ExitConfigError}
		}
		if len(result.Unknown) > 0 {
			a.logger.Debug("ignoring unknown variables", "file", v.file, "variables", result.Unknown)
		}
		raw = result.Raw
	}

	f := cmd.Flags()
	if f.Changed("region") {
		raw.Region = v.region
	}
	if f.Changed("domain") {
		raw.DomainName = v.domainName
	}
	if f.Changed("zone-id") {
		raw.DNSZoneID = v.zoneID
	}
	if f.Changed("cpu") {
		raw.CPUUnits = config.IntPtr(v.cpu)
	}
	if f.Changed("memory") {
		raw.MemoryMiB = config.IntPtr(v.memory)
	}
	if f.Changed("desired-count") {
		raw.DesiredCount = config.IntPtr(v.desiredCount)
	}
	if f.Changed("vpc-id") {
		raw.VPCID = v.vpcID
	}
	if f.Changed("subnet-ids") {
		raw.SubnetIDs = v.subnetIDs
	}
	return raw, nil
}

// =============================================================================
// Planner Wiring
// =============================================================================

// planner builds a planning service. With save set it opens the plan
// history; the returned close func must always be called.
func (a *app) planner(save, discover bool) (*planner.Service, func(), error) {
	cfg := *a.config
	cfg.Network.Discover = cfg.Network.Discover || discover

	if !save {
		return planner.NewService(nil, discoverer(&cfg, a.logger), a.logger), func() {}, nil
	}

	s, err := openStore(a.config.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := s.Close(); err != nil {
			a.logger.Error("database close error", "error", err)
		}
	}
	return planner.NewService(s, discoverer(&cfg, a.logger), a.logger), closeFn, nil
}

// write encodes the plan in format.
func (a *app) write(result *planner.Result, format render.Format) error {
	var (
		out []byte
		err error
	)
	switch format {
	case render.FormatHCL:
		out, err = render.HCL(result.Config, result.Graph, result.Outputs)
	case render.FormatYAML:
		out, err = render.YAML(result.Document)
	default:
		out, err = render.JSON(result.Document)
	}
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(out)
	return err
}

// =============================================================================
// plan
// =============================================================================

func (a *app) newPlanCommand() *cobra.Command {
	var (
		vars     variables
		noSave   bool
		discover bool
		format   string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Resolve and check the topology, and record the plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return &ServerError{Op: "plan", Err: err, ExitCode: ExitConfigError}
			}
			raw, err := vars.raw(cmd, a)
			if err != nil {
				return err
			}

			svc, closeFn, err := a.planner(!noSave, discover)
			if err != nil {
				return err
			}
			defer closeFn()

			result, planErr := svc.Plan(cmd.Context(), raw)
			if result == nil {
				return planErr
			}
			if err := a.write(result, f); err != nil {
				return err
			}
			writeViolations(cmd.ErrOrStderr(), result.Violations)
			if result.Record != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "recorded plan %s (changed: %t)\n", result.Record.ID, result.Changed)
			}
			return planErr
		},
	}
	vars.register(cmd)
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not record the plan in history")
	cmd.Flags().BoolVar(&discover, "discover", false, "Discover the default VPC and subnets")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, yaml or hcl")
	return cmd
}

// =============================================================================
// render
// =============================================================================

func (a *app) newRenderCommand() *cobra.Command {
	var (
		vars     variables
		planID   string
		discover bool
		format   string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the topology without recording it",
		Long: "Render the topology as Terraform HCL, JSON or YAML. With --plan the " +
			"stored configuration of a recorded plan is rendered instead of flags.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return &ServerError{Op: "render", Err: err, ExitCode: ExitConfigError}
			}

			if planID != "" {
				svc, closeFn, err := a.planner(true, false)
				if err != nil {
					return err
				}
				defer closeFn()

				result, err := svc.Rebuild(cmd.Context(), planID)
				if err != nil {
					return err
				}
				return a.write(result, f)
			}

			raw, err := vars.raw(cmd, a)
			if err != nil {
				return err
			}
			svc, closeFn, err := a.planner(false, discover)
			if err != nil {
				return err
			}
			defer closeFn()

			result, planErr := svc.Plan(cmd.Context(), raw)
			if result == nil {
				return planErr
			}
			if err := a.write(result, f); err != nil {
				return err
			}
			writeViolations(cmd.ErrOrStderr(), result.Violations)
			return planErr
		},
	}
	vars.register(cmd)
	cmd.Flags().StringVar(&planID, "plan", "", "Render a recorded plan by id")
	cmd.Flags().BoolVar(&discover, "discover", false, "Discover the default VPC and subnets")
	cmd.Flags().StringVarP(&format, "format", "f", "hcl", "Output format: hcl, json or yaml")
	return cmd
}

// =============================================================================
// outputs
// =============================================================================

func (a *app) newOutputsCommand() *cobra.Command {
	var vars variables

	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the topology outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := vars.raw(cmd, a)
			if err != nil {
				return err
			}
			svc, closeFn, err := a.planner(false, false)
			if err != nil {
				return err
			}
			defer closeFn()

			result, planErr := svc.Plan(cmd.Context(), raw)
			if result == nil {
				return planErr
			}
			writeOutputs(a.stdout, result.Outputs)
			return planErr
		},
	}
	vars.register(cmd)
	return cmd
}

func writeOutputs(w io.Writer, outs output.OutputSet) {
	values := outs.Map()
	for _, name := range output.Names() {
		v := values[name]
		if v.IsRef() {
			fmt.Fprintf(w, "%s = %s\n", name, v.String())
			continue
		}
		fmt.Fprintf(w, "%s = %q\n", name, v.String())
	}
}

func writeViolations(w io.Writer, violations []invariant.Violation) {
	sorted := append([]invariant.Violation(nil), violations...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Blocking() && !sorted[j].Blocking()
	})
	for _, v := range sorted {
		fmt.Fprintf(w, "%s: %s\n", v.Severity, v.Error())
	}
}

// =============================================================================
// history
// =============================================================================

func (a *app) newHistoryCommand() *cobra.Command {
	opts := store.DefaultListOptions()

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded plans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := a.planner(true, false)
			if err != nil {
				return err
			}
			defer closeFn()

			plans, err := svc.History(cmd.Context(), opts.Normalize())
			if err != nil {
				return err
			}
			return writeHistory(a.stdout, plans)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", opts.Limit, "Maximum number of plans")
	cmd.Flags().IntVar(&opts.Offset, "offset", opts.Offset, "Number of plans to skip")
	return cmd
}

func writeHistory(w io.Writer, plans []store.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tREGION\tROUTING\tFINGERPRINT\tSTATUS")
	for _, p := range plans {
		status := "ok"
		switch {
		case p.Blocked:
			status = fmt.Sprintf("blocked (%d errors)", p.ErrorCount)
		case p.WarningCount > 0:
			status = fmt.Sprintf("ok (%d warnings)", p.WarningCount)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID,
			p.CreatedAt.UTC().Format(time.RFC3339),
			p.Region,
			routingLabel(p),
			shortFingerprint(p.Fingerprint),
			status,
		)
	}
	return tw.Flush()
}

func routingLabel(p store.Plan) string {
	if p.DomainName == "" {
		return p.Routing
	}
	return p.Routing + " (" + p.DomainName + ")"
}

func shortFingerprint(fp string) string {
	fp = strings.TrimPrefix(fp, "sha256:")
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// =============================================================================
// serve
// =============================================================================

func (a *app) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the planning API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logger.Info("starting topology server", "version", Version, "config", a.configPath)

			server, err := NewServer(a.config, a.logger)
			if err != nil {
				return err
			}
			return server.Start(cmd.Context())
		},
	}
}
