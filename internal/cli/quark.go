package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cfstore/internal/quark"
)

// QuarkOptions holds flags for the quark command.
type QuarkOptions struct {
	*RootOptions
	Variables []int64
	Manifest  int64
	Start     float64
	End       float64
	DryRun    bool
}

// NewQuarkCommand creates the quark command.
func NewQuarkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QuarkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "quark",
		Short: "Restrict aggregated variables to a time interval",
		Long: `Create quarks: variables restricted to the fragments of their manifest
that overlap [start, end]. Requesting an existing quark returns it; an
interval covering every fragment returns the original variable.

With several --variable flags, variables whose manifest does not cover the
interval are skipped and reported.

Example:
  cfstore quark --variable 12 --start 3650 --end 7300
  cfstore quark --variable 12 --start 3650 --end 7300 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.Variables) == 0 && opts.Manifest == 0 {
				return NewExitError(ExitCommandError, "one of --variable or --manifest is required")
			}
			if len(opts.Variables) > 0 && opts.Manifest != 0 {
				return NewExitError(ExitCommandError, "--variable and --manifest are mutually exclusive")
			}
			if opts.DryRun && len(opts.Variables) != 1 {
				return NewExitError(ExitCommandError, "--dry-run takes exactly one --variable")
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				return runQuark(ctx, s, opts)
			})
		},
	}

	cmd.Flags().Int64SliceVar(&opts.Variables, "variable", nil, "aggregated variable id (repeatable)")
	cmd.Flags().Int64Var(&opts.Manifest, "manifest", 0, "manifest id, instead of a variable")
	cmd.Flags().Float64Var(&opts.Start, "start", 0, "interval start, in the manifest's time units")
	cmd.Flags().Float64Var(&opts.End, "end", 0, "interval end, in the manifest's time units")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show the fragment selection without writing")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runQuark(ctx context.Context, s *session, opts *QuarkOptions) error {
	switch {
	case opts.DryRun:
		plan, err := s.cat.PlanQuark(ctx, opts.Variables[0], opts.Start, opts.End)
		if err != nil {
			return s.out.Fail("plan quark", err)
		}
		return s.out.Result(plan, func(w io.Writer) error {
			return quark.FormatPlan(w, plan.Manifest.Bounds, opts.Start, opts.End, plan.Selection)
		})

	case opts.Manifest != 0:
		res, err := s.cat.MakeManifestQuark(ctx, opts.Manifest, opts.Start, opts.End)
		if err != nil {
			return s.out.Fail("quark manifest", err)
		}
		return s.out.Result(res, func(w io.Writer) error {
			return printQuark(w, res)
		})

	case len(opts.Variables) == 1:
		res, err := s.cat.MakeQuark(ctx, opts.Variables[0], opts.Start, opts.End)
		if err != nil {
			return s.out.Fail("quark variable", err)
		}
		return s.out.Result(res, func(w io.Writer) error {
			return printQuark(w, res)
		})
	}

	bulk, err := s.cat.MakeQuarks(ctx, opts.Variables, opts.Start, opts.End)
	if err != nil {
		return s.out.Fail("quark variables", err)
	}
	return s.out.Result(bulk, func(w io.Writer) error {
		for _, res := range bulk.Results {
			if err := printQuark(w, res); err != nil {
				return err
			}
		}
		for _, sk := range bulk.Skipped {
			if _, err := fmt.Fprintf(w, "skipped variable %d: %s\n", sk.VariableID, sk.Reason); err != nil {
				return err
			}
		}
		return nil
	})
}

func printQuark(w io.Writer, res quark.Result) error {
	subject := fmt.Sprintf("variable %d (%s)", res.Variable.ID, res.Variable.UUID)
	if res.Variable.ID == 0 {
		subject = "manifest " + res.Manifest.RootUUID()
	}
	if res.Selection.Full {
		_, err := fmt.Fprintf(w, "%s: interval covers the whole manifest, nothing to cut\n", subject)
		return err
	}
	state := "existing"
	if res.ManifestCreated {
		state = "new"
	}
	_, err := fmt.Fprintf(w, "%s: %s quark manifest %s with %d fragment(s), bounds [%v, %v]\n",
		subject, state, res.Manifest.UUID, len(res.Manifest.Fragments), res.Selection.Start, res.Selection.End)
	return err
}
