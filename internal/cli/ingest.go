package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cfstore/internal/ingest"
)

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <document>",
		Short: "Catalogue the files described by an ingestion document",
		Long: `Catalogue the files described by a YAML or JSON ingestion document.

Each file is one unit of work: if any of its records fails, everything
created for that file is rolled back and the remaining files continue.
Quarks requested by the document are cut after their file is catalogued.

Example:
  cfstore --db catalog.db ingest cmip6_tas.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(rootOpts, args[0], cmd)
		},
	}
}

func runIngest(opts *RootOptions, path string, cmd *cobra.Command) error {
	doc, err := ingest.Load(path)
	if err != nil {
		out := newFormatter(opts, cmd)
		_ = out.Error(ErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid document", err).reported()
	}

	return withSession(opts, cmd, func(ctx context.Context, s *session) error {
		s.out.VerboseLog("Ingesting %d file(s) from %s", len(doc.Files), path)

		report, err := ingest.Run(ctx, s.cat, doc, s.log)
		if printErr := s.out.Result(report, func(w io.Writer) error {
			return printReport(w, report)
		}); printErr != nil {
			return printErr
		}
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("%d failure(s)", len(report.Failures)), err).reported()
		}
		return nil
	})
}

func printReport(w io.Writer, report ingest.Report) error {
	for _, f := range report.Files {
		fmt.Fprintf(w, "ingested %s: %d manifest(s), %d variable(s), %d new record(s)\n",
			f.File.Name, len(f.Manifests), len(f.Variables), len(f.Created))
	}
	for _, q := range report.Quarks {
		state := "reused"
		if q.ManifestCreated {
			state = "created"
		}
		fmt.Fprintf(w, "quark %s: %d fragment(s) [%v, %v] %s\n",
			q.Variable.UUID, len(q.Manifest.Fragments), q.Selection.Start, q.Selection.End, state)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w, "FAILED %s: %s\n", f.File, f.Error)
	}
	return nil
}
