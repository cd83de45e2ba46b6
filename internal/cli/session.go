package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/cfstore/internal/catalog"
	"github.com/roach88/cfstore/internal/config"
	"github.com/roach88/cfstore/internal/metrics"
	"github.com/roach88/cfstore/internal/store"
)

// session is the state one command runs with: configuration, logger, the
// open catalog, its metrics registry and the output formatter.
type session struct {
	cfg   *config.Config
	log   *slog.Logger
	store *store.Store
	cat   *catalog.Catalog
	reg   *prometheus.Registry
	out   *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openSession loads the configuration, applies flag overrides and opens
// the catalog. The caller must call close.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := newFormatter(opts, cmd)

	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			_ = out.Error(ErrCodeConfig, err.Error(), nil)
			return nil, WrapExitError(ExitCommandError, "failed to load config", err).reported()
		}
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	log := cfg.Logger(cmd.ErrOrStderr(), opts.Verbose)
	slog.SetDefault(log)

	log.Debug("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		_ = out.Error(ErrCodeDatabase, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err).reported()
	}

	reg := prometheus.NewRegistry()
	cat, err := catalog.New(catalog.Config{
		Store:         st,
		HashAlgorithm: cfg.Registry.HashAlgorithm,
		FragmentSize:  cfg.FragmentSize(),
		Logger:        log,
		Metrics:       metrics.NewMetrics(reg),
		VerifyQuarks:  cfg.Quark.Verify,
	})
	if err != nil {
		_ = st.Close()
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open catalog", err).reported()
	}

	return &session{cfg: cfg, log: log, store: st, cat: cat, reg: reg, out: out}, nil
}

// close releases the database. In verbose mode the metrics the command
// recorded are written to stderr in the Prometheus text format.
func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.log.Error("error closing database", "error", err)
	}
	if s.out.Verbose {
		if err := writeMetrics(s.out.GetErrWriter(), s.reg); err != nil {
			s.log.Error("error writing metrics", "error", err)
		}
	}
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// withSession runs fn against an open session using the command context.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, s)
}
