package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every location's volume against its attached files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				checks, err := s.cat.VerifyVolumes(ctx)
				if err != nil {
					return s.out.Fail("verify volumes", err)
				}

				bad := 0
				for _, c := range checks {
					if !c.OK() {
						bad++
					}
				}
				if bad > 0 {
					_ = s.out.Error(ErrCodeVolume, fmt.Sprintf("%d location(s) out of balance", bad), checks)
					return NewExitError(ExitFailure, "volume mismatch").reported()
				}

				return s.out.Result(checks, func(w io.Writer) error {
					rows := make([][]string, len(checks))
					for i, c := range checks {
						rows[i] = []string{c.Location, strconv.FormatInt(c.Recorded, 10), strconv.FormatInt(c.Actual, 10)}
					}
					return s.out.Table([]string{"LOCATION", "RECORDED", "ACTUAL"}, rows)
				})
			})
		},
	}
}
