package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/cfstore/internal/model"
)

// NewLocationCommand creates the location command group.
func NewLocationCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Manage storage locations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Register a storage location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				loc, err := s.cat.CreateLocation(ctx, args[0])
				if err != nil {
					return s.out.Fail("add location", err)
				}
				return s.out.Result(loc, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "location %s added\n", loc.Name)
					return err
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Remove an empty storage location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if err := s.cat.DeleteLocation(ctx, args[0]); err != nil {
					return s.out.Fail("remove location", err)
				}
				return s.out.Success(fmt.Sprintf("location %s removed", args[0]))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List storage locations and their volumes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				locs, err := s.cat.ListLocations(ctx)
				if err != nil {
					return s.out.Fail("list locations", err)
				}
				if locs == nil {
					locs = []model.Location{}
				}
				return s.out.Result(locs, func(io.Writer) error {
					rows := make([][]string, len(locs))
					for i, l := range locs {
						rows[i] = []string{l.Name, strconv.FormatInt(l.Volume, 10)}
					}
					return s.out.Table([]string{"NAME", "VOLUME"}, rows)
				})
			})
		},
	})

	return cmd
}
