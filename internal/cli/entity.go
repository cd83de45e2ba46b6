package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"
)

// NewFileCommand creates the file command group.
func NewFileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Inspect and remove catalogued files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a file and the locations holding it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				f, err := s.cat.GetFile(ctx, id)
				if err != nil {
					return s.out.Fail("show file", err)
				}
				locs, err := s.cat.FileLocations(ctx, id)
				if err != nil {
					return s.out.Fail("show file", err)
				}
				names := make([]string, len(locs))
				for i, l := range locs {
					names[i] = l.Name
				}
				data := map[string]any{"file": f, "locations": names}
				return s.out.Result(data, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s/%s (%s, %d bytes) at %v\n", f.Path, f.Name, f.Type, f.Size, names)
					return err
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a file with its variables and manifests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if err := s.cat.DeleteFile(ctx, id); err != nil {
					return s.out.Fail("remove file", err)
				}
				return s.out.Success(fmt.Sprintf("file %d removed", id))
			})
		},
	})

	return cmd
}

// NewVariableCommand creates the variable command group.
func NewVariableCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variable",
		Short: "Inspect and remove variables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a variable with its identity properties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				v, err := s.cat.GetVariable(ctx, id)
				if err != nil {
					return s.out.Fail("show variable", err)
				}
				ps, err := s.cat.VariableProperties(ctx, id)
				if err != nil {
					return s.out.Fail("show variable", err)
				}
				data := map[string]any{"variable": v, "properties": ps.Properties}
				return s.out.Result(data, func(w io.Writer) error {
					fmt.Fprintf(w, "Variable %d (%s) in file %d\n", v.ID, v.UUID, v.InFileID)
					rows := make([][]string, 0, len(ps.Properties)+len(v.Proxied))
					for _, p := range ps.Properties {
						rows = append(rows, []string{p.Key, fmt.Sprint(p.Value), "identity"})
					}
					for _, k := range slices.Sorted(maps.Keys(v.Proxied)) {
						rows = append(rows, []string{k, fmt.Sprint(v.Proxied[k]), "proxied"})
					}
					return s.out.Table([]string{"PROPERTY", "VALUE", "KIND"}, rows)
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a variable and whatever only it references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				if err := s.cat.DeleteVariable(ctx, id); err != nil {
					return s.out.Fail("remove variable", err)
				}
				return s.out.Success(fmt.Sprintf("variable %d removed", id))
			})
		},
	})

	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", s))
	}
	return id, nil
}
