package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cfstore/internal/catalog"
	"github.com/roach88/cfstore/internal/model"
)

// CollectionDetail is the output of collection show.
type CollectionDetail struct {
	Collection    model.Collection     `json:"collection"`
	Variables     []model.Variable     `json:"variables"`
	Relationships []model.Relationship `json:"relationships"`
}

// NewCollectionCommand creates the collection command group.
func NewCollectionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage collections of variables",
	}

	cmd.AddCommand(newCollectionAddCommand(rootOpts))
	cmd.AddCommand(newCollectionRemoveCommand(rootOpts, "rm", "Delete a collection", false))
	cmd.AddCommand(newCollectionRemoveCommand(rootOpts, "empty", "Remove every variable from a collection", true))
	cmd.AddCommand(newCollectionListCommand(rootOpts))
	cmd.AddCommand(newCollectionShowCommand(rootOpts))
	cmd.AddCommand(newCollectionRelateCommand(rootOpts))

	return cmd
}

func newCollectionAddCommand(rootOpts *RootOptions) *cobra.Command {
	var props catalog.CollectionProps

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props.Name = args[0]
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				c, err := s.cat.CreateCollection(ctx, props)
				if err != nil {
					return s.out.Fail("add collection", err)
				}
				return s.out.Result(c, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "collection %s added\n", c.Name)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&props.Description, "description", "", "collection description")
	cmd.Flags().StringSliceVar(&props.Tags, "tag", nil, "tag to attach (repeatable)")

	return cmd
}

// newCollectionRemoveCommand builds rm and empty, which differ only in
// whether the collection itself survives.
func newCollectionRemoveCommand(rootOpts *RootOptions, use, short string, keep bool) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Long: short + `.

Variables that belong to no other collection refuse the request unless
--force is given, in which case they are deleted along with everything
only they reference.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				var err error
				if keep {
					err = s.cat.EmptyCollection(ctx, args[0], force)
				} else {
					err = s.cat.DeleteCollection(ctx, args[0], force)
				}
				if err != nil {
					return s.out.Fail(use+" collection", err)
				}
				verb := "deleted"
				if keep {
					verb = "emptied"
				}
				return s.out.Success(fmt.Sprintf("collection %s %s", args[0], verb))
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "delete variables exclusive to the collection")

	return cmd
}

func newCollectionListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				names, err := s.cat.ListCollections(ctx)
				if err != nil {
					return s.out.Fail("list collections", err)
				}
				if names == nil {
					names = []string{}
				}
				return s.out.Result(names, func(w io.Writer) error {
					for _, n := range names {
						if _, err := fmt.Fprintln(w, n); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}

func newCollectionShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a collection with its variables and relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				detail, err := collectionDetail(ctx, s.cat, args[0])
				if err != nil {
					return s.out.Fail("show collection", err)
				}
				return s.out.Result(detail, func(w io.Writer) error {
					c := detail.Collection
					fmt.Fprintf(w, "Collection: %s\n", c.Name)
					if c.Description != "" {
						fmt.Fprintf(w, "Description: %s\n", c.Description)
					}
					if len(c.Tags) > 0 {
						fmt.Fprintf(w, "Tags: %s\n", strings.Join(c.Tags, ", "))
					}
					for _, r := range detail.Relationships {
						fmt.Fprintf(w, "Related: %s -> collection %d\n", r.Predicate, r.ObjectID)
					}
					fmt.Fprintln(w)
					rows := make([][]string, len(detail.Variables))
					for i, v := range detail.Variables {
						rows[i] = []string{strconv.FormatInt(v.ID, 10), v.UUID, strconv.FormatInt(v.InFileID, 10)}
					}
					return s.out.Table([]string{"ID", "UUID", "FILE"}, rows)
				})
			})
		},
	}
}

func collectionDetail(ctx context.Context, cat *catalog.Catalog, name string) (CollectionDetail, error) {
	var d CollectionDetail
	var err error
	if d.Collection, err = cat.GetCollection(ctx, name); err != nil {
		return d, err
	}
	if d.Variables, err = cat.CollectionVariables(ctx, name); err != nil {
		return d, err
	}
	if d.Relationships, err = cat.Relationships(ctx, name); err != nil {
		return d, err
	}
	if d.Variables == nil {
		d.Variables = []model.Variable{}
	}
	if d.Relationships == nil {
		d.Relationships = []model.Relationship{}
	}
	return d, nil
}

func newCollectionRelateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "relate <subject> <predicate> <object>",
		Short: "Record a relationship between two collections",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session) error {
				rel, err := s.cat.Relate(ctx, args[0], args[1], args[2])
				if err != nil {
					return s.out.Fail("relate collections", err)
				}
				return s.out.Result(rel, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s %s %s\n", args[0], args[1], args[2])
					return err
				})
			})
		},
	}
}
