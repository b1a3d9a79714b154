package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/thisisjab/docquery/client"
	"github.com/thisisjab/docquery/expr/parser"
	"github.com/thisisjab/docquery/query"
)

// QueryOptions holds the flags shared by every command that builds a query.
type QueryOptions struct {
	*RootOptions
	Select  []string
	Hidden  []string
	Where   []string
	OrWhere []string
	Having  string
	GroupBy []string
	Sort    string
	Limit   int
	Skip    int
}

type queryCommand struct {
	name  string
	short string
	run   func(*query.Builder, context.Context) (json.RawMessage, error)
}

var queryCommands = []queryCommand{
	{"fetch", "Fetch matching documents", (*query.Builder).Fetch},
	{"first", "Fetch the first matching document", (*query.Builder).FetchFirst},
	{"count", "Count matching documents", (*query.Builder).Count},
	{"exists", "Report whether any document matches", (*query.Builder).Exists},
	{"delete", "Delete matching documents", (*query.Builder).Delete},
}

func newQueryCommand(rootOpts *RootOptions, q queryCommand) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   q.name + " <collection>",
		Short: q.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args[0], func(b *query.Builder, out io.Writer) error {
				res, err := q.run(b, cmd.Context())
				if err != nil {
					return err
				}
				return opts.print(out, res)
			})
		},
	}

	addQueryFlags(cmd, opts)

	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}
	var by string

	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List matching documents or one of their properties",
		Example: `  docquery list users --by name
  docquery list posts --where "published = true" --sort title`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args[0], func(b *query.Builder, out io.Writer) error {
				items, err := b.List(cmd.Context(), by)
				if err != nil {
					return err
				}
				if opts.DryRun {
					return nil
				}
				return printList(out, items)
			})
		},
	}

	addQueryFlags(cmd, opts)
	cmd.Flags().StringVar(&by, "by", "", "property to list instead of whole documents")

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}
	var set string

	cmd := &cobra.Command{
		Use:     "update <collection>",
		Short:   "Update matching documents",
		Example: `  docquery update users --where "name = Donald" --set '{"age":31}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data any
			if err := json.Unmarshal([]byte(set), &data); err != nil {
				return fmt.Errorf("invalid --set JSON: %w", err)
			}

			return runQuery(cmd, opts, args[0], func(b *query.Builder, out io.Writer) error {
				res, err := b.Update(cmd.Context(), data)
				if err != nil {
					return err
				}
				return opts.print(out, res)
			})
		},
	}

	addQueryFlags(cmd, opts)
	cmd.Flags().StringVar(&set, "set", "", "changes as a JSON object")
	cmd.MarkFlagRequired("set") //nolint:errcheck

	return cmd
}

func addQueryFlags(cmd *cobra.Command, opts *QueryOptions) {
	cmd.Flags().StringSliceVar(&opts.Select, "select", nil, "fields to return")
	cmd.Flags().StringSliceVar(&opts.Hidden, "hidden", nil, "fields to leave out")
	cmd.Flags().StringArrayVarP(&opts.Where, "where", "w", nil, `filter such as "age >= 18" (repeatable, AND)`)
	cmd.Flags().StringArrayVar(&opts.OrWhere, "or-where", nil, "alternative filter (repeatable, OR)")
	cmd.Flags().StringVar(&opts.Having, "having", "", "filter applied after grouping")
	cmd.Flags().StringSliceVar(&opts.GroupBy, "group-by", nil, "fields to group by")
	cmd.Flags().StringVarP(&opts.Sort, "sort", "s", "", `sort field, "-field" or "field desc" for descending`)
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", -1, "maximum number of documents")
	cmd.Flags().IntVar(&opts.Skip, "skip", -1, "number of documents to skip")
}

func runQuery(cmd *cobra.Command, opts *QueryOptions, collection string, fn func(*query.Builder, io.Writer) error) error {
	return withDatabase(cmd.Context(), opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(db *client.Database) error {
		b := db.Query().From(collection)
		if err := opts.apply(b); err != nil {
			return err
		}
		return fn(b, cmd.OutOrStdout())
	})
}

// apply copies the query flags onto b.
func (opts *QueryOptions) apply(b *query.Builder) error {
	if len(opts.Select) > 0 {
		b.Select(opts.Select...)
	}
	if len(opts.Hidden) > 0 {
		b.Hidden(opts.Hidden...)
	}

	for _, w := range opts.Where {
		c, err := parser.ParseCondition(w)
		if err != nil {
			return err
		}
		b.Where(c.Field, c.Operator, c.Value)
	}

	for _, w := range opts.OrWhere {
		c, err := parser.ParseCondition(w)
		if err != nil {
			return err
		}
		b.OrWhere(c.Field, c.Operator, c.Value)
	}

	if len(opts.GroupBy) > 0 {
		b.GroupBy(opts.GroupBy...)
	}

	if opts.Having != "" {
		c, err := parser.ParseCondition(opts.Having)
		if err != nil {
			return err
		}
		b.Having(c.Field, c.Operator, c.Value)
	}

	if opts.Sort != "" {
		field, dir, err := parser.ParseSort(opts.Sort)
		if err != nil {
			return err
		}
		b.OrderBy(field, dir)
	}

	if opts.Limit >= 0 {
		b.Limit(opts.Limit)
	}
	if opts.Skip >= 0 {
		b.Skip(opts.Skip)
	}

	return b.Err()
}

func (opts *RootOptions) print(out io.Writer, res json.RawMessage) error {
	if opts.DryRun {
		return nil
	}
	return printJSON(out, res)
}
