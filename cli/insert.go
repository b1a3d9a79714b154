package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thisisjab/docquery/client"
)

// InsertOptions holds flags for the insert command.
type InsertOptions struct {
	*RootOptions
	Data    string
	Options string
	Batch   bool
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InsertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "insert <collection>",
		Short: "Insert one document, or a list of them with --batch",
		Example: `  docquery insert users --data '{"name":"Donald"}'
  docquery insert users --batch --data '[{"name":"Huey"},{"name":"Dewey"}]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data any
			if err := json.Unmarshal([]byte(opts.Data), &data); err != nil {
				return fmt.Errorf("invalid --data JSON: %w", err)
			}

			var options []client.InsertOptions
			if opts.Options != "" {
				var o client.InsertOptions
				if err := json.Unmarshal([]byte(opts.Options), &o); err != nil {
					return fmt.Errorf("invalid --options JSON: %w", err)
				}
				options = append(options, o)
			}

			return withDatabase(cmd.Context(), opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(db *client.Database) error {
				var doc *client.DocumentBuilder
				if opts.Batch {
					doc = db.InsertMany(data, options...)
				} else {
					doc = db.Insert(data, options...)
				}

				res, err := doc.Into(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "document, or list of documents with --batch, as JSON")
	cmd.Flags().StringVar(&opts.Options, "options", "", "insert options as a JSON object")
	cmd.Flags().BoolVar(&opts.Batch, "batch", false, "insert a list of documents")
	cmd.MarkFlagRequired("data") //nolint:errcheck

	return cmd
}
