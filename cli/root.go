package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	EnvFile    string
	Endpoint   string
	Token      string
	Transform  string
	DryRun     bool
}

// NewRootCommand creates the root command of the docquery CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "docquery",
		Short: "Query a document database over HTTP",
		Long: `docquery builds JSON queries and sends them to a document database endpoint.

Connection settings come from the config file, then DOCQUERY_* environment
variables (a .env file is loaded first), then flags.

Examples:

  docquery fetch users --where "age >= 18" --sort -createdAt --limit 10
  docquery list users --by name
  docquery insert users --data '{"name":"Donald"}'
  docquery count posts --where "published = true" --dry-run`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(opts.EnvFile)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", defaultEnvFile, "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.Endpoint, "endpoint", "", "database endpoint URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "bearer token")
	cmd.PersistentFlags().StringVar(&opts.Transform, "transform", "", "lua script applied to query results")
	cmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "print requests instead of sending them")

	// Add subcommands
	for _, q := range queryCommands {
		cmd.AddCommand(newQueryCommand(opts, q))
	}
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))

	return cmd
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing default file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err != nil && path == defaultEnvFile && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot load env file %s: %w", path, err)
	}

	return nil
}
