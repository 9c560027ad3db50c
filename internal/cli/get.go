package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benoitc/couchbase-lite-core/internal/store"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	DBPath string
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "get <key>",
		Short:         "Fetch a document by key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the document database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runGet(opts *GetOptions, key string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	s, err := store.Open(opts.DBPath)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer s.Close()

	doc, err := s.Get(cmd.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return NewExitError(ExitFailure, err.Error())
	}
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(QueryResultDoc{Key: doc.Key, Sequence: doc.Sequence, Body: string(doc.Body)})
	}
	fmt.Fprintln(formatter.Writer, string(doc.Body))
	return nil
}
