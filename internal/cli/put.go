package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benoitc/couchbase-lite-core/internal/store"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	DBPath string
	Key    string
}

// PutResult reports the stored document.
type PutResult struct {
	Key      string `json:"key"`
	Sequence int64  `json:"sequence"`
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <body-json>",
		Short: "Store a JSON document",
		Long: `Store a JSON document body.

Without --key a fresh UUID key is generated. Replacing an existing key
assigns a new sequence.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the document database (required)")
	cmd.Flags().StringVarP(&opts.Key, "key", "k", "", "document key (generated when empty)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runPut(opts *PutOptions, body string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	s, err := store.Open(opts.DBPath)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer s.Close()

	doc, err := s.Put(cmd.Context(), opts.Key, []byte(body))
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitFailure, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(PutResult{Key: doc.Key, Sequence: doc.Sequence})
	}
	fmt.Fprintf(formatter.Writer, "stored %s (sequence %d)\n", doc.Key, doc.Sequence)
	return nil
}
