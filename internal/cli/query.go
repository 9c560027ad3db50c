package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benoitc/couchbase-lite-core/internal/store"
	"github.com/benoitc/couchbase-lite-core/internal/translator"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	DBPath string
	Where  string
	Sort   string
	Params []string
}

// QueryResultDoc is one matched document in a query response.
type QueryResultDoc struct {
	Key      string `json:"key"`
	Sequence int64  `json:"sequence"`
	Body     string `json:"body"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a JSON query against a document database",
		Long: `Translate a JSON where/sort expression and execute it.

Placeholder bindings in the query ([name] values) are supplied with
repeated --param name=value flags.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the document database (required)")
	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "where predicate JSON")
	cmd.Flags().StringVarP(&opts.Sort, "sort", "s", "", "sort spec JSON")
	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "placeholder binding name=value (repeatable)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	params, err := parseParams(opts.Params)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	s, err := store.Open(opts.DBPath)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}
	defer s.Close()

	if opts.Verbose {
		if sqlText, err := s.CompileSelect([]byte(opts.Where), []byte(opts.Sort)); err == nil {
			formatter.VerboseLog("SQL: %s", sqlText)
		}
	}

	docs, err := s.Query(cmd.Context(), []byte(opts.Where), []byte(opts.Sort), params)
	if err != nil {
		if translator.IsInvalidQuery(err) {
			_ = formatter.Error(ErrCodeInvalidQuery, err.Error(), nil)
			return NewExitError(ExitFailure, err.Error())
		}
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	return outputQueryResults(formatter, docs)
}

// parseParams converts repeated name=value flags into a binding map.
// Values that parse as numbers bind numerically, everything else binds
// as text.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --param %q: expected name=value", pair)
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			params[name] = n
		} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
			params[name] = f
		} else {
			params[name] = raw
		}
	}
	return params, nil
}

// outputQueryResults prints the matched documents.
func outputQueryResults(formatter *OutputFormatter, docs []store.Document) error {
	if formatter.Format == "json" {
		results := make([]QueryResultDoc, len(docs))
		for i, doc := range docs {
			results[i] = QueryResultDoc{Key: doc.Key, Sequence: doc.Sequence, Body: string(doc.Body)}
		}
		return formatter.Success(results)
	}

	fmt.Fprintf(formatter.Writer, "%d document(s)\n", len(docs))
	for _, doc := range docs {
		fmt.Fprintf(formatter.Writer, "%s\t%s\n", doc.Key, doc.Body)
	}
	return nil
}
