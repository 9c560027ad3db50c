package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benoitc/couchbase-lite-core/internal/translator"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Table      string
	BodyColumn string
	Where      string
	Sort       string
}

// TranslationResult holds the compiled SQL clause fragments.
type TranslationResult struct {
	Where     string   `json:"where"`
	From      string   `json:"from"`
	OrderBy   string   `json:"order_by"`
	FTSTables []string `json:"fts_tables,omitempty"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a JSON query to SQL clauses",
		Long: `Translate a JSON where/sort expression to SQL clause fragments.

The where expression is a predicate object ({"age":{"$gte":21}}); the
sort expression is a property string or array of property strings.
Outputs the WHERE, FROM, and ORDER BY fragments plus any full-text
virtual tables the query references.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "kv_default", "document row table")
	cmd.Flags().StringVar(&opts.BodyColumn, "body-column", "", "document body column (default body)")
	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "where predicate JSON")
	cmd.Flags().StringVarP(&opts.Sort, "sort", "s", "", "sort spec JSON")

	return cmd
}

func runTranslate(opts *TranslateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	formatter.VerboseLog("Translating against table %s", opts.Table)

	qp := translator.New(opts.Table, opts.BodyColumn)
	if err := qp.ParseJSON([]byte(opts.Where), []byte(opts.Sort)); err != nil {
		return outputTranslateError(formatter, err)
	}

	result := &TranslationResult{
		Where:     qp.WhereClause(),
		From:      qp.FromClause(),
		OrderBy:   qp.OrderBy(),
		FTSTables: qp.FTSTableNames(),
	}
	return outputTranslateSuccess(formatter, result)
}

// outputTranslateSuccess outputs the compiled clauses.
func outputTranslateSuccess(formatter *OutputFormatter, result *TranslationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if result.Where != "" {
		fmt.Fprintf(formatter.Writer, "WHERE:    %s\n", result.Where)
	}
	fmt.Fprintf(formatter.Writer, "FROM:     %s\n", result.From)
	fmt.Fprintf(formatter.Writer, "ORDER BY: %s\n", result.OrderBy)
	for _, name := range result.FTSTables {
		fmt.Fprintf(formatter.Writer, "FTS:      %s\n", name)
	}
	return nil
}

// outputTranslateError reports a rejected query.
func outputTranslateError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var qe *translator.InvalidQueryError
	if errors.As(err, &qe) {
		code = ErrCodeInvalidQuery
	}
	_ = formatter.Error(code, err.Error(), nil)
	return NewExitError(ExitFailure, err.Error())
}
