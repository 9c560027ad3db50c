package cli

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
	"github.com/spf13/cobra"

	"github.com/benoitc/couchbase-lite-core/internal/translator"
)

//go:embed query.cue
var querySchema string

// ValidationIssue is one problem found in a query document.
type ValidationIssue struct {
	Source  string `json:"source"`  // "where" | "sort"
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Where string
	Sort  string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a query without translating it",
		Long: `Validate a JSON where/sort expression against the query schema.

Checks the document shape against the CUE schema of the query language,
then dry-runs the translator for operator-level rules. Nothing is
emitted; use translate to see the SQL.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "where predicate JSON")
	cmd.Flags().StringVarP(&opts.Sort, "sort", "s", "", "sort spec JSON")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	issues, err := ValidateQuery([]byte(opts.Where), []byte(opts.Sort))
	if err != nil {
		_ = formatter.Error(ErrCodeSchema, err.Error(), nil)
		return NewExitError(ExitCommandError, err.Error())
	}

	if len(issues) > 0 {
		return outputValidationIssues(formatter, issues)
	}
	return outputValidateSuccess(formatter)
}

// ValidateQuery checks a where/sort pair against the embedded CUE
// schema, then dry-runs the translator for the rules the schema cannot
// express. Returns the issues found; the error return is reserved for a
// broken schema.
func ValidateQuery(whereJSON, sortJSON []byte) ([]ValidationIssue, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(querySchema, cue.Filename("query.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile query schema: %w", err)
	}

	var issues []ValidationIssue
	issues = append(issues, unifyAgainst(ctx, schema, "#Predicate", "where", whereJSON)...)
	issues = append(issues, unifyAgainst(ctx, schema, "#Sort", "sort", sortJSON)...)

	// Operator-level checks: the translator is the authority.
	if len(issues) == 0 {
		qp := translator.New("kv_default", "")
		if err := qp.ParseJSON(whereJSON, nil); err != nil {
			issues = append(issues, ValidationIssue{Source: "where", Message: err.Error()})
		} else if err := qp.ParseJSON(whereJSON, sortJSON); err != nil {
			issues = append(issues, ValidationIssue{Source: "sort", Message: err.Error()})
		}
	}
	return issues, nil
}

// unifyAgainst unifies a JSON document with one schema definition and
// collects the unification errors.
func unifyAgainst(ctx *cue.Context, schema cue.Value, definition, source string, data []byte) []ValidationIssue {
	if len(data) == 0 {
		return nil
	}

	expr, err := cuejson.Extract(source+".json", data)
	if err != nil {
		return []ValidationIssue{{Source: source, Message: fmt.Sprintf("not valid JSON: %v", err)}}
	}

	def := schema.LookupPath(cue.ParsePath(definition))
	if err := def.Err(); err != nil {
		return []ValidationIssue{{Source: source, Message: err.Error()}}
	}

	unified := def.Unify(ctx.BuildExpr(expr))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var issues []ValidationIssue
		for _, e := range cueerrors.Errors(err) {
			issues = append(issues, ValidationIssue{Source: source, Message: e.Error()})
		}
		return issues
	}
	return nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintln(formatter.Writer, "✓ Query valid")
	return nil
}

// outputValidationIssues outputs validation failures.
func outputValidationIssues(formatter *OutputFormatter, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		_ = formatter.Error(ErrCodeSchema, issues[0].Message, ValidationResult{
			Valid:  false,
			Issues: issues,
		})
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", issue.Source, issue.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
}
