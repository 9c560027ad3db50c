package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/benoitc/couchbase-lite-core/internal/translator"
	"github.com/benoitc/couchbase-lite-core/internal/value"
)

// RunWithGolden translates a scenario and compares the result against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files serve as the source of truth for the emitted SQL: a
// scenario that should fail records the error text, a successful one
// records the three clauses and any discovered FTS tables.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	snapshot := runScenario(scenario)
	if _, failed := snapshot["error"]; failed != scenario.WantError {
		return fmt.Errorf("scenario %q: want_error is %v, translation error: %v",
			scenario.Name, scenario.WantError, snapshot["error"])
	}

	snapshotJSON, err := value.MarshalCanonical(snapshot)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, snapshotJSON)

	return nil
}

// runScenario builds the snapshot map for one scenario.
func runScenario(scenario *Scenario) map[string]any {
	qp := translator.New(scenario.Table, scenario.BodyColumn)
	err := qp.ParseJSON([]byte(scenario.Where), []byte(scenario.Sort))

	snapshot := map[string]any{
		"scenario_name": scenario.Name,
	}
	if err != nil {
		snapshot["error"] = err.Error()
		return snapshot
	}

	snapshot["where"] = qp.WhereClause()
	snapshot["from"] = qp.FromClause()
	snapshot["order_by"] = qp.OrderBy()
	if names := qp.FTSTableNames(); len(names) > 0 {
		snapshot["fts_tables"] = names
	}
	return snapshot
}
