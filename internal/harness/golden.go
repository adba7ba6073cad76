package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/diverge/internal/engine"
)

// AssertReportGolden checks a diverged run's rendered report against the
// golden file named after the scenario. Only scenarios with explicit
// operation lists should be golden-tested; seeded reports depend on the
// generator's draw order.
func AssertReportGolden(t *testing.T, sc Scenario, res *engine.RunResult) {
	t.Helper()
	if res == nil || res.Report == nil {
		t.Fatalf("scenario %s: no divergence report to assert", sc.Name)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, []byte(res.Report.Render()))
}
