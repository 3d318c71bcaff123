package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/spyglass-go/spyglass/component"
	"github.com/spyglass-go/spyglass/value"
)

// TraceSnapshot captures the complete trace of a scenario run for golden
// comparison. Serialized as canonical JSON so it is byte-stable.
type TraceSnapshot struct {
	ScenarioName string
	RunToken     string
	Trace        []TraceEvent
}

// Value converts the snapshot into a value object for canonical
// serialization.
func (s *TraceSnapshot) Value() value.Object {
	trace := make(value.Array, len(s.Trace))
	for i, ev := range s.Trace {
		trace[i] = ev.eventValue()
	}
	return value.Object{
		"scenario":  value.String(s.ScenarioName),
		"run_token": value.String(s.RunToken),
		"trace":     trace,
	}
}

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/golden/{scenario.Name}.golden. Regenerate goldens
// with:
//
//	go test ./harness -update
//
// A scenario without a pinned run_token gets "run-golden" so the snapshot
// stays deterministic. Returns the run result so callers can also assert on
// it directly.
func RunWithGolden(t *testing.T, def *component.Definition, scenario *Scenario) *Result {
	t.Helper()

	opts := Options{Tokens: NewFixedGenerator("run-golden")}
	result, err := RunWith(def, scenario, opts)
	if err != nil {
		t.Fatalf("scenario %s failed to run: %v", scenario.Name, err)
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		RunToken:     result.RunToken,
		Trace:        result.Trace,
	}
	data, err := value.MarshalCanonical(snapshot.Value())
	if err != nil {
		t.Fatalf("scenario %s: failed to serialize trace snapshot: %v", scenario.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result
}
