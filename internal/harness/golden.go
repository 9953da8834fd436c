package harness

import (
	"bytes"
	"fmt"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/modelkit/modelkit/internal/codec"
)

// RunWithGolden executes a scenario, verifies its assertions, and compares
// the encoded documents against a golden file. The golden file is stored
// in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if err := Verify(result, scenario); err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares a run result's documents against a golden file.
// Every registered resource is encoded as JSON, concatenated in URI order
// under a header line per document.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	resources := result.Set.Resources()
	sort.Slice(resources, func(i, j int) bool {
		return resources[i].URI() < resources[j].URI()
	})

	var buf bytes.Buffer
	for _, res := range resources {
		body, err := codec.EncodeJSON(res)
		if err != nil {
			return fmt.Errorf("encode %s: %w", res.URI(), err)
		}
		fmt.Fprintf(&buf, "=== %s ===\n", res.URI())
		buf.Write(body)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, buf.Bytes())
	return nil
}
