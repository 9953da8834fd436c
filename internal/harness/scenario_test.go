package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenarioYAML = `
name: wiring
description: "Writer and book wired through an opposite pair"
metamodel: |
  metamodel: {
    name:  "library"
    nsURI: "http://example.org/library"
    classes: {
      Writer: {
        references: {
          books: {type: "Book", upper: -1, opposite: "authors"}
        }
      }
      Book: {
        references: {
          authors: {type: "Writer", upper: -1, opposite: "books"}
        }
      }
    }
  }
resources:
  - uri: test://lib.json
    objects:
      - name: writer
        class: Writer
      - name: book
        class: Book
steps:
  - add: {object: writer, feature: books, value: "@book"}
assertions:
  - type: feature
    object: book
    feature: authors
    value: ["@writer"]
`

func TestParseScenario_Valid(t *testing.T) {
	scenario, err := ParseScenario([]byte(validScenarioYAML))
	require.NoError(t, err)

	assert.Equal(t, "wiring", scenario.Name)
	assert.Len(t, scenario.Resources, 1)
	assert.Len(t, scenario.Resources[0].Objects, 2)
	assert.Len(t, scenario.Steps, 1)
	require.NotNil(t, scenario.Steps[0].Add)
	assert.Equal(t, "writer", scenario.Steps[0].Add.Object)
	assert.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertFeature, scenario.Assertions[0].Type)
}

func TestLoadScenario_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wiring.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenarioYAML), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "wiring", scenario.Name)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	content := `
name: typo
description: "A typoed field should not be silently dropped"
resources:
  - uri: test://a.json
assertons:
  - type: feature
`
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: "x"
resources: [{uri: "test://a.json"}]
assertions: [{type: instances, class: Book}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: x
resources: [{uri: "test://a.json"}]
assertions: [{type: instances, class: Book}]
`,
			wantErr: "description is required",
		},
		{
			name: "missing resources",
			content: `
name: x
description: "x"
assertions: [{type: instances, class: Book}]
`,
			wantErr: "resources list is required",
		},
		{
			name: "missing assertions",
			content: `
name: x
description: "x"
resources: [{uri: "test://a.json"}]
`,
			wantErr: "assertions list is required",
		},
		{
			name: "duplicate object name",
			content: `
name: x
description: "x"
resources:
  - uri: test://a.json
    objects: [{name: o}, {name: o}]
assertions: [{type: instances, class: Book}]
`,
			wantErr: `duplicate object name "o"`,
		},
		{
			name: "step with two mutations",
			content: `
name: x
description: "x"
resources:
  - uri: test://a.json
    objects: [{name: o}]
steps:
  - set: {object: o, feature: f, value: 1}
    add: {object: o, feature: f, value: "@o"}
assertions: [{type: feature_unset, object: o, feature: f}]
`,
			wantErr: "exactly one of",
		},
		{
			name: "step with no mutation",
			content: `
name: x
description: "x"
resources:
  - uri: test://a.json
steps:
  - {}
assertions: [{type: instances, class: Book}]
`,
			wantErr: "exactly one of",
		},
		{
			name: "unknown assertion type",
			content: `
name: x
description: "x"
resources: [{uri: "test://a.json"}]
assertions: [{type: whatever}]
`,
			wantErr: `unknown assertion type "whatever"`,
		},
		{
			name: "resolve without uri",
			content: `
name: x
description: "x"
resources: [{uri: "test://a.json"}]
assertions: [{type: resolve, target: o}]
`,
			wantErr: "uri is required for resolve",
		},
		{
			name: "instances without class",
			content: `
name: x
description: "x"
resources: [{uri: "test://a.json"}]
assertions: [{type: instances, count: 1}]
`,
			wantErr: "class is required for instances",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
