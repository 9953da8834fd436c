// Package harness runs conformance scenarios: YAML files that declare a
// metamodel, a set of documents, a sequence of mutations, and assertions
// over the resulting object graph. Scenarios double as executable
// documentation of the resolution and opposite-synchronisation rules.
package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; golden files use it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Metamodel is inline CUE source for the metamodel, compiled before
	// any resources are built. Empty means all objects are classless.
	Metamodel string `yaml:"metamodel,omitempty"`

	// Resources declares the documents and their initial objects.
	// Objects get deterministic sequential ids in declaration order, so
	// scenario output is stable across runs.
	Resources []ResourceSpec `yaml:"resources"`

	// URIMaps installs URI rewrite rules before steps run.
	URIMaps []URIMapRule `yaml:"uri_maps,omitempty"`

	// Steps are mutations applied in order through each resource's
	// opposite-synchronising mutator.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions validate the final object graph.
	Assertions []Assertion `yaml:"assertions"`
}

// ResourceSpec declares one document and its objects.
type ResourceSpec struct {
	URI     string       `yaml:"uri"`
	Objects []ObjectSpec `yaml:"objects,omitempty"`
}

// ObjectSpec declares one object. Feature values use plain YAML scalars;
// strings beginning with "@" reference another declared object by name,
// and lists of such strings build multi-valued references.
type ObjectSpec struct {
	Name     string         `yaml:"name"`
	Class    string         `yaml:"class,omitempty"`
	Features map[string]any `yaml:"features,omitempty"`
}

// URIMapRule rewrites a URI prefix.
type URIMapRule struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Step is a tagged union: exactly one field is set.
type Step struct {
	Set            *MutationStep `yaml:"set,omitempty"`
	Add            *MutationStep `yaml:"add,omitempty"`
	Remove         *MutationStep `yaml:"remove,omitempty"`
	Unset          *MutationStep `yaml:"unset,omitempty"`
	RemoveResource string        `yaml:"remove_resource,omitempty"`
}

// MutationStep names an object, a feature, and (except for unset) a value.
type MutationStep struct {
	Object  string `yaml:"object"`
	Feature string `yaml:"feature"`
	Value   any    `yaml:"value,omitempty"`
}

// Assertion validates the final graph.
type Assertion struct {
	// Type selects the assertion:
	// - "feature": object's feature equals value
	// - "feature_unset": object's feature holds no value
	// - "resolve": resolving uri yields target ("" expects no result)
	// - "roots": resource's root objects are exactly objects, in order
	// - "instances": the set holds count instances of class
	Type string `yaml:"type"`

	Object  string `yaml:"object,omitempty"`
	Feature string `yaml:"feature,omitempty"`
	Value   any    `yaml:"value,omitempty"`

	URI    string `yaml:"uri,omitempty"`
	Target string `yaml:"target,omitempty"`

	Objects []string `yaml:"objects,omitempty"`

	Class string `yaml:"class,omitempty"`
	Count int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFeature      = "feature"
	AssertFeatureUnset = "feature_unset"
	AssertResolve      = "resolve"
	AssertRoots        = "roots"
	AssertInstances    = "instances"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently skipping assertions.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML from memory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Resources) == 0 {
		return fmt.Errorf("resources list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	names := make(map[string]bool)
	for i, rs := range s.Resources {
		if rs.URI == "" {
			return fmt.Errorf("resources[%d]: uri is required", i)
		}
		for j, os := range rs.Objects {
			if os.Name == "" {
				return fmt.Errorf("resources[%d].objects[%d]: name is required", i, j)
			}
			if names[os.Name] {
				return fmt.Errorf("duplicate object name %q", os.Name)
			}
			names[os.Name] = true
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	set := 0
	for _, m := range []*MutationStep{step.Set, step.Add, step.Remove, step.Unset} {
		if m != nil {
			set++
			if m.Object == "" || m.Feature == "" {
				return fmt.Errorf("steps[%d]: object and feature are required", index)
			}
		}
	}
	if step.RemoveResource != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of set/add/remove/unset/remove_resource is required", index)
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertFeature:
		if a.Object == "" || a.Feature == "" {
			return fmt.Errorf("assertions[%d]: object and feature are required for feature", index)
		}
	case AssertFeatureUnset:
		if a.Object == "" || a.Feature == "" {
			return fmt.Errorf("assertions[%d]: object and feature are required for feature_unset", index)
		}
	case AssertResolve:
		if a.URI == "" {
			return fmt.Errorf("assertions[%d]: uri is required for resolve", index)
		}
	case AssertRoots:
		if a.URI == "" {
			return fmt.Errorf("assertions[%d]: uri is required for roots", index)
		}
	case AssertInstances:
		if a.Class == "" {
			return fmt.Errorf("assertions[%d]: class is required for instances", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for instances", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
