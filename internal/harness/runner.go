package harness

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/modelkit/modelkit/internal/compiler"
	"github.com/modelkit/modelkit/internal/model"
	"github.com/modelkit/modelkit/internal/resource"
	"github.com/modelkit/modelkit/internal/schema"
	"github.com/modelkit/modelkit/internal/testutil"
)

// Result is the object graph a scenario run produced, indexed by the names
// the scenario declared.
type Result struct {
	Set       *resource.Set
	Package   *schema.Package
	Objects   map[string]*model.Object
	Resources map[string]*resource.Resource

	names  map[model.ID]string
	owners map[string]*resource.Resource
	logger *slog.Logger
}

// Run executes a scenario and returns the resulting graph. Assertions are
// not evaluated here; call Verify on the result.
//
// Execution flow:
//  1. Compile the inline metamodel (if any) and register it on a fresh set.
//  2. Create resources and objects in declaration order. Objects receive
//     sequential ids so runs are reproducible.
//  3. Apply declared feature values with plain writes, the way a decoded
//     document arrives: no opposite synchronisation.
//  4. Install URI mappings, then apply steps through each owning
//     resource's mutator, which does synchronise opposites.
func Run(scenario *Scenario) (*Result, error) {
	result := &Result{
		Objects:   make(map[string]*model.Object),
		Resources: make(map[string]*resource.Resource),
		names:     make(map[model.ID]string),
		owners:    make(map[string]*resource.Resource),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	if scenario.Metamodel != "" {
		pkg, err := compileInlineMetamodel(scenario.Metamodel)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		result.Package = pkg
	}

	result.Set = resource.NewSet(nil)
	if result.Package != nil {
		result.Set.RegisterMetamodel(result.Package)
	}

	// First pass creates every object so features declared ahead of their
	// target still resolve in the second pass.
	seq := uint64(0)
	for _, rs := range scenario.Resources {
		res := result.Set.CreateResource(rs.URI)
		result.Resources[rs.URI] = res
		for _, os := range rs.Objects {
			class, err := result.class(os.Class)
			if err != nil {
				return nil, fmt.Errorf("object %s: %w", os.Name, err)
			}
			seq++
			o := model.NewObjectWithID(testutil.SequenceID(seq), class)
			res.Add(o)
			result.Objects[os.Name] = o
			result.names[o.ID()] = os.Name
			result.owners[os.Name] = res
		}
	}

	for _, rs := range scenario.Resources {
		for _, os := range rs.Objects {
			o := result.Objects[os.Name]
			// YAML maps lose declaration order; apply in name order so the
			// feature store's key order, and with it encoded output, is stable.
			for _, feature := range sortedKeys(os.Features) {
				v, err := result.value(os.Features[feature])
				if err != nil {
					return nil, fmt.Errorf("object %s, feature %s: %w", os.Name, feature, err)
				}
				o.Set(feature, v)
			}
		}
	}

	for _, rule := range scenario.URIMaps {
		result.Set.MapURI(rule.From, rule.To)
	}

	for i, step := range scenario.Steps {
		if err := result.apply(&step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	result.logger.Debug("scenario executed",
		"scenario", scenario.Name,
		"objects", len(result.Objects),
		"steps", len(scenario.Steps))
	return result, nil
}

// Verify evaluates the scenario's assertions against a run result and
// returns the first failure.
func Verify(result *Result, scenario *Scenario) error {
	for i, a := range scenario.Assertions {
		if err := result.check(&a); err != nil {
			return fmt.Errorf("assertions[%d] (%s): %w", i, a.Type, err)
		}
	}
	return nil
}

// compileInlineMetamodel compiles a CUE source string carrying a top-level
// "metamodel" field.
func compileInlineMetamodel(src string) (*schema.Package, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile metamodel CUE: %w", err)
	}
	mv := v.LookupPath(cue.ParsePath("metamodel"))
	if !mv.Exists() {
		return nil, fmt.Errorf("metamodel CUE has no top-level \"metamodel\" field")
	}
	return compiler.CompileMetamodel(mv)
}

func (r *Result) class(name string) (*schema.Class, error) {
	if name == "" {
		return nil, nil
	}
	if r.Package == nil {
		return nil, fmt.Errorf("class %q declared but scenario has no metamodel", name)
	}
	c := r.Package.Class(name)
	if c == nil {
		return nil, fmt.Errorf("unknown class %q", name)
	}
	return c, nil
}

// value converts a YAML scalar into a model value. Strings beginning with
// "@" become references to the named object.
func (r *Result) value(raw any) (model.Value, error) {
	switch x := raw.(type) {
	case string:
		if strings.HasPrefix(x, "@") {
			o, err := r.object(x)
			if err != nil {
				return nil, err
			}
			return model.Ref(o.ID()), nil
		}
		return model.String(x), nil
	case int:
		return model.Int(x), nil
	case int64:
		return model.Int(x), nil
	case bool:
		return model.Bool(x), nil
	case float64:
		return model.Float(x), nil
	case []any:
		ids := make(model.RefList, 0, len(x))
		for _, e := range x {
			name, ok := e.(string)
			if !ok || !strings.HasPrefix(name, "@") {
				return nil, fmt.Errorf("list values may only hold object references, got %v", e)
			}
			o, err := r.object(name)
			if err != nil {
				return nil, err
			}
			ids = append(ids, o.ID())
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("unsupported value %v (%T)", raw, raw)
	}
}

// object resolves an "@name" reference to a declared object.
func (r *Result) object(ref string) (*model.Object, error) {
	name := strings.TrimPrefix(ref, "@")
	o, ok := r.Objects[name]
	if !ok {
		return nil, fmt.Errorf("unknown object %q", name)
	}
	return o, nil
}

func (r *Result) apply(step *Step) error {
	if step.RemoveResource != "" {
		res := r.Set.GetResource(step.RemoveResource)
		if res == nil {
			return fmt.Errorf("remove_resource: no resource %q", step.RemoveResource)
		}
		r.Set.RemoveResource(res)
		return nil
	}

	var m *MutationStep
	var kind string
	switch {
	case step.Set != nil:
		m, kind = step.Set, "set"
	case step.Add != nil:
		m, kind = step.Add, "add"
	case step.Remove != nil:
		m, kind = step.Remove, "remove"
	case step.Unset != nil:
		m, kind = step.Unset, "unset"
	default:
		return fmt.Errorf("empty step")
	}

	o, err := r.object("@" + m.Object)
	if err != nil {
		return err
	}
	res := r.owners[m.Object]
	feature := o.Feature(m.Feature)

	// Declared features mutate through the resource's mutator so opposite
	// references stay in sync; undeclared ones are plain writes.
	switch kind {
	case "set":
		v, err := r.value(m.Value)
		if err != nil {
			return err
		}
		if feature != nil {
			res.Mutator().Set(o, feature, v)
		} else {
			o.Set(m.Feature, v)
		}
	case "unset":
		if feature != nil {
			res.Mutator().Unset(o, feature)
		} else {
			o.Unset(m.Feature)
		}
	case "add", "remove":
		if feature == nil {
			return fmt.Errorf("%s: feature %q is not declared on %s", kind, m.Feature, m.Object)
		}
		target, err := r.target(m.Value)
		if err != nil {
			return err
		}
		if kind == "add" {
			res.Mutator().Add(o, feature, target)
		} else {
			res.Mutator().Remove(o, feature, target)
		}
	}
	return nil
}

// target extracts the object id an add/remove step points at.
func (r *Result) target(raw any) (model.ID, error) {
	name, ok := raw.(string)
	if !ok || !strings.HasPrefix(name, "@") {
		return model.NilID, fmt.Errorf("value must be an \"@name\" object reference, got %v", raw)
	}
	o, err := r.object(name)
	if err != nil {
		return model.NilID, err
	}
	return o.ID(), nil
}

func (r *Result) check(a *Assertion) error {
	switch a.Type {
	case AssertFeature:
		o, err := r.object("@" + a.Object)
		if err != nil {
			return err
		}
		want, err := r.value(a.Value)
		if err != nil {
			return err
		}
		got := o.Get(a.Feature)
		if !model.Equal(want, got) {
			return fmt.Errorf("%s.%s = %v, want %v", a.Object, a.Feature, r.describe(got), r.describe(want))
		}
	case AssertFeatureUnset:
		o, err := r.object("@" + a.Object)
		if err != nil {
			return err
		}
		if o.IsSet(a.Feature) {
			return fmt.Errorf("%s.%s is set to %v, want unset", a.Object, a.Feature, r.describe(o.Get(a.Feature)))
		}
	case AssertResolve:
		got := r.Set.ResolveByURI(a.URI)
		if a.Target == "" {
			if got != nil {
				return fmt.Errorf("resolve %q = %s, want nothing", a.URI, r.name(got))
			}
			return nil
		}
		want, err := r.object("@" + a.Target)
		if err != nil {
			return err
		}
		if got == nil {
			return fmt.Errorf("resolve %q yielded nothing, want %s", a.URI, a.Target)
		}
		if !got.Same(want) {
			return fmt.Errorf("resolve %q = %s, want %s", a.URI, r.name(got), a.Target)
		}
	case AssertRoots:
		res := r.Set.GetResource(a.URI)
		if res == nil {
			return fmt.Errorf("no resource %q", a.URI)
		}
		roots := res.RootObjects()
		names := make([]string, len(roots))
		for i, o := range roots {
			names[i] = r.name(o)
		}
		if len(names) != len(a.Objects) {
			return fmt.Errorf("roots of %q = %v, want %v", a.URI, names, a.Objects)
		}
		for i := range names {
			if names[i] != a.Objects[i] {
				return fmt.Errorf("roots of %q = %v, want %v", a.URI, names, a.Objects)
			}
		}
	case AssertInstances:
		if r.Package == nil {
			return fmt.Errorf("instances assertion needs a metamodel")
		}
		class := r.Package.Class(a.Class)
		if class == nil {
			return fmt.Errorf("unknown class %q", a.Class)
		}
		got := len(r.Set.AllInstancesOf(class))
		if got != a.Count {
			return fmt.Errorf("instances of %s = %d, want %d", a.Class, got, a.Count)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// name reports the declared name of an object, or its id for objects the
// scenario did not declare.
func (r *Result) name(o *model.Object) string {
	if n, ok := r.names[o.ID()]; ok {
		return n
	}
	return o.ID().String()
}

// describe renders a value for failure messages, substituting declared
// names for reference ids.
func (r *Result) describe(v model.Value) string {
	switch x := v.(type) {
	case nil:
		return "<unset>"
	case model.Ref:
		if n, ok := r.names[model.ID(x)]; ok {
			return "@" + n
		}
	case model.RefList:
		parts := make([]string, len(x))
		for i, id := range x {
			if n, ok := r.names[id]; ok {
				parts[i] = "@" + n
			} else {
				parts[i] = id.String()
			}
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprintf("%v", v)
}
