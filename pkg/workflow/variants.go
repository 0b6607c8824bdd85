package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// The workflow format allows several fields to be a scalar, a list, or a
// mapping. Each shape is decoded once into a closed variant here; all
// downstream logic switches on the variant instead of re-checking YAML
// types ad hoc.

// StringOrSlice holds a field declared either as one string or as a list
// of strings (needs, environment names, trigger lists).
type StringOrSlice struct {
	Values []string
	IsList bool
}

func (s *StringOrSlice) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v string
		if err := node.Decode(&v); err != nil {
			return err
		}
		if v != "" {
			s.Values = []string{v}
		}
		return nil
	case yaml.SequenceNode:
		s.IsList = true
		return node.Decode(&s.Values)
	}
	return fmt.Errorf("expected string or list, got yaml kind %d", node.Kind)
}

// RunnerSpec is the runs-on declaration: a single label, a label list, or
// a runner-group mapping.
type RunnerSpec struct {
	Scalar  string
	Labels  []string
	Group   string
	IsList  bool
	IsGroup bool
}

// AllLabels returns every declared label regardless of shape.
func (r *RunnerSpec) AllLabels() []string {
	if r.IsList || r.IsGroup {
		return r.Labels
	}
	if r.Scalar != "" {
		return []string{r.Scalar}
	}
	return nil
}

// Empty reports whether runs-on was absent.
func (r *RunnerSpec) Empty() bool {
	return r.Scalar == "" && len(r.Labels) == 0 && r.Group == ""
}

func (r *RunnerSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&r.Scalar)
	case yaml.SequenceNode:
		r.IsList = true
		return node.Decode(&r.Labels)
	case yaml.MappingNode:
		r.IsGroup = true
		var m struct {
			Group  string        `yaml:"group"`
			Labels StringOrSlice `yaml:"labels"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		r.Group = m.Group
		r.Labels = m.Labels.Values
		return nil
	}
	return fmt.Errorf("unsupported runs-on shape (yaml kind %d)", node.Kind)
}

// TriggerSpec is the on: block: a single event name, a list of names, or a
// mapping of name to filter conditions.
type TriggerSpec struct {
	// Names holds trigger names in declaration order.
	Names []string
	// Filters holds per-trigger filter conditions for the mapping shape.
	// A trigger declared with a null body has a nil entry.
	Filters map[string]*TriggerFilter
}

// TriggerFilter is the subset of filter conditions the analysis inspects.
type TriggerFilter struct {
	Types    []string `yaml:"types"`
	Branches []string `yaml:"branches"`
	Paths    []string `yaml:"paths"`
}

func (t *TriggerSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v string
		if err := node.Decode(&v); err != nil {
			return err
		}
		if v != "" {
			t.Names = []string{v}
		}
		return nil
	case yaml.SequenceNode:
		return node.Decode(&t.Names)
	case yaml.MappingNode:
		t.Filters = make(map[string]*TriggerFilter)
		for i := 0; i < len(node.Content)-1; i += 2 {
			name := node.Content[i].Value
			t.Names = append(t.Names, name)
			body := node.Content[i+1]
			if body.Kind == yaml.MappingNode {
				filter := &TriggerFilter{}
				if err := body.Decode(filter); err != nil {
					return err
				}
				t.Filters[name] = filter
			} else {
				t.Filters[name] = nil
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported trigger shape (yaml kind %d)", node.Kind)
}

// EnvironmentSpec is the job environment binding: a name, a {name, url}
// mapping, or a list of either.
type EnvironmentSpec struct {
	// Names holds every bound environment name in declaration order.
	Names []string
}

func (e *EnvironmentSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v string
		if err := node.Decode(&v); err != nil {
			return err
		}
		if v != "" {
			e.Names = []string{v}
		}
		return nil
	case yaml.MappingNode:
		var m struct {
			Name string `yaml:"name"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		if m.Name != "" {
			e.Names = []string{m.Name}
		}
		return nil
	case yaml.SequenceNode:
		for _, item := range node.Content {
			var one EnvironmentSpec
			if err := one.UnmarshalYAML(item); err != nil {
				return err
			}
			e.Names = append(e.Names, one.Names...)
		}
		return nil
	}
	return fmt.Errorf("unsupported environment shape (yaml kind %d)", node.Kind)
}

// StrategySpec holds the matrix block of a job strategy.
type StrategySpec struct {
	Matrix *MatrixSpec `yaml:"matrix"`
}

// MatrixSpec is a declared build matrix: named axes plus include entries
// that may supply additional values for any axis.
type MatrixSpec struct {
	Axes    map[string][]interface{}
	Include []map[string]interface{}
}

func (m *MatrixSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("matrix must be a mapping (yaml kind %d)", node.Kind)
	}
	m.Axes = make(map[string][]interface{})
	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i].Value
		body := node.Content[i+1]
		switch key {
		case "include":
			if err := body.Decode(&m.Include); err != nil {
				return err
			}
		case "exclude":
			// exclusions never add runner candidates
		default:
			switch body.Kind {
			case yaml.SequenceNode:
				var values []interface{}
				if err := body.Decode(&values); err != nil {
					return err
				}
				m.Axes[key] = values
			case yaml.ScalarNode:
				var v interface{}
				if err := body.Decode(&v); err != nil {
					return err
				}
				m.Axes[key] = []interface{}{v}
			}
		}
	}
	return nil
}

// Values returns every candidate value for one matrix axis, including
// values contributed by include entries.
func (m *MatrixSpec) Values(key string) []interface{} {
	var out []interface{}
	out = append(out, m.Axes[key]...)
	for _, inc := range m.Include {
		if v, ok := inc[key]; ok {
			out = append(out, v)
		}
	}
	return out
}
