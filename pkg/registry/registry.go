// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

func LoadRegistry(path string) (*FlowRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a registry document.
func Parse(data []byte) (*FlowRegistry, error) {
	var reg FlowRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode flow registry: %w", err)
	}
	if problems := reg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid flow registry: %s", strings.Join(problems, "; "))
	}
	return &reg, nil
}

// Validate returns every structural problem found, or nil.
func (r *FlowRegistry) Validate() []string {
	var problems []string
	if len(r.Flows) == 0 {
		problems = append(problems, "no flows defined")
	}

	seen := map[string]bool{}
	intents := map[string]string{}
	defaults := 0
	for i, f := range r.Flows {
		if f.ID == "" {
			problems = append(problems, fmt.Sprintf("flow %d: missing id", i))
			continue
		}
		if seen[f.ID] {
			problems = append(problems, fmt.Sprintf("flow %s: duplicate id", f.ID))
		}
		seen[f.ID] = true
		if f.Default {
			defaults++
		}
		if len(f.Steps) == 0 {
			problems = append(problems, fmt.Sprintf("flow %s: no steps", f.ID))
		}
		for _, in := range f.Intents {
			if other, ok := intents[in]; ok {
				problems = append(problems, fmt.Sprintf("intent %s: claimed by %s and %s", in, other, f.ID))
			}
			intents[in] = f.ID
		}

		steps := map[string]bool{}
		for j, s := range f.Steps {
			if s.Name == "" {
				problems = append(problems, fmt.Sprintf("flow %s step %d: missing name", f.ID, j))
				continue
			}
			if steps[s.Name] {
				problems = append(problems, fmt.Sprintf("flow %s: step %s listed twice", f.ID, s.Name))
			}
			steps[s.Name] = true
		}
	}
	if defaults > 1 {
		problems = append(problems, "more than one default flow")
	}
	if r.Variants.WithAccount == "" || r.Variants.WithoutAccount == "" {
		problems = append(problems, "variant table needs withAccount and withoutAccount")
	}
	return problems
}

// Flow looks a flow up by id.
func (r *FlowRegistry) Flow(id string) (*Flow, bool) {
	for i := range r.Flows {
		if r.Flows[i].ID == id {
			return &r.Flows[i], true
		}
	}
	return nil, false
}

// FlowForIntent returns the flow that claims intent, else the default flow.
func (r *FlowRegistry) FlowForIntent(intent string) (*Flow, bool) {
	var fallback *Flow
	for i := range r.Flows {
		f := &r.Flows[i]
		for _, in := range f.Intents {
			if in == intent {
				return f, true
			}
		}
		if f.Default {
			fallback = f
		}
	}
	return fallback, fallback != nil
}

// ResolveVariant routes by employer category, then by account ownership.
func (r *FlowRegistry) ResolveVariant(employer string, hasAccount bool) string {
	if v, ok := r.Variants.ByEmployer[employer]; ok {
		return v
	}
	if hasAccount {
		return r.Variants.WithAccount
	}
	return r.Variants.WithoutAccount
}

// Matches reports whether attrs satisfy c. An empty condition matches.
func (c Condition) Matches(attrs map[string]string) bool {
	for attr, values := range c {
		v := attrs[attr]
		found := false
		for _, want := range values {
			if v == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Active reports whether the step belongs to the sequence for attrs.
func (s Step) Active(attrs map[string]string) bool {
	if len(s.When) > 0 {
		matched := false
		for _, c := range s.When {
			if c.Matches(attrs) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, c := range s.Unless {
		if c.Matches(attrs) {
			return false
		}
	}
	return true
}

// Sequence is the ordered list of active steps for attrs.
func (f *Flow) Sequence(attrs map[string]string) []Step {
	out := make([]Step, 0, len(f.Steps))
	for _, s := range f.Steps {
		if s.Active(attrs) {
			out = append(out, s)
		}
	}
	return out
}

// StepNames lists every step the flow can ever show.
func (f *Flow) StepNames() []string {
	names := make([]string, 0, len(f.Steps))
	for _, s := range f.Steps {
		names = append(names, s.Name)
	}
	return names
}

// Attributes lists every attribute the flow's conditions read, sorted.
func (f *Flow) Attributes() []string {
	set := map[string]struct{}{}
	for _, s := range f.Steps {
		for _, group := range [][]Condition{s.When, s.Unless} {
			for _, c := range group {
				for attr := range c {
					set[attr] = struct{}{}
				}
			}
		}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
