// internal/wizard/flows.go
package wizard

import (
	_ "embed"
	"fmt"

	"application-wizard/internal/models"
	"application-wizard/pkg/registry"
)

//go:embed flows.json
var builtinFlows []byte

// LoadFlows returns the registry at path, or the built-in one when path is empty.
func LoadFlows(path string) (*registry.FlowRegistry, error) {
	var (
		reg *registry.FlowRegistry
		err error
	)
	if path == "" {
		reg, err = registry.Parse(builtinFlows)
	} else {
		reg, err = registry.LoadRegistry(path)
	}
	if err != nil {
		return nil, err
	}
	if err := checkSteps(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// BuiltinFlows parses the embedded registry. It panics on a broken build.
func BuiltinFlows() *registry.FlowRegistry {
	reg, err := LoadFlows("")
	if err != nil {
		panic(fmt.Sprintf("embedded flows.json: %v", err))
	}
	return reg
}

// checkSteps rejects step names and variants the core does not know.
func checkSteps(reg *registry.FlowRegistry) error {
	for _, f := range reg.Flows {
		for _, s := range f.Steps {
			if !models.IsKnownStep(s.Name) {
				return fmt.Errorf("flow %s: unknown step %q", f.ID, s.Name)
			}
		}
		if f.Variant != "" {
			if _, ok := models.Variant(f.Variant).Params(); !ok {
				return fmt.Errorf("flow %s: unknown variant %q", f.ID, f.Variant)
			}
		}
	}
	variants := []string{reg.Variants.WithAccount, reg.Variants.WithoutAccount}
	for _, v := range reg.Variants.ByEmployer {
		variants = append(variants, v)
	}
	for _, v := range variants {
		if _, ok := models.Variant(v).Params(); !ok {
			return fmt.Errorf("variant table: unknown variant %q", v)
		}
	}
	return nil
}
