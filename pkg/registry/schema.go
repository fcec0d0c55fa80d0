// pkg/registry/schema.go
package registry

// FlowRegistry is the data-driven description of every wizard flow.
type FlowRegistry struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"lastUpdated"`
	Variants    VariantTable `json:"variants"`
	Flows       []Flow       `json:"flows"`
}

// VariantTable routes an applicant to a form variant. Employer categories
// are checked first, then account ownership.
type VariantTable struct {
	ByEmployer     map[string]string `json:"byEmployer"`
	WithAccount    string            `json:"withAccount"`
	WithoutAccount string            `json:"withoutAccount"`
}

type Flow struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Default     bool     `json:"default,omitempty"`
	Intents     []string `json:"intents"`
	// Variant pins the flow to one form variant instead of routing by employer.
	Variant string   `json:"variant,omitempty"`
	Steps   []Step   `json:"steps"`
	Tags    []string `json:"tags,omitempty"`
}

// Step is included when any When condition matches (or there are none)
// and no Unless condition matches.
type Step struct {
	Name     string      `json:"name"`
	Validate bool        `json:"validate,omitempty"`
	When     []Condition `json:"when,omitempty"`
	Unless   []Condition `json:"unless,omitempty"`
}

// Condition matches when every listed attribute holds one of its values.
type Condition map[string][]string
