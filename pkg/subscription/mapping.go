package subscription

import (
	"errors"
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPlanIDs maps the processor's plan identifiers to tiers.
var DefaultPlanIDs = map[string]Plan{
	"plan_S9Dk9z7e6IH6EO": PlanLite,
}

// PlanMapping resolves processor plan ids to tiers. The zero value maps
// everything to free.
type PlanMapping struct {
	ids map[string]Plan
}

// NewPlanMapping builds a mapping from DefaultPlanIDs overlaid with extra.
func NewPlanMapping(extra map[string]Plan) (PlanMapping, error) {
	ids := maps.Clone(DefaultPlanIDs)
	for id, p := range extra {
		if !p.Valid() {
			return PlanMapping{}, fmt.Errorf("%w: plan id %q maps to %q", ErrInvalidPlan, id, p)
		}
		ids[id] = p
	}
	return PlanMapping{ids: ids}, nil
}

// Resolve returns the tier for a processor plan id. Unknown and empty ids
// resolve to free.
func (m PlanMapping) Resolve(externalPlanID string) Plan {
	if p, ok := m.ids[externalPlanID]; ok {
		return p
	}
	return PlanFree
}

// Known reports whether the id is present in the mapping.
func (m PlanMapping) Known(externalPlanID string) bool {
	_, ok := m.ids[externalPlanID]
	return ok
}

type planMappingFile struct {
	Plans map[string]string `yaml:"plans"`
}

// LoadPlanMapping reads a YAML file of the form
//
//	plans:
//	  plan_abc: pro
//
// and overlays it on DefaultPlanIDs. An empty path yields the defaults.
func LoadPlanMapping(path string) (PlanMapping, error) {
	if path == "" {
		return NewPlanMapping(nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return PlanMapping{}, errors.Join(ErrInvalidPlanMapping, err)
	}
	return ParsePlanMapping(raw)
}

// ParsePlanMapping decodes YAML mapping content.
func ParsePlanMapping(raw []byte) (PlanMapping, error) {
	var file planMappingFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return PlanMapping{}, errors.Join(ErrInvalidPlanMapping, err)
	}
	extra := make(map[string]Plan, len(file.Plans))
	for id, name := range file.Plans {
		p, err := ParsePlan(name)
		if err != nil {
			return PlanMapping{}, errors.Join(ErrInvalidPlanMapping, err)
		}
		extra[id] = p
	}
	return NewPlanMapping(extra)
}
