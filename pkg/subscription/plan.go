package subscription

import (
	"fmt"
	"slices"
	"strings"
)

// Plan is an internal plan tier. Tiers are totally ordered: free < lite < pro.
type Plan string

const (
	PlanFree Plan = "free"
	PlanLite Plan = "lite"
	PlanPro  Plan = "pro"
)

var planOrder = []Plan{PlanFree, PlanLite, PlanPro}

// Plans returns all tiers from lowest to highest.
func Plans() []Plan {
	return slices.Clone(planOrder)
}

// ParsePlan accepts a tier name in any case.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, s)
	}
	return p, nil
}

func (p Plan) Valid() bool {
	return p.Rank() >= 0
}

// Rank is the position of p in the tier order, or -1 for unknown plans.
func (p Plan) Rank() int {
	return slices.Index(planOrder, p)
}

// Satisfies reports whether p grants at least the access of required.
// Unknown plans satisfy nothing and are satisfied by nothing.
func (p Plan) Satisfies(required Plan) bool {
	have, need := p.Rank(), required.Rank()
	if have < 0 || need < 0 {
		return false
	}
	return have >= need
}

func (p Plan) String() string {
	return string(p)
}

// Feature is a named capability granted by a plan.
type Feature string

const (
	FeatureBasicAnalytics     Feature = "basic_analytics"
	FeatureCommunitySupport   Feature = "community_support"
	FeatureLimitedProjects    Feature = "limited_projects"
	FeatureAdvancedAnalytics  Feature = "advanced_analytics"
	FeaturePrioritySupport    Feature = "priority_support"
	FeatureUnlimitedProjects  Feature = "unlimited_projects"
	FeatureAPIAccess          Feature = "api_access"
	FeatureCustomIntegrations Feature = "custom_integrations"
	FeatureDedicatedSupport   Feature = "dedicated_support"
	FeatureWhiteLabel         Feature = "white_label"
)

// Each tier lists only what it adds; Features folds lower tiers in, so the
// superset relation between tiers holds by construction.
var planAdds = map[Plan][]Feature{
	PlanFree: {FeatureBasicAnalytics, FeatureCommunitySupport, FeatureLimitedProjects},
	PlanLite: {FeatureAdvancedAnalytics, FeaturePrioritySupport, FeatureUnlimitedProjects},
	PlanPro:  {FeatureAPIAccess, FeatureCustomIntegrations, FeatureDedicatedSupport, FeatureWhiteLabel},
}

// Features returns every feature granted by p, including those of lower tiers.
func Features(p Plan) []Feature {
	rank := p.Rank()
	if rank < 0 {
		return nil
	}
	var out []Feature
	for _, tier := range planOrder[:rank+1] {
		out = append(out, planAdds[tier]...)
	}
	return out
}

// PlanHasFeature reports whether p grants f.
func PlanHasFeature(p Plan, f Feature) bool {
	return slices.Contains(Features(p), f)
}

// MinimumPlan returns the lowest tier that grants f.
func MinimumPlan(f Feature) (Plan, bool) {
	for _, p := range planOrder {
		if slices.Contains(planAdds[p], f) {
			return p, true
		}
	}
	return "", false
}
