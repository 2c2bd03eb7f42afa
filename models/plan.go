package models

// Plan is the subscription tier resolved by the external billing lookup.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// RealtimeEntitled reports whether the plan admits real-time
// market-data distribution.
func (p Plan) RealtimeEntitled() bool {
	return p == PlanPro || p == PlanEnterprise
}
