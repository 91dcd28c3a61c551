package entity

import "strings"

// DefaultPlanDurationDays applies when neither the plan table nor the
// payload gives a duration.
const DefaultPlanDurationDays = 30

const (
	PlanPremium30       = "premium_30"
	PlanPremium180      = "premium_180"
	PlanPremium365      = "premium_365"
	PlanPremiumLifetime = "premium_lifetime"
)

// PlanTerm is a resolved plan duration.
type PlanTerm struct {
	PlanType  string
	Days      *int
	Months    int
	Lifetime  bool
	Defaulted bool
}

func days(n int) *int { return &n }

var planTable = map[string]PlanTerm{
	PlanPremium30:       {PlanType: PlanPremium30, Days: days(30)},
	PlanPremium180:      {PlanType: PlanPremium180, Days: days(180)},
	PlanPremium365:      {PlanType: PlanPremium365, Days: days(365)},
	PlanPremiumLifetime: {PlanType: PlanPremiumLifetime, Lifetime: true},
}

// LookupPlan matches id against the fixed plan table, ignoring case and
// surrounding space.
func LookupPlan(id string) (PlanTerm, bool) {
	term, ok := planTable[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return PlanTerm{}, false
	}
	if term.Days != nil {
		term.Days = days(*term.Days)
	}
	return term, true
}
