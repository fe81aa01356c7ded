package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// TrialPeriodDays is the free trial applied to every subscription checkout.
const TrialPeriodDays = 30

// Plan is a single entry in the subscription catalog. AmountCents is the
// monthly price in currency minor units.
type Plan struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
}

// PlanCatalog maps plan keys to their pricing. The catalog is data, not
// behavior: price changes ship as a new catalog file, not a redeploy.
type PlanCatalog struct {
	plans map[string]Plan
}

func defaultPlans() []Plan {
	return []Plan{
		{Key: "family", Name: "Family", AmountCents: 2900},
		{Key: "family_premium", Name: "Family Premium", AmountCents: 4900},
		{Key: "professional", Name: "Healthcare Professional", AmountCents: 7900},
		{Key: "agent", Name: "Placement Agent", AmountCents: 9900},
		{Key: "agent_pro", Name: "Placement Agent Pro", AmountCents: 19900},
		{Key: "facility", Name: "Facility", AmountCents: 29900},
	}
}

// LoadPlanCatalog builds the catalog from the given JSON file, or from the
// built-in defaults when path is empty.
func LoadPlanCatalog(path string) (*PlanCatalog, error) {
	plans := defaultPlans()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read plan catalog %s: %w", path, err)
		}
		plans = nil
		if err := json.Unmarshal(data, &plans); err != nil {
			return nil, fmt.Errorf("parse plan catalog %s: %w", path, err)
		}
		if len(plans) == 0 {
			return nil, fmt.Errorf("plan catalog %s is empty", path)
		}
	}

	catalog := &PlanCatalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		if p.Key == "" || p.AmountCents <= 0 {
			return nil, fmt.Errorf("invalid plan entry %q", p.Key)
		}
		catalog.plans[p.Key] = p
	}
	return catalog, nil
}

// Get returns the plan for key, reporting whether it exists.
func (c *PlanCatalog) Get(key string) (Plan, bool) {
	p, ok := c.plans[key]
	return p, ok
}

// Len reports the number of plans in the catalog.
func (c *PlanCatalog) Len() int {
	return len(c.plans)
}
