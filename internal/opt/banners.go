package opt

import (
	"fmt"

	"lngsched/internal/model"
	"lngsched/internal/pricefeed"
)

// banners derives advisory banners from a computed schedule. Generation is
// idempotent for identical schedule and price input.
func banners(schedule []model.ScheduleRecord, prices map[string]pricefeed.Price, rules AlertRules) []model.Banner {
	out := []model.Banner{}

	// Opportunity: first occurrence of each delivery port only.
	seen := map[string]bool{}
	for _, r := range schedule {
		port := r.DeliveryPort
		if port == "" || seen[port] {
			continue
		}
		seen[port] = true
		if p, ok := prices[port]; ok && p.Value >= rules.OpportunityThreshold {
			out = append(out, model.Banner{
				Type:    "opportunity",
				Message: fmt.Sprintf("Spot price surge at %s - consider selling 20kt for $%.2f/mmBtu.", port, p.Value),
			})
		}
	}

	// Warning: only the first long-haul match to the at-risk port is reported.
	for _, r := range schedule {
		if r.DeliveryPort == rules.WarningPort && r.EstimatedDays > rules.WarningDays {
			out = append(out, model.Banner{
				Type:    "warning",
				Message: fmt.Sprintf("Weather disruption forecasted along route to %s. Click to explore reroutes.", rules.WarningPort),
			})
			break
		}
	}
	return out
}
