package guard

import "fmt"

// Limit is a single named numeric resource ceiling, sourced from the
// manifest's context_map.
type Limit struct {
	Name  string
	Value float64
}

// Claim is a numeric claim made in a generated solution, to be checked
// against the corresponding Limit of the same Name.
type Claim struct {
	Name  string
	Value float64
}

// CheckFeasibility reports the first claim that exceeds its matching
// limit. Claims with no matching limit are not checked — the core has no
// basis to dispute them. A nil return means every claim that had a known
// limit stayed within it.
func CheckFeasibility(claims []Claim, limits []Limit) *Hit {
	limitByName := make(map[string]float64, len(limits))
	for _, l := range limits {
		limitByName[l.Name] = l.Value
	}
	for _, c := range claims {
		limit, ok := limitByName[c.Name]
		if !ok {
			continue
		}
		if c.Value > limit {
			return &Hit{
				Category: CategoryResourceLimitViolation,
				Reason:   fmt.Sprintf("claim %q=%.2f exceeds known limit %.2f", c.Name, c.Value, limit),
			}
		}
	}
	return nil
}
