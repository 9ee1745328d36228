package domain

// ComplianceResult is one member's standing against the weekly quota.
type ComplianceResult struct {
	UserID         string
	Username       string
	DisplayName    string
	QualifiedCount int
	Required       int
	IsCompliant    bool
}

// EvaluateCompliance counts each member's qualified workouts for one week and
// compares the count against the group's weekly minimum.
//
// qualifiedUserIDs holds one entry per qualified link in the target week.
// Every member appears exactly once in the result, in roster order, including
// members without any qualified workout. Duplicate roster entries are ignored.
func EvaluateCompliance(rule GroupRule, members []Member, qualifiedUserIDs []string) []ComplianceResult {
	counts := make(map[string]int, len(members))
	for _, userID := range qualifiedUserIDs {
		counts[userID]++
	}

	seen := make(map[string]struct{}, len(members))
	results := make([]ComplianceResult, 0, len(members))
	for _, member := range members {
		if _, dup := seen[member.UserID]; dup {
			continue
		}
		seen[member.UserID] = struct{}{}

		count := counts[member.UserID]
		results = append(results, ComplianceResult{
			UserID:         member.UserID,
			Username:       member.Label(),
			DisplayName:    member.DisplayName,
			QualifiedCount: count,
			Required:       rule.MinWorkoutsPerWeek,
			IsCompliant:    count >= rule.MinWorkoutsPerWeek,
		})
	}
	return results
}
