package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateComplianceIncludesEveryMember(t *testing.T) {
	rule := GroupRule{GroupID: "g1", MinWorkoutsPerWeek: 2}
	members := []Member{
		{UserID: "alice", Username: "alice", DisplayName: "Alice"},
		{UserID: "bob", Username: "bob"},
		{UserID: "carol"},
	}

	results := EvaluateCompliance(rule, members, []string{"alice", "bob", "alice", "alice"})

	require.Len(t, results, 3)
	assert.Equal(t, ComplianceResult{UserID: "alice", Username: "alice", DisplayName: "Alice", QualifiedCount: 3, Required: 2, IsCompliant: true}, results[0])
	assert.Equal(t, ComplianceResult{UserID: "bob", Username: "bob", QualifiedCount: 1, Required: 2}, results[1])
	assert.Equal(t, ComplianceResult{UserID: "carol", Username: UnknownUsername, Required: 2}, results[2])
}

func TestEvaluateComplianceIgnoresNonMembersAndDuplicates(t *testing.T) {
	rule := GroupRule{MinWorkoutsPerWeek: 1}
	members := []Member{{UserID: "alice"}, {UserID: "alice"}}

	results := EvaluateCompliance(rule, members, []string{"mallory", "alice"})

	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].QualifiedCount)
	assert.True(t, results[0].IsCompliant)
}

func TestEvaluateComplianceZeroQuotaIsAlwaysCompliant(t *testing.T) {
	results := EvaluateCompliance(GroupRule{}, []Member{{UserID: "alice"}}, nil)

	require.Len(t, results, 1)
	assert.True(t, results[0].IsCompliant)
}

func TestEvaluateComplianceIsMonotonic(t *testing.T) {
	rule := GroupRule{MinWorkoutsPerWeek: 3}
	members := []Member{{UserID: "alice"}}

	var qualified []string
	wasCompliant := false
	for i := 0; i < 6; i++ {
		result := EvaluateCompliance(rule, members, qualified)[0]
		if wasCompliant {
			assert.True(t, result.IsCompliant, "count %d", result.QualifiedCount)
		}
		wasCompliant = result.IsCompliant
		qualified = append(qualified, "alice")
	}
	assert.True(t, wasCompliant)
}

func TestEvaluateComplianceEmptyRoster(t *testing.T) {
	assert.Empty(t, EvaluateCompliance(GroupRule{MinWorkoutsPerWeek: 3}, nil, []string{"alice"}))
}
