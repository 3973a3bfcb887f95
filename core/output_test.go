package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssertion_Contradicts(t *testing.T) {
	supports := Assertion{Subject: "a", Predicate: RelSupports, Object: "b"}

	tests := []struct {
		name  string
		other Assertion
		want  bool
	}{
		{
			name:  "contradicts over same pair",
			other: Assertion{Subject: "a", Predicate: RelContradicts, Object: "b"},
			want:  true,
		},
		{
			name:  "same stance agrees",
			other: Assertion{Subject: "a", Predicate: RelSupports, Object: "b"},
			want:  false,
		},
		{
			name:  "different subject is unrelated",
			other: Assertion{Subject: "c", Predicate: RelContradicts, Object: "b"},
			want:  false,
		},
		{
			name:  "different object is unrelated",
			other: Assertion{Subject: "a", Predicate: RelContradicts, Object: "c"},
			want:  false,
		},
		{
			name:  "reversed pair is a different claim",
			other: Assertion{Subject: "b", Predicate: RelContradicts, Object: "a"},
			want:  false,
		},
		{
			name:  "neutral predicate never contradicts",
			other: Assertion{Subject: "a", Predicate: RelRelatedTo, Object: "b"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, supports.Contradicts(tt.other))
			assert.Equal(t, tt.want, tt.other.Contradicts(supports), "contradiction is symmetric")
		})
	}
}

func TestNewAgentOutput(t *testing.T) {
	out := NewAgentOutput("agent-1", 0.7, "x relates to y", []NodeID{"x", "y"})

	require.NotEmpty(t, out.ID)
	assert.Equal(t, "agent-1", out.AgentID)
	assert.Equal(t, 0.7, out.Confidence)
	assert.Equal(t, []NodeID{"x", "y"}, out.Evidence)
	assert.False(t, out.CreatedAt.IsZero())

	other := NewAgentOutput("agent-1", 0.7, "x relates to y", nil)
	assert.NotEqual(t, out.ID, other.ID)
}
