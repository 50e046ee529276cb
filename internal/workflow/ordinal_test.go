package workflow

import (
	"testing"

	"github.com/brianly1003/grouppilot/internal/domain"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groups(names ...string) []ports.Group {
	out := make([]ports.Group, len(names))
	for i, n := range names {
		out[i] = ports.Group{ID: "g" + n, Name: n}
	}
	return out
}

func TestExtractOrdinal(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"HK 12", 12},
		{"Group7Extra", 7},
		{"NoDigits", 0},
		{"HK 12 ", 12},
		{"Batch 3 Room 14", 14},
		{"2024 Alumni", 2024},
		{"HK12", 12},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractOrdinal(tt.name))
		})
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"HK 12", "HK"},
		{"HK12", "HK"},
		{"  HK  3  ", "HK"},
		{"Group7Extra", "Group7Extra"},
		{"NoDigits", "NoDigits"},
		{"42", "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseName(tt.name))
		})
	}
}

func TestClusters_KeepsOnlyMultiMemberClusters(t *testing.T) {
	clusters := Clusters(groups("HK 2", "MK 1", "HK 1"))

	require.Len(t, clusters, 1)
	assert.Equal(t, "HK", clusters[0].Base)
	require.Len(t, clusters[0].Members, 2)
	assert.Equal(t, "HK 1", clusters[0].Members[0].Group.Name)
	assert.Equal(t, "HK 2", clusters[0].Members[1].Group.Name)
	assert.Equal(t, []int{1, 2}, clusters[0].Ordinals())
}

func TestClusters_SortedByBaseThenOrdinal(t *testing.T) {
	clusters := Clusters(groups("Zeta 10", "Alpha 3", "Zeta 2", "Alpha 1", "Solo"))

	require.Len(t, clusters, 2)
	assert.Equal(t, "Alpha", clusters[0].Base)
	assert.Equal(t, []int{1, 3}, clusters[0].Ordinals())
	assert.Equal(t, "Zeta", clusters[1].Base)
	assert.Equal(t, []int{2, 10}, clusters[1].Ordinals())
}

func TestClusters_None(t *testing.T) {
	assert.Empty(t, Clusters(groups("HK 1", "MK 1", "Other")))
	assert.Empty(t, Clusters(nil))
}

func TestValidateRange(t *testing.T) {
	c := Clusters(groups("HK 1", "HK 2", "HK 3", "HK 5"))[0]

	tests := []struct {
		name       string
		start, end int
		wantErr    bool
	}{
		{"start not present", 4, 5, true},
		{"accepted", 1, 3, false},
		{"single", 5, 5, false},
		{"end not present", 1, 4, true},
		{"end before start", 3, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRange(c, tt.start, tt.end)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var validation *domain.ValidationError
			assert.ErrorAs(t, err, &validation)
		})
	}
}

func TestBuildPlan_Renumbering(t *testing.T) {
	c := Clusters(groups("HK 5", "HK 2", "HK 3", "HK 9"))[0]

	plan := BuildPlan(c.InRange(2, 5), "MK", 10)

	require.Len(t, plan, 3)
	assert.Equal(t, PlanItem{GroupID: "gHK 2", OldName: "HK 2", Ordinal: 2, NewName: "MK 10", Sequence: 10}, plan[0])
	assert.Equal(t, "MK 11", plan[1].NewName)
	assert.Equal(t, "HK 3", plan[1].OldName)
	assert.Equal(t, "MK 12", plan[2].NewName)
	assert.Equal(t, "HK 5", plan[2].OldName)

	assert.Equal(t, plan, BuildPlan(c.InRange(2, 5), " MK ", 10))
}

func TestParseClusterCallback(t *testing.T) {
	n, ok := ParseClusterCallback(ClusterCallback(3))
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	for _, bad := range []string{"cluster:", "cluster:x", "cluster:-1", "rename"} {
		_, ok := ParseClusterCallback(bad)
		assert.False(t, ok, bad)
	}
}
