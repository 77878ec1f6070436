package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artpar/devstack/internal/core/domain"
)

func names(specs []domain.ContainerSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}

// =============================================================================
// TopologicalSort Tests
// =============================================================================

func TestTopologicalSort_Empty(t *testing.T) {
	assert.Empty(t, TopologicalSort(nil))
}

func TestTopologicalSort_LinearDependencies(t *testing.T) {
	specs := []domain.ContainerSpec{
		{Name: "web", DependsOn: []string{"app"}},
		{Name: "app", DependsOn: []string{"db"}},
		{Name: "db"},
	}
	assert.Equal(t, []string{"db", "app", "web"}, names(TopologicalSort(specs)))
}

func TestTopologicalSort_TieBreakByName(t *testing.T) {
	specs := []domain.ContainerSpec{
		{Name: "redis"},
		{Name: "app", DependsOn: []string{"redis", "db"}},
		{Name: "db"},
		{Name: "mail"},
	}
	assert.Equal(t, []string{"db", "mail", "redis", "app"}, names(TopologicalSort(specs)))
}

func TestTopologicalSort_IgnoresExternalDependencies(t *testing.T) {
	specs := []domain.ContainerSpec{
		{Name: "web", DependsOn: []string{"app"}},
		{Name: "cache"},
	}
	assert.Equal(t, []string{"cache", "web"}, names(TopologicalSort(specs)))
}

func TestTopologicalSort_CycleFallback(t *testing.T) {
	specs := []domain.ContainerSpec{
		{Name: "b", DependsOn: []string{"a"}},
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "c"},
	}
	assert.Equal(t, []string{"c", "a", "b"}, names(TopologicalSort(specs)))
}

// =============================================================================
// Stages Tests
// =============================================================================

func TestStages_DatabaseBeforeApp(t *testing.T) {
	specs := []domain.ContainerSpec{
		{Name: "app", DependsOn: []string{"db"}},
		{Name: "cache"},
		{Name: "db"},
	}
	stages := Stages(specs)

	assert.Equal(t, [][]string{{"cache", "db"}, {"app"}}, stages)
}

func TestStages_Chain(t *testing.T) {
	specs := []domain.ContainerSpec{
		{Name: "ssl", DependsOn: []string{"web"}},
		{Name: "web", DependsOn: []string{"app"}},
		{Name: "app", DependsOn: []string{"db", "cache"}},
		{Name: "db"},
		{Name: "cache"},
		{Name: "mail"},
	}
	assert.Equal(t, [][]string{{"cache", "db", "mail"}, {"app"}, {"web"}, {"ssl"}}, Stages(specs))
}

func TestStages_CompactsSatisfiedDependencies(t *testing.T) {
	// db is already running, so only app and web are started.
	specs := []domain.ContainerSpec{
		{Name: "web", DependsOn: []string{"app"}},
		{Name: "app", DependsOn: []string{"db"}},
	}
	assert.Equal(t, [][]string{{"app"}, {"web"}}, Stages(specs))
}

func TestStages_Empty(t *testing.T) {
	assert.Nil(t, Stages(nil))
}
