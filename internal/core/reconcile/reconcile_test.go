package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/devstack/internal/core/domain"
)

func testSpecs() []domain.ContainerSpec {
	return []domain.ContainerSpec{
		{Name: "cache", Service: domain.ServiceRedis, Image: "redis", Tag: "6.0"},
		{Name: "db", Service: domain.ServiceMariaDB, Image: "mariadb", Tag: "10.4"},
		{Name: "app", Service: domain.ServicePHP, Image: "php", Tag: "7.4", DependsOn: []string{"db"}},
	}
}

func allImages(specs []domain.ContainerSpec) map[string]bool {
	images := make(map[string]bool)
	for _, s := range specs {
		images[s.ImageRef()] = true
	}
	return images
}

func running(spec domain.ContainerSpec) domain.ContainerState {
	return domain.ContainerState{Name: spec.Name, Status: domain.ContainerRunning, Image: spec.ImageRef()}
}

// stageOf returns the stage index of name, or -1.
func stageOf(set domain.ActionSet, name string) int {
	for i, stage := range set.Stages {
		for _, n := range stage {
			if n == name {
				return i
			}
		}
	}
	return -1
}

// apply simulates a successful application of set against the observed
// state, the way the engine applier would leave it.
func apply(specs []domain.ContainerSpec, set domain.ActionSet, states map[string]domain.ContainerState, images map[string]bool) {
	byName := make(map[string]domain.ContainerSpec)
	for _, s := range specs {
		byName[s.Name] = s
	}
	for _, n := range set.ToStop {
		delete(states, n)
	}
	for _, n := range set.ToPull {
		images[byName[n].ImageRef()] = true
	}
	for _, n := range set.ToStart {
		states[n] = running(byName[n])
	}
}

// =============================================================================
// Start Intent Tests
// =============================================================================

func TestReconcile_StartFromScratch(t *testing.T) {
	specs := testSpecs()
	set := Reconcile(Params{Specs: specs, Images: allImages(specs), Intent: domain.IntentStart})

	assert.Empty(t, set.ToPull)
	assert.Equal(t, []string{"cache", "db", "app"}, set.ToStart)
	assert.Empty(t, set.ToStop)
}

func TestReconcile_StagingDatabaseBeforeApp(t *testing.T) {
	specs := testSpecs()
	set := Reconcile(Params{Specs: specs, Images: allImages(specs), Intent: domain.IntentStart})

	assert.Less(t, stageOf(set, "db"), stageOf(set, "app"))
	assert.GreaterOrEqual(t, stageOf(set, "cache"), 0)
	assert.Equal(t, [][]string{{"cache", "db"}, {"app"}}, set.Stages)
}

func TestReconcile_MissingImagesArePulledNotStarted(t *testing.T) {
	specs := testSpecs()
	images := map[string]bool{"redis:6.0": true}

	set := Reconcile(Params{Specs: specs, Images: images, Intent: domain.IntentStart})

	assert.Equal(t, []string{"db", "app"}, set.ToPull)
	assert.Equal(t, []string{"cache"}, set.ToStart)
	for _, name := range set.ToPull {
		assert.NotContains(t, set.ToStart, name)
	}
}

func TestReconcile_DependentWaitsForPulledDependency(t *testing.T) {
	specs := testSpecs()
	images := map[string]bool{"redis:6.0": true, "php:7.4": true}

	states := map[string]domain.ContainerState{}

	set := Reconcile(Params{Specs: specs, States: states, Images: images, Intent: domain.IntentStart})

	assert.Equal(t, []string{"db"}, set.ToPull)
	assert.Equal(t, []string{"cache"}, set.ToStart)
	assert.Equal(t, [][]string{{"cache"}}, set.Stages)
	for _, stage := range set.Stages {
		assert.NotContains(t, stage, "app")
	}

	apply(specs, set, states, images)
	next := Reconcile(Params{Specs: specs, States: states, Images: images, Intent: domain.IntentStart})
	assert.Equal(t, [][]string{{"db"}, {"app"}}, next.Stages)
}

func TestReconcile_DependentWaitsForRecreatedDependency(t *testing.T) {
	specs := testSpecs()
	states := map[string]domain.ContainerState{
		"cache": running(specs[0]),
		"db":    {Name: "db", Status: domain.ContainerRunning, Image: "mariadb:10.2"},
	}
	images := allImages(specs)

	first := Reconcile(Params{Specs: specs, States: states, Images: images, Intent: domain.IntentStart})
	assert.Equal(t, []string{"db"}, first.ToStop)
	assert.NotContains(t, first.ToStart, "app")
	assert.Empty(t, first.Stages)

	apply(specs, first, states, images)
	second := Reconcile(Params{Specs: specs, States: states, Images: images, Intent: domain.IntentStart})
	assert.Equal(t, []string{"db", "app"}, second.ToStart)
	assert.Equal(t, [][]string{{"db"}, {"app"}}, second.Stages)
}

func TestReconcile_TransitiveDependencyHoldsBack(t *testing.T) {
	specs := []domain.ContainerSpec{
		{Name: "db", Image: "mariadb", Tag: "10.4"},
		{Name: "app", Image: "php", Tag: "7.4", DependsOn: []string{"db"}},
		{Name: "web", Image: "nginx", Tag: "1.18", DependsOn: []string{"app"}},
	}
	images := map[string]bool{"php:7.4": true, "nginx:1.18": true}

	set := Reconcile(Params{Specs: specs, Images: images, Intent: domain.IntentStart})

	assert.Equal(t, []string{"db"}, set.ToPull)
	assert.Empty(t, set.ToStart)
	assert.Empty(t, set.Stages)
}

func TestReconcile_StoppedContainerIsStarted(t *testing.T) {
	specs := testSpecs()
	states := map[string]domain.ContainerState{
		"cache": running(specs[0]),
		"db":    {Name: "db", Status: domain.ContainerStopped, Image: specs[1].ImageRef()},
		"app":   running(specs[2]),
	}

	set := Reconcile(Params{Specs: specs, States: states, Images: allImages(specs), Intent: domain.IntentStart})

	assert.Equal(t, []string{"db"}, set.ToStart)
	assert.Equal(t, [][]string{{"db"}}, set.Stages)
}

func TestReconcile_NoOpWhenAllRunning(t *testing.T) {
	specs := testSpecs()
	states := map[string]domain.ContainerState{}
	for _, s := range specs {
		states[s.Name] = running(s)
	}

	set := Reconcile(Params{Specs: specs, States: states, Images: allImages(specs), Intent: domain.IntentStart})

	assert.True(t, set.IsEmpty())
	assert.Empty(t, set.ToPull)
	assert.Empty(t, set.ToStart)
	assert.Empty(t, set.Stages)
}

func TestReconcile_DriftIsTwoPhase(t *testing.T) {
	specs := testSpecs()
	states := map[string]domain.ContainerState{
		"cache": {Name: "cache", Status: domain.ContainerRunning, Image: "redis:5.0"},
		"db":    running(specs[1]),
		"app":   running(specs[2]),
	}
	images := allImages(specs)

	first := Reconcile(Params{Specs: specs, States: states, Images: images, Intent: domain.IntentStart})
	assert.Equal(t, []string{"cache"}, first.ToStop)
	assert.Empty(t, first.ToStart)

	apply(specs, first, states, images)
	second := Reconcile(Params{Specs: specs, States: states, Images: images, Intent: domain.IntentStart})
	assert.Equal(t, []string{"cache"}, second.ToStart)
	assert.Empty(t, second.ToStop)
}

func TestReconcile_Idempotent(t *testing.T) {
	specs := testSpecs()
	states := map[string]domain.ContainerState{
		"db": {Name: "db", Status: domain.ContainerStopped, Image: specs[1].ImageRef()},
	}
	images := map[string]bool{}

	// Converge: each pass applies its actions to the observed state.
	for i := 0; i < 3; i++ {
		set := Reconcile(Params{Specs: specs, States: states, Images: images, Intent: domain.IntentStart})
		apply(specs, set, states, images)
	}

	converged := Reconcile(Params{Specs: specs, States: states, Images: images, Intent: domain.IntentStart})
	require.True(t, converged.IsEmpty())

	again := Reconcile(Params{Specs: specs, States: states, Images: images, Intent: domain.IntentStart})
	assert.True(t, again.IsEmpty())
}

func TestReconcile_Scope(t *testing.T) {
	specs := testSpecs()
	set := Reconcile(Params{Specs: specs, Images: allImages(specs), Intent: domain.IntentStart, Scope: []string{"app"}})

	assert.Equal(t, []string{"app"}, set.ToStart)
	assert.Equal(t, [][]string{{"app"}}, set.Stages)
}

// =============================================================================
// Stop and Status Intent Tests
// =============================================================================

func TestReconcile_Stop(t *testing.T) {
	specs := testSpecs()
	states := map[string]domain.ContainerState{
		"cache": running(specs[0]),
		"db":    {Name: "db", Status: domain.ContainerStopped},
	}

	set := Reconcile(Params{Specs: specs, States: states, Intent: domain.IntentStop})

	assert.Equal(t, []string{"cache", "db"}, set.ToStop)
	assert.Empty(t, set.ToPull)
	assert.Empty(t, set.ToStart)

	apply(specs, set, states, map[string]bool{})
	assert.True(t, Reconcile(Params{Specs: specs, States: states, Intent: domain.IntentStop}).IsEmpty())
}

func TestReconcile_StopScope(t *testing.T) {
	specs := testSpecs()
	states := map[string]domain.ContainerState{"cache": running(specs[0]), "db": running(specs[1])}

	set := Reconcile(Params{Specs: specs, States: states, Intent: domain.IntentStop, Scope: []string{"db"}})
	assert.Equal(t, []string{"db"}, set.ToStop)
}

func TestReconcile_Status(t *testing.T) {
	specs := testSpecs()
	set := Reconcile(Params{Specs: specs, Intent: domain.IntentStatus})
	assert.True(t, set.IsEmpty())
}

// =============================================================================
// Summarize Tests
// =============================================================================

func TestSummarize(t *testing.T) {
	specs := testSpecs()
	states := map[string]domain.ContainerState{
		"cache": {Name: "cache", Status: domain.ContainerRunning, Health: domain.HealthHealthy, Image: "redis:5.0"},
		"db":    running(specs[1]),
	}

	rows := Summarize(specs, states)
	require.Len(t, rows, 3)

	assert.Equal(t, domain.ServiceRedis, rows[0].Service)
	assert.True(t, rows[0].Drift)
	assert.Equal(t, domain.HealthHealthy, rows[0].Health)
	assert.False(t, rows[1].Drift)
	assert.Equal(t, domain.ContainerAbsent, rows[2].Status)
	assert.Equal(t, "php:7.4", rows[2].Image)
}

func TestSpecsByName(t *testing.T) {
	specs := testSpecs()
	got := SpecsByName(specs, []string{"app", "cache"})
	require.Len(t, got, 2)
	assert.Equal(t, "cache", got[0].Name)
	assert.Equal(t, "app", got[1].Name)
}
