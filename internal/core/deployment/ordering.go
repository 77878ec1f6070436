package deployment

import (
	"sort"

	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// Service Ordering Functions
// =============================================================================

// serviceDependencies lists, per service kind, the kinds that must be
// reachable before it starts.
var serviceDependencies = map[domain.ServiceKind][]domain.ServiceKind{
	domain.ServicePHP:           {domain.ServiceMariaDB, domain.ServiceRedis, domain.ServiceElasticsearch},
	domain.ServiceNginx:         {domain.ServicePHP},
	domain.ServiceSSLTerminator: {domain.ServiceNginx},
}

// DependenciesOf returns the service kinds kind depends on.
func DependenciesOf(kind domain.ServiceKind) []domain.ServiceKind {
	return serviceDependencies[kind]
}

// TopologicalSort sorts specs by their dependencies using Kahn's algorithm.
// Specs with no dependencies come first; ties are broken by name so the
// result is deterministic. Dependencies outside specs are ignored.
//
// If a cycle exists, remaining specs are appended by name as a fallback.
//
// Example:
//
//	// Specs: web → app → db
//	specs := []domain.ContainerSpec{
//	    {Name: "web", DependsOn: []string{"app"}},
//	    {Name: "app", DependsOn: []string{"db"}},
//	    {Name: "db"},
//	}
//	sorted := TopologicalSort(specs)
//	// Result: [db, app, web]
func TopologicalSort(specs []domain.ContainerSpec) []domain.ContainerSpec {
	if len(specs) == 0 {
		return specs
	}

	specMap := make(map[string]domain.ContainerSpec, len(specs))
	for _, s := range specs {
		specMap[s.Name] = s
	}

	inDegree := make(map[string]int, len(specs))
	dependents := make(map[string][]string)
	for _, s := range specs {
		inDegree[s.Name] = 0
		for _, dep := range s.DependsOn {
			if _, ok := specMap[dep]; !ok {
				continue
			}
			inDegree[s.Name]++
			dependents[dep] = append(dependents[dep], s.Name)
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	result := make([]domain.ContainerSpec, 0, len(specs))
	done := make(map[string]bool, len(specs))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		result = append(result, specMap[name])
		done[name] = true

		var ready []string
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		queue = append(queue, ready...)
		sort.Strings(queue)
	}

	if len(result) < len(specMap) {
		var remaining []string
		for name := range specMap {
			if !done[name] {
				remaining = append(remaining, name)
			}
		}
		sort.Strings(remaining)
		for _, name := range remaining {
			result = append(result, specMap[name])
		}
	}

	return result
}

// Stages groups spec names by dependency depth. Stage 0 holds specs with no
// dependency inside specs; every other spec lands one stage after its
// deepest dependency. Names within a stage are sorted.
//
// Example:
//
//	Stages([]domain.ContainerSpec{
//	    {Name: "app", DependsOn: []string{"db"}},
//	    {Name: "cache"},
//	    {Name: "db"},
//	})
//	// Result: [[cache db] [app]]
func Stages(specs []domain.ContainerSpec) [][]string {
	if len(specs) == 0 {
		return nil
	}

	inSet := make(map[string]bool, len(specs))
	for _, s := range specs {
		inSet[s.Name] = true
	}

	depth := make(map[string]int, len(specs))
	maxDepth := 0
	for _, s := range TopologicalSort(specs) {
		d := 0
		for _, dep := range s.DependsOn {
			if !inSet[dep] {
				continue
			}
			if depDepth, ok := depth[dep]; ok && depDepth+1 > d {
				d = depDepth + 1
			}
		}
		depth[s.Name] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	stages := make([][]string, maxDepth+1)
	for name, d := range depth {
		stages[d] = append(stages[d], name)
	}
	for _, stage := range stages {
		sort.Strings(stage)
	}
	return stages
}
