package ecs

import (
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// stage is a set of systems that run between two barriers. Systems whose access sets
// conflict are ordered by registration; everything else may run concurrently.
type stage struct {
	name    string
	systems []*systemEntry
	// graph maps a system to the later systems that must wait for it.
	graph    [][]int
	indegree []int32
	tier0    []int
}

func newStage(name string, systems []*systemEntry) *stage {
	st := &stage{name: name, systems: systems}
	st.graph, st.indegree = buildDependencyGraph(systems)
	for i, deg := range st.indegree {
		if deg == 0 {
			st.tier0 = append(st.tier0, i)
		}
	}
	return st
}

// buildDependencyGraph adds an edge from every system to each later system it conflicts
// with. Because edges only point forward the graph is acyclic.
func buildDependencyGraph(systems []*systemEntry) ([][]int, []int32) {
	graph := make([][]int, len(systems))
	indegree := make([]int32, len(systems))
	for a := 0; a < len(systems); a++ {
		for b := a + 1; b < len(systems); b++ {
			if systems[a].access.Conflicts(systems[b].access) {
				graph[a] = append(graph[a], b)
				indegree[b]++
			}
		}
	}
	return graph, indegree
}

// edges returns the number of ordering constraints.
func (st *stage) edges() int {
	n := 0
	for _, deps := range st.graph {
		n += len(deps)
	}
	return n
}

// run executes every system of the stage once on at most workers goroutines. A failing
// system does not stop the stage: its dependents still run so that the failure is reported
// against a fully executed stage. Failures are returned in registration order.
func (st *stage) run(workers int, exec func(*systemEntry) *SystemExecutionFailure) []*SystemExecutionFailure {
	if len(st.systems) == 0 {
		return nil
	}

	executionQueue := make(chan int, len(st.systems))
	remaining := make([]atomic.Int32, len(st.systems))
	for i, deg := range st.indegree {
		remaining[i].Store(deg)
	}

	type failed struct {
		id      int
		failure *SystemExecutionFailure
	}
	var (
		mu            sync.Mutex
		failedSystems []failed
	)

	g := new(errgroup.Group)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for _, id := range st.tier0 {
		executionQueue <- id
	}

	for range st.systems {
		id := <-executionQueue
		g.Go(func() error {
			if failure := exec(st.systems[id]); failure != nil {
				mu.Lock()
				failedSystems = append(failedSystems, failed{id: id, failure: failure})
				mu.Unlock()
			}
			for _, dependent := range st.graph[id] {
				if remaining[dependent].Add(-1) == 0 {
					executionQueue <- dependent
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(failedSystems, func(a, b failed) int { return a.id - b.id })
	failures := make([]*SystemExecutionFailure, len(failedSystems))
	for i, f := range failedSystems {
		failures[i] = f.failure
	}
	return failures
}
