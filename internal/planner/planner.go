// Package planner builds the directed dependency graph over a step's
// resolved plugin list and topologically sorts it into execution order
// (spec §4.4).
package planner

import (
	"sort"

	"github.com/semanteecore/forge-release/internal/errors"
	"github.com/semanteecore/forge-release/internal/plugin"
	"github.com/semanteecore/forge-release/internal/registry"
)

// PlanStep plans the execution order for a single step's resolved plugin
// list ids, given the set of keys already present in the state store at
// the start of the step (stateKeys). It returns ids reordered so that for
// every edge A -> B in the dependency graph, A precedes B (spec §4.4).
func PlanStep(ids []string, reg *registry.Registry, stateKeys map[string]struct{}) ([]string, error) {
	if len(ids) == 0 {
		return ids, nil
	}

	position := make(map[string]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}

	// edges[B] = set of A such that A -> B (A must run before B).
	edges := make(map[string]map[string]bool, len(ids))
	for _, id := range ids {
		edges[id] = make(map[string]bool)
	}

	for _, b := range ids {
		required := reg.RequiredKeys(b)
		for key := range required {
			if _, present := stateKeys[key]; present {
				// Already satisfied by an earlier step; no intra-step
				// edge needed (spec §9 open question (b)).
				continue
			}

			satisfiedWithinStep := false
			for _, a := range ids {
				if a == b {
					continue
				}
				if reg.ProvisionedKeys(a)[key] {
					edges[b][a] = true
					satisfiedWithinStep = true
				}
			}

			if !satisfiedWithinStep {
				return nil, errors.Newf(errors.CodeUnsatisfiedRequirement,
					"plugin %q requires key %q, which is neither in the state store nor produced earlier in this step", b, key)
			}
		}
	}

	return topoSort(ids, edges, position)
}

// topoSort performs a Kahn's-algorithm topological sort over nodes with
// predecessor sets predecessors[node] = set of nodes that must precede
// it. Ties are broken by the baseline position order (spec §4.4 step 4).
// Returns a PlanError{Cycle} if no valid ordering exists.
func topoSort(nodes []string, predecessors map[string]map[string]bool, position map[string]int) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	successors := make(map[string][]string, len(nodes))

	for _, n := range nodes {
		inDegree[n] = len(predecessors[n])
	}
	for n, preds := range predecessors {
		for p := range preds {
			successors[p] = append(successors[p], n)
		}
	}

	var ready []string
	for _, n := range nodes {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	sortByPosition(ready, position)

	ordered := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		// Pop the lowest-position ready node.
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next)

		var newlyReady []string
		for _, succ := range successors[next] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				newlyReady = append(newlyReady, succ)
			}
		}
		sortByPosition(newlyReady, position)
		ready = mergeByPosition(ready, newlyReady, position)
	}

	if len(ordered) != len(nodes) {
		remaining := make([]string, 0, len(nodes)-len(ordered))
		seen := make(map[string]bool, len(ordered))
		for _, n := range ordered {
			seen[n] = true
		}
		for _, n := range nodes {
			if !seen[n] {
				remaining = append(remaining, n)
			}
		}
		return nil, errors.Newf(errors.CodeCycle, "dependency cycle detected among plugins: %v", remaining)
	}

	return ordered, nil
}

func sortByPosition(ids []string, position map[string]int) {
	sort.SliceStable(ids, func(i, j int) bool {
		return position[ids[i]] < position[ids[j]]
	})
}

func mergeByPosition(a, b []string, position map[string]int) []string {
	merged := append(append([]string(nil), a...), b...)
	sortByPosition(merged, position)
	return merged
}
