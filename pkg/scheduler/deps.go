package scheduler

import (
	"github.com/rendergrid/rendergrid/pkg/types"
)

// visit states for the iterative cycle walk.
const (
	unvisited = iota
	inProgress
	done
)

// findDependencyCycles returns the set of job ids that sit on (or depend
// into) a dependency cycle. Uses an explicit stack and an index-based state
// table so arbitrarily deep dependency chains cannot blow the call stack.
func findDependencyCycles(jobs map[string]*types.Job) map[string]bool {
	state := make(map[string]int, len(jobs))
	cyclic := make(map[string]bool)

	type frame struct {
		id   string
		next int
	}

	for id := range jobs {
		if state[id] != unvisited {
			continue
		}

		stack := []frame{{id: id}}
		state[id] = inProgress

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := jobs[top.id].Dependencies

			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++

				depJob, known := jobs[dep]
				if !known {
					// Unknown dependency ids are handled by the
					// eligibility filter, not the cycle walk.
					continue
				}
				switch state[depJob.ID] {
				case unvisited:
					state[depJob.ID] = inProgress
					stack = append(stack, frame{id: depJob.ID})
				case inProgress:
					// Back edge: everything currently on the stack is on
					// a path into the cycle.
					for _, f := range stack {
						cyclic[f.id] = true
					}
				}
				continue
			}

			state[top.id] = done
			stack = stack[:len(stack)-1]
		}
	}

	return cyclic
}
