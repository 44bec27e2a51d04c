package workbench

import (
	"strconv"

	"github.com/jason-s-yu/songdecks/internal/apperr"
)

// checkDependencies rejects giving task id the dependencies deps when that
// would let id reach itself. edges holds the stored graph, keyed by dependent
// task. The walk is iterative and visits each task at most once.
func checkDependencies(edges map[int64][]int64, id int64, deps []int64) error {
	for _, d := range deps {
		if d == id {
			return apperr.Validation("task %d cannot depend on itself", id).
				WithMetadata("task_id", strconv.FormatInt(id, 10))
		}
	}
	if id == 0 {
		// nothing depends on a task that does not exist yet
		return nil
	}

	limit := len(edges) + len(deps) + 1
	visited := make(map[int64]bool)
	type step struct{ task, via int64 }
	stack := make([]step, 0, len(deps))
	for _, d := range deps {
		stack = append(stack, step{task: d, via: d})
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.task == id {
			return apperr.Validation("dependency cycle: task %d depends on itself through task %d", id, cur.via).
				WithMetadata("task_id", strconv.FormatInt(id, 10)).
				WithMetadata("via", strconv.FormatInt(cur.via, 10))
		}
		if visited[cur.task] {
			continue
		}
		visited[cur.task] = true
		if len(visited) > limit {
			return apperr.Validation("dependency graph exceeds %d tasks", limit)
		}
		for _, next := range edges[cur.task] {
			stack = append(stack, step{task: next, via: cur.via})
		}
	}
	return nil
}
