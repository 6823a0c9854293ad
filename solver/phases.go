package solver

import "slices"

// fillLowDemand assigns every requester of a project whose demand fits within
// capacity, visiting projects by ascending demand. Ties keep first-appearance
// order. The pass stops at the first project whose demand exceeds capacity,
// even if cheaper projects happen to sort after it.
func fillLowDemand(t *tracker, idx index, pool []*Student) []*Student {
	order := slices.Clone(idx.order)
	slices.SortStableFunc(order, func(a, b int) int {
		return idx.demand(a) - idx.demand(b)
	})

	for _, project := range order {
		if idx.demand(project) > t.capacity {
			break
		}
		for _, s := range idx.requests[project] {
			if t.assigned(s) {
				continue
			}
			if !t.tryAdd(project, s) {
				break
			}
		}
	}

	return slices.DeleteFunc(pool, t.assigned)
}

// fillPreferences puts each student into their first choice with room. No one
// is bumped.
func fillPreferences(t *tracker, pool []*Student) []*Student {
	return placeEach(t, pool, 0)
}

// augment runs one bumping search per remaining student.
func augment(t *tracker, pool []*Student, bound int) []*Student {
	return placeEach(t, pool, bound)
}

// placeEach walks the pool from the back so removals leave unvisited
// entries in place. It stops early once the tracker's context is done.
func placeEach(t *tracker, pool []*Student, bound int) []*Student {
	for i := len(pool) - 1; i >= 0 && t.ctx.Err() == nil; i-- {
		if t.search(pool[i], nil, bound) {
			pool = slices.Delete(pool, i, i+1)
		}
	}
	return pool
}

// search places s into one of its choices, bumping current occupants into
// their own other choices when a project is full. visited holds the projects
// already on this chain; once it grows past bound, or the context is done,
// the chain gives up.
// The assignment only changes after a deeper call has succeeded, so a failed
// search leaves it untouched.
func (t *tracker) search(s *Student, visited map[int]bool, bound int) bool {
	if len(visited) > bound || t.cancelled() {
		return false
	}

	for _, project := range s.Choices {
		if visited[project] {
			continue
		}
		if t.tryAdd(project, s) {
			return true
		}
		for _, occupant := range t.assignment[project] {
			if t.search(occupant, extend(visited, project), bound) {
				t.remove(project, occupant)
				t.tryAdd(project, s)
				return true
			}
		}
	}
	return false
}

// extend copies visited and adds project, so sibling branches never see each
// other's projects.
func extend(visited map[int]bool, project int) map[int]bool {
	next := make(map[int]bool, len(visited)+1)
	for p := range visited {
		next[p] = true
	}
	next[project] = true
	return next
}
