package solver

import (
	"context"
	"slices"
)

// cancelCheckInterval is how many search calls pass between context checks.
const cancelCheckInterval = 1024

// tracker owns project membership. Nothing else writes to the assignment.
type tracker struct {
	capacity   int
	assignment Assignment
	placed     map[*Student]int

	// ctx stops a long search early; calls counts search calls since the
	// last check.
	ctx   context.Context
	calls int
}

func newTracker(ctx context.Context, capacity int) *tracker {
	return &tracker{
		capacity:   capacity,
		assignment: Assignment{},
		placed:     map[*Student]int{},
		ctx:        ctx,
	}
}

func (t *tracker) tryAdd(project int, s *Student) bool {
	members := t.assignment[project]
	if len(members) >= t.capacity {
		return false
	}
	t.assignment[project] = append(members, s)
	t.placed[s] = project
	return true
}

func (t *tracker) remove(project int, s *Student) {
	members := t.assignment[project]
	i := slices.Index(members, s)
	if i < 0 {
		return
	}
	t.assignment[project] = slices.Delete(members, i, i+1)
	// A bumped student is already in its new project by the time it leaves
	// the old one.
	if t.placed[s] == project {
		delete(t.placed, s)
	}
}

func (t *tracker) assigned(s *Student) bool {
	_, ok := t.placed[s]
	return ok
}

// cancelled reports whether the context is done, checking it only once every
// cancelCheckInterval calls.
func (t *tracker) cancelled() bool {
	t.calls++
	if t.calls < cancelCheckInterval {
		return false
	}
	t.calls = 0
	return t.ctx.Err() != nil
}
