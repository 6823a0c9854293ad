package solver

import (
	"context"
	"slices"
)

// Student is one entity to place. Choices are project ids, most preferred
// first, without duplicates. The solver never modifies a Student; identity is
// the pointer, so two students may share a name.
type Student struct {
	Name    string
	Choices []int
}

type Params struct {
	// Capacity is the per-project ceiling, shared by every project.
	Capacity int
	// DepthBound limits how many projects one augmenting chain may visit
	// before it stops bumping.
	DepthBound int
}

var DefaultParams = Params{
	Capacity:   6,
	DepthBound: 4,
}

// Assignment maps a project id to its students in the order they were placed.
type Assignment map[int][]*Student

// ProjectIDs returns the ids present in the assignment in ascending order.
func (a Assignment) ProjectIDs() []int {
	ids := make([]int, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Placed returns the number of assigned students.
func (a Assignment) Placed() int {
	n := 0
	for _, members := range a {
		n += len(members)
	}
	return n
}

type Phase int

const (
	PhaseLowDemand Phase = iota
	PhasePreference
	PhaseAugment
)

func (p Phase) String() string {
	switch p {
	case PhaseLowDemand:
		return "low_demand"
	case PhasePreference:
		return "preference"
	case PhaseAugment:
		return "augment"
	}
	return "unknown"
}

// PhaseStat records how many students were still unplaced when a phase ended.
type PhaseStat struct {
	Phase     Phase
	Remaining int
}

type Result struct {
	Assignment Assignment
	// Unassigned keeps the relative input order of the students left over.
	Unassigned []*Student
	Phases     []PhaseStat
}

// Solve places students into projects in three passes sharing one assignment:
// whole low-demand projects first, then each student's first open choice, then
// bounded bumping chains for whoever is left. The input slice is not modified
// and the result depends only on its order.
func Solve(students []*Student, params Params) Result {
	res, _ := SolveContext(context.Background(), students, params)
	return res
}

// SolveContext is Solve with cancellation. Once ctx is done the remaining
// searches give up, and the partial but valid result is returned with
// ctx.Err().
func SolveContext(ctx context.Context, students []*Student, params Params) (Result, error) {
	t := newTracker(ctx, params.Capacity)
	pool := slices.Clone(students)
	phases := make([]PhaseStat, 0, 3)

	pool = fillLowDemand(t, buildIndex(pool), pool)
	phases = append(phases, PhaseStat{Phase: PhaseLowDemand, Remaining: len(pool)})

	pool = fillPreferences(t, pool)
	phases = append(phases, PhaseStat{Phase: PhasePreference, Remaining: len(pool)})

	pool = augment(t, pool, params.DepthBound)
	phases = append(phases, PhaseStat{Phase: PhaseAugment, Remaining: len(pool)})

	return Result{
		Assignment: t.assignment,
		Unassigned: pool,
		Phases:     phases,
	}, ctx.Err()
}

// Satisfaction counts placed students by the rank of the choice they received:
// index 0 is first choice.
func Satisfaction(res Result) []int {
	var hist []int
	for project, members := range res.Assignment {
		for _, s := range members {
			rank := slices.Index(s.Choices, project)
			if rank < 0 {
				continue
			}
			for len(hist) <= rank {
				hist = append(hist, 0)
			}
			hist[rank]++
		}
	}
	return hist
}
