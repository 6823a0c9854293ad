package solver

import (
	"context"
	"fmt"
	"maps"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func student(name string, choices ...int) *Student {
	return &Student{Name: name, Choices: choices}
}

func names(students []*Student) []string {
	out := make([]string, 0, len(students))
	for _, s := range students {
		out = append(out, s.Name)
	}
	return out
}

func layout(a Assignment) map[int][]string {
	out := map[int][]string{}
	for project, members := range a {
		out[project] = names(members)
	}
	return out
}

func randomPopulation(rng *rand.Rand, n, projects, choices int) []*Student {
	students := make([]*Student, 0, n)
	for i := range n {
		var picks []int
		want := rng.Intn(choices + 1)
		for len(picks) < min(want, projects) {
			p := rng.Intn(projects)
			if !slices.Contains(picks, p) {
				picks = append(picks, p)
			}
		}
		students = append(students, student(fmt.Sprintf("s%d", i), picks...))
	}
	return students
}

func TestBuildIndex(t *testing.T) {
	a := student("a", 3, 1)
	b := student("b", 1)
	c := student("c")
	d := student("d", 2, 3)

	idx := buildIndex([]*Student{a, b, c, d})

	assert.Equal(t, []int{3, 1, 2}, idx.order)
	assert.Equal(t, []*Student{a, d}, idx.requests[3])
	assert.Equal(t, []*Student{a, b}, idx.requests[1])
	assert.Equal(t, []*Student{d}, idx.requests[2])
	assert.Equal(t, 0, idx.demand(9))
}

func TestTrackerCapacity(t *testing.T) {
	tr := newTracker(context.Background(), 2)
	a, b, c := student("a", 0), student("b", 0), student("c", 0)

	assert.True(t, tr.tryAdd(0, a))
	assert.True(t, tr.tryAdd(0, b))
	assert.False(t, tr.tryAdd(0, c))
	assert.Equal(t, []*Student{a, b}, tr.assignment[0])
	assert.False(t, tr.assigned(c))

	tr.remove(0, a)
	assert.Equal(t, []*Student{b}, tr.assignment[0])
	assert.False(t, tr.assigned(a))

	assert.True(t, tr.tryAdd(0, c))
	project, ok := tr.placed[c]
	require.True(t, ok)
	assert.Equal(t, 0, project)

	tr.remove(0, a)
	assert.Len(t, tr.assignment[0], 2)
}

func TestTrackerRemoveKeepsNewHome(t *testing.T) {
	tr := newTracker(context.Background(), 1)
	a := student("a", 0, 1)
	require.True(t, tr.tryAdd(0, a))
	require.True(t, tr.tryAdd(1, a))

	tr.remove(0, a)

	project, ok := tr.placed[a]
	require.True(t, ok)
	assert.Equal(t, 1, project)
}

func TestLowDemandTiesKeepFirstAppearance(t *testing.T) {
	a := student("a", 4, 3)
	b := student("b", 3, 4)

	res := Solve([]*Student{a, b}, Params{Capacity: 2, DepthBound: 4})

	assert.Equal(t, map[int][]string{4: {"a", "b"}}, layout(res.Assignment))
	assert.Equal(t, 0, res.Phases[0].Remaining)
}

func TestLowDemandFillsWholeProjects(t *testing.T) {
	a := student("a", 1, 0)
	b := student("b", 0)
	c := student("c", 0)

	res := Solve([]*Student{a, b, c}, Params{Capacity: 3, DepthBound: 4})

	assert.Equal(t, map[int][]string{1: {"a"}, 0: {"b", "c"}}, layout(res.Assignment))
	assert.Empty(t, res.Unassigned)
	assert.Equal(t, PhaseStat{Phase: PhaseLowDemand, Remaining: 0}, res.Phases[0])
}

func TestLowDemandStopsAtFirstOverflow(t *testing.T) {
	tr := newTracker(context.Background(), 1)
	a := student("a", 0)
	b := student("b", 0, 1)
	c := student("c", 1)
	pool := []*Student{a, b, c}

	pool = fillLowDemand(tr, buildIndex(pool), pool)

	assert.Empty(t, tr.assignment)
	assert.Equal(t, []*Student{a, b, c}, pool)
}

func TestScenarioNoRoomToBump(t *testing.T) {
	s1, s2, s3 := student("S1", 0), student("S2", 0), student("S3", 0)

	res := Solve([]*Student{s1, s2, s3}, Params{Capacity: 2, DepthBound: 4})

	assert.Equal(t, map[int][]string{0: {"S3", "S2"}}, layout(res.Assignment))
	assert.Equal(t, []*Student{s1}, res.Unassigned)
	assert.Equal(t, []PhaseStat{
		{Phase: PhaseLowDemand, Remaining: 3},
		{Phase: PhasePreference, Remaining: 1},
		{Phase: PhaseAugment, Remaining: 1},
	}, res.Phases)
}

func TestScenarioSecondChoice(t *testing.T) {
	s1, s2 := student("S1", 0), student("S2", 0, 1)

	res := Solve([]*Student{s1, s2}, Params{Capacity: 1, DepthBound: 4})

	assert.Equal(t, map[int][]string{0: {"S1"}, 1: {"S2"}}, layout(res.Assignment))
	assert.Empty(t, res.Unassigned)
}

func TestScenarioBumpWithoutAlternative(t *testing.T) {
	s1, s2 := student("S1", 0), student("S2", 0)

	res := Solve([]*Student{s1, s2}, Params{Capacity: 1, DepthBound: 1})

	assert.Equal(t, map[int][]string{0: {"S2"}}, layout(res.Assignment))
	assert.Equal(t, []*Student{s1}, res.Unassigned)
}

func TestAugmentSingleBump(t *testing.T) {
	a := student("A", 0)
	b := student("B", 0, 2)
	x := student("X", 2, 3)

	res := Solve([]*Student{a, b, x}, Params{Capacity: 1, DepthBound: 4})

	assert.Equal(t, map[int][]string{0: {"A"}, 2: {"B"}, 3: {"X"}}, layout(res.Assignment))
	assert.Empty(t, res.Unassigned)
	assert.Equal(t, 1, res.Phases[PhasePreference].Remaining)
	assert.Equal(t, 0, res.Phases[PhaseAugment].Remaining)
}

func chainPopulation() []*Student {
	return []*Student{
		student("A", 0),
		student("B", 0, 1),
		student("C", 1, 2),
		student("D", 2, 3),
	}
}

func TestAugmentChainNeedsDepth(t *testing.T) {
	res := Solve(chainPopulation(), Params{Capacity: 1, DepthBound: 2})

	assert.Equal(t, map[int][]string{0: {"A"}, 1: {"B"}, 2: {"C"}, 3: {"D"}}, layout(res.Assignment))
	assert.Empty(t, res.Unassigned)

	shallow := Solve(chainPopulation(), Params{Capacity: 1, DepthBound: 1})

	assert.Equal(t, []string{"A"}, names(shallow.Unassigned))
	assert.Equal(t, map[int][]string{0: {"B"}, 1: {"C"}, 3: {"D"}}, layout(shallow.Assignment))
}

func TestPreferencePhaseNeverBumps(t *testing.T) {
	tr := newTracker(context.Background(), 1)
	a := student("A", 0)
	b := student("B", 0, 1)
	require.True(t, tr.tryAdd(0, b))

	pool := fillPreferences(tr, []*Student{a})

	assert.Equal(t, []*Student{a}, pool)
	assert.Equal(t, []*Student{b}, tr.assignment[0])
	assert.Empty(t, tr.assignment[1])
}

func TestFailedSearchLeavesAssignmentUntouched(t *testing.T) {
	tr := newTracker(context.Background(), 1)
	b := student("B", 0, 1)
	c := student("C", 1, 2)
	d := student("D", 2)
	require.True(t, tr.tryAdd(0, b))
	require.True(t, tr.tryAdd(1, c))
	require.True(t, tr.tryAdd(2, d))
	before := layout(tr.assignment)
	placed := maps.Clone(tr.placed)

	ok := tr.search(student("A", 0), nil, 4)

	assert.False(t, ok)
	assert.Equal(t, before, layout(tr.assignment))
	assert.Equal(t, placed, tr.placed)
}

// fullChain fills projects 0..n-1 with one student each, where the student
// in project i can move on to i+1. Only project n has room.
func fullChain(t *testing.T, tr *tracker, n int) {
	t.Helper()
	for i := range n {
		require.True(t, tr.tryAdd(i, student(fmt.Sprintf("o%d", i), i, i+1)))
	}
}

func TestSearchChainLengthFollowsBound(t *testing.T) {
	for n := 1; n <= 5; n++ {
		tr := newTracker(context.Background(), 1)
		fullChain(t, tr, n)
		before := layout(tr.assignment)

		assert.False(t, tr.search(student("A", 0), nil, n-1), "chain of %d with bound %d", n, n-1)
		assert.Equal(t, before, layout(tr.assignment))

		require.True(t, tr.search(student("A", 0), nil, n), "chain of %d with bound %d", n, n)
		assert.Equal(t, []string{"A"}, names(tr.assignment[0]))
		assert.Equal(t, []string{fmt.Sprintf("o%d", n-1)}, names(tr.assignment[n]))
	}
}

func denseStudents(rng *rand.Rand, n, projects, choices int) []*Student {
	students := make([]*Student, 0, n)
	for i := range n {
		picks := rng.Perm(projects)[:choices]
		students = append(students, student(fmt.Sprintf("s%d", i), picks...))
	}
	return students
}

func TestSolveContextCancelled(t *testing.T) {
	students := denseStudents(rand.New(rand.NewSource(3)), 160, 24, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := SolveContext(ctx, students, DefaultParams)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Phases, 3)
	assert.Equal(t, res.Phases[PhaseLowDemand].Remaining, res.Phases[PhaseAugment].Remaining)
	assert.NoError(t, Verify(students, res, DefaultParams.Capacity))
}

func TestSolveContextDeadline(t *testing.T) {
	students := denseStudents(rand.New(rand.NewSource(3)), 160, 24, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := SolveContext(ctx, students, DefaultParams)

	assert.Less(t, time.Since(start), 5*time.Second)
	if err != nil {
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.NoError(t, Verify(students, res, DefaultParams.Capacity))
}

func TestSolveInvariants(t *testing.T) {
	for seed := range int64(50) {
		rng := rand.New(rand.NewSource(seed))
		students := randomPopulation(rng, 40+rng.Intn(120), 4+rng.Intn(20), 4)
		params := Params{Capacity: 1 + rng.Intn(6), DepthBound: rng.Intn(6)}

		res := Solve(students, params)

		require.NoError(t, Verify(students, res, params.Capacity), "seed %d", seed)
		require.Len(t, res.Phases, 3)
		prev := len(students)
		for _, ph := range res.Phases {
			assert.LessOrEqual(t, ph.Remaining, prev, "seed %d phase %s", seed, ph.Phase)
			prev = ph.Remaining
		}
		assert.Equal(t, len(res.Unassigned), res.Phases[PhaseAugment].Remaining)
		assert.Equal(t, len(students), res.Assignment.Placed()+len(res.Unassigned))
	}
}

func TestSolveDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	students := randomPopulation(rng, 144, 24, 3)
	input := slices.Clone(students)

	first := Solve(students, DefaultParams)
	second := Solve(students, DefaultParams)

	assert.Equal(t, layout(first.Assignment), layout(second.Assignment))
	assert.Equal(t, names(first.Unassigned), names(second.Unassigned))
	assert.Equal(t, input, students)
}

func TestSolveEmpty(t *testing.T) {
	res := Solve(nil, DefaultParams)

	assert.Empty(t, res.Assignment)
	assert.Empty(t, res.Unassigned)
	assert.Len(t, res.Phases, 3)
	assert.NoError(t, Verify(nil, res, DefaultParams.Capacity))
}

func TestStudentWithoutChoicesStaysUnassigned(t *testing.T) {
	lonely := student("lonely")
	res := Solve([]*Student{student("a", 0), lonely}, DefaultParams)

	assert.Equal(t, []*Student{lonely}, res.Unassigned)
}

func TestSatisfaction(t *testing.T) {
	a := student("A", 0)
	b := student("B", 0, 2)
	x := student("X", 2, 3)

	res := Solve([]*Student{a, b, x}, Params{Capacity: 1, DepthBound: 4})

	assert.Equal(t, []int{1, 2}, Satisfaction(res))
}

func TestVerifyCatchesViolations(t *testing.T) {
	a, b := student("a", 0), student("b", 0, 1)
	students := []*Student{a, b}

	err := Verify(students, Result{Assignment: Assignment{0: {a, b}}}, 1)
	assert.ErrorContains(t, err, "over capacity")

	err = Verify(students, Result{Assignment: Assignment{0: {a}, 1: {a}}, Unassigned: []*Student{b}}, 2)
	assert.ErrorContains(t, err, "more than once")

	err = Verify(students, Result{Assignment: Assignment{1: {a}}, Unassigned: []*Student{b}}, 2)
	assert.ErrorContains(t, err, "did not choose")

	err = Verify(students, Result{Assignment: Assignment{0: {a}}}, 2)
	assert.ErrorContains(t, err, "missing")

	err = Verify(students, Result{Assignment: Assignment{0: {a}}, Unassigned: []*Student{a, b}}, 2)
	assert.ErrorContains(t, err, "both assigned and unassigned")
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "low_demand", PhaseLowDemand.String())
	assert.Equal(t, "preference", PhasePreference.String())
	assert.Equal(t, "augment", PhaseAugment.String())
	assert.Equal(t, "unknown", Phase(9).String())
}
