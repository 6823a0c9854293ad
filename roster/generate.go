package roster

import (
	"fmt"
	"math/rand"
	"slices"

	"selection/solver"
)

// ChoicesPerStudent is how many projects each generated student ranks.
const ChoicesPerStudent = 3

// Generate creates count students named "Student i", each ranking
// ChoicesPerStudent distinct projects drawn uniformly from [0, projects).
func Generate(rng *rand.Rand, count, projects int) []*solver.Student {
	want := max(0, min(ChoicesPerStudent, projects))
	students := make([]*solver.Student, 0, max(count, 0))
	for i := range count {
		students = append(students, &solver.Student{
			Name:    fmt.Sprintf("Student %d", i),
			Choices: generateChoices(rng, projects, want),
		})
	}
	return students
}

func generateChoices(rng *rand.Rand, projects, want int) []int {
	choices := make([]int, 0, want)
	for len(choices) < want {
		choice := rng.Intn(projects)
		if !slices.Contains(choices, choice) {
			choices = append(choices, choice)
		}
	}
	return choices
}
