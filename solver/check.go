package solver

import (
	"fmt"
	"slices"
)

// Verify checks a result against the population it was solved from: no
// project above capacity, nobody placed twice or into a project they did not
// ask for, and every student accounted for exactly once.
func Verify(students []*Student, res Result, capacity int) error {
	seen := make(map[*Student]bool, len(students))
	for _, project := range res.Assignment.ProjectIDs() {
		members := res.Assignment[project]
		if len(members) > capacity {
			return fmt.Errorf("project %d over capacity: %d/%d students", project, len(members), capacity)
		}
		for _, s := range members {
			if seen[s] {
				return fmt.Errorf("student %q assigned more than once", s.Name)
			}
			seen[s] = true
			if !slices.Contains(s.Choices, project) {
				return fmt.Errorf("student %q placed in project %d they did not choose", s.Name, project)
			}
		}
	}
	for _, s := range res.Unassigned {
		if seen[s] {
			return fmt.Errorf("student %q is both assigned and unassigned", s.Name)
		}
		seen[s] = true
	}

	population := make(map[*Student]bool, len(students))
	for _, s := range students {
		if !seen[s] {
			return fmt.Errorf("student %q missing from result", s.Name)
		}
		population[s] = true
	}
	if len(seen) != len(population) {
		return fmt.Errorf("result holds %d students, population has %d", len(seen), len(population))
	}
	return nil
}
