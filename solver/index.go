package solver

// index maps each requested project to the students who listed it at any
// rank. order holds project ids by first appearance.
type index struct {
	order    []int
	requests map[int][]*Student
}

func buildIndex(students []*Student) index {
	idx := index{requests: map[int][]*Student{}}
	for _, s := range students {
		for _, project := range s.Choices {
			if _, ok := idx.requests[project]; !ok {
				idx.order = append(idx.order, project)
			}
			idx.requests[project] = append(idx.requests[project], s)
		}
	}
	return idx
}

func (idx index) demand(project int) int {
	return len(idx.requests[project])
}
