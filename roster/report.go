package roster

import (
	"bufio"
	"fmt"
	"io"

	"selection/solver"
)

// Report writes the progress of each phase, the students nobody could place,
// and every project's members in ascending project order.
func Report(w io.Writer, res solver.Result, params solver.Params) error {
	bw := bufio.NewWriter(w)

	total := res.Assignment.Placed() + len(res.Unassigned)
	fmt.Fprintln(bw, "Attempt to assign students to projects...")
	fmt.Fprintf(bw, "Students remaining: %d\n", total)

	remaining := total
	for _, ph := range res.Phases {
		if remaining == 0 {
			break
		}
		fmt.Fprintln(bw, describe(ph.Phase, params))
		fmt.Fprintf(bw, "Students remaining: %d\n", ph.Remaining)
		remaining = ph.Remaining
	}

	if len(res.Unassigned) > 0 {
		fmt.Fprintln(bw, "Unable to assign the following students:")
		for _, s := range res.Unassigned {
			fmt.Fprintf(bw, "   %s\n", s.Name)
		}
	}

	fmt.Fprintln(bw, "Assignments:")
	for _, project := range res.Assignment.ProjectIDs() {
		members := res.Assignment[project]
		fmt.Fprintf(bw, "   Project %d (%d students)\n", project, len(members))
		for _, s := range members {
			fmt.Fprintf(bw, "      %s\n", s.Name)
		}
	}

	if hist := solver.Satisfaction(res); len(hist) > 0 {
		fmt.Fprintln(bw, "Choice satisfaction:")
		for rank, n := range hist {
			fmt.Fprintf(bw, "   choice %d: %d students\n", rank+1, n)
		}
	}

	return bw.Flush()
}

func describe(p solver.Phase, params solver.Params) string {
	switch p {
	case solver.PhaseLowDemand:
		return fmt.Sprintf("Filling projects that have no more than %d requests...", params.Capacity)
	case solver.PhasePreference:
		return "Filling projects in order of student preference..."
	case solver.PhaseAugment:
		return "Making changes to try and assign remaining students..."
	}
	return p.String()
}
