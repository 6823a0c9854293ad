package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"selection/roster"
	"selection/solver"
)

type runResult struct {
	unassigned   int
	satisfaction []int
	verified     bool
	elapsed      time.Duration
}

type config struct {
	students int
	projects int
	params   solver.Params
}

func (c config) label() string {
	return fmt.Sprintf("students=%d projects=%d capacity=%d depth=%d",
		c.students, c.projects, c.params.Capacity, c.params.DepthBound)
}

func runConfig(c config, runs int, seed int64) []runResult {
	results := make([]runResult, 0, runs)
	for run := range runs {
		rng := rand.New(rand.NewSource(seed + int64(run*31337)))
		students := roster.Generate(rng, c.students, c.projects)

		start := time.Now()
		res := solver.Solve(students, c.params)
		elapsed := time.Since(start)

		results = append(results, runResult{
			unassigned:   len(res.Unassigned),
			satisfaction: solver.Satisfaction(res),
			verified:     solver.Verify(students, res, c.params.Capacity) == nil,
			elapsed:      elapsed,
		})
	}
	return results
}

func printStats(label string, results []runResult) {
	runs := len(results)
	if runs == 0 {
		return
	}

	var totalTime time.Duration
	unassigned := map[int]int{}
	var ranks []int
	placed := 0
	verified := 0
	for _, r := range results {
		totalTime += r.elapsed
		unassigned[r.unassigned]++
		for rank, n := range r.satisfaction {
			for len(ranks) <= rank {
				ranks = append(ranks, 0)
			}
			ranks[rank] += n
			placed += n
		}
		if r.verified {
			verified++
		}
	}

	fmt.Printf("--- %s ---\n", label)
	fmt.Printf("  avg time: %v\n", totalTime/time.Duration(runs))
	fmt.Printf("  verified: %d/%d runs\n", verified, runs)

	counts := make([]int, 0, len(unassigned))
	for n := range unassigned {
		counts = append(counts, n)
	}
	sort.Ints(counts)
	fmt.Printf("  unassigned distribution:\n")
	for _, n := range counts {
		c := unassigned[n]
		fmt.Printf("    %d unassigned: %d/%d runs (%.0f%%)\n", n, c, runs, float64(c)/float64(runs)*100)
	}

	if placed > 0 {
		fmt.Printf("  choice received: ")
		for rank, n := range ranks {
			if rank > 0 {
				fmt.Print(", ")
			}
			fmt.Printf("#%d %.1f%%", rank+1, float64(n)/float64(placed)*100)
		}
		fmt.Println()
	}
	fmt.Println()
}

func main() {
	runs := flag.Int("runs", 20, "number of generated populations per parameter set")
	seed := flag.Int64("seed", 0, "base seed for generated populations")
	students := flag.String("students", "144", "comma-separated population sizes")
	projects := flag.String("projects", "24", "comma-separated project counts")
	capacities := flag.String("capacity", "6", "comma-separated per-project capacities")
	depths := flag.String("depth", "0,1,2,4,8", "comma-separated augmenting depth bounds")
	flag.Parse()

	if *runs <= 0 {
		fmt.Fprintln(os.Stderr, "runs must be positive")
		os.Exit(1)
	}

	fmt.Printf("Runs per config: %d, base seed: %d\n\n", *runs, *seed)

	for _, ns := range parseIntList(*students) {
		for _, np := range parseIntList(*projects) {
			for _, capacity := range parseIntList(*capacities) {
				for _, depth := range parseIntList(*depths) {
					c := config{
						students: ns,
						projects: np,
						params:   solver.Params{Capacity: capacity, DepthBound: depth},
					}
					printStats(c.label(), runConfig(c, *runs, *seed))
				}
			}
		}
	}
}

func parseIntList(s string) []int {
	parts := strings.Split(s, ",")
	var result []int
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil {
			result = append(result, v)
		}
	}
	return result
}
