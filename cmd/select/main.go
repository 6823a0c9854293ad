package main

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"selection/roster"
	"selection/solver"
)

const (
	defaultStudents = 144
	defaultProjects = 24
)

func newRootCmd(rng *rand.Rand) *cobra.Command {
	return &cobra.Command{
		Use:   "select [roster.csv]",
		Short: "Assign students to projects from their ranked choices",
		Long: `select reads a roster whose first column is a student name and whose
remaining columns are project ids in order of preference. Without a roster it
generates a random population of students.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, rng)
		},
	}
}

func run(cmd *cobra.Command, args []string, rng *rand.Rand) error {
	params := solver.DefaultParams
	out := cmd.OutOrStdout()

	var students []*solver.Student
	if len(args) > 0 {
		var err error
		students, err = roster.Load(args[0])
		switch {
		case errors.Is(err, roster.ErrNotFound):
			fmt.Fprintf(out, "File not found: '%s'\n", args[0])
		case err != nil:
			return fmt.Errorf("loading %s: %w", args[0], err)
		}
	} else {
		students = roster.Generate(rng, defaultStudents, defaultProjects)
	}

	res := solver.Solve(students, params)
	if err := solver.Verify(students, res, params.Capacity); err != nil {
		return fmt.Errorf("invalid assignment: %w", err)
	}
	return roster.Report(out, res, params)
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("select: ")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if err := newRootCmd(rng).Execute(); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}
