// Package roster reads, generates, and prints student populations for the
// solver.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"

	"selection/solver"
)

// skipToken marks a spreadsheet cell with no choice in it.
const skipToken = "#N/A"

var (
	ErrNotFound  = errors.New("roster not found")
	ErrMalformed = errors.New("malformed choice")
)

// Load reads a roster file. A missing path, or one that is not a regular
// file, yields an empty population and an error wrapping ErrNotFound so
// callers can report it and carry on.
func Load(path string) ([]*solver.Student, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return []*solver.Student{}, fmt.Errorf("%w: '%s'", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads comma separated rows after a header row: the name first, then
// project ids in order of preference. Blank cells and #N/A are skipped, and a
// repeated id keeps only its best rank.
func Parse(r io.Reader) ([]*solver.Student, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	students := []*solver.Student{}
	header := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading roster: %w", err)
		}
		if header {
			header = false
			continue
		}

		student := &solver.Student{Name: strings.TrimSpace(record[0])}
		for i, field := range record[1:] {
			value := strings.TrimSpace(field)
			if value == "" || value == skipToken {
				continue
			}
			choice, err := strconv.Atoi(value)
			if err != nil {
				line, _ := cr.FieldPos(i + 1)
				return nil, fmt.Errorf("line %d: %w %q for %s", line, ErrMalformed, value, student.Name)
			}
			if slices.Contains(student.Choices, choice) {
				continue
			}
			student.Choices = append(student.Choices, choice)
		}
		students = append(students, student)
	}
	return students, nil
}
