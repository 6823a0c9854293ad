package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selection/solver"
)

func TestParseIntList(t *testing.T) {
	assert.Equal(t, []int{0, 1, 4}, parseIntList("0, 1,x,4"))
	assert.Nil(t, parseIntList(""))
}

func TestRunConfig(t *testing.T) {
	c := config{students: 60, projects: 10, params: solver.Params{Capacity: 6, DepthBound: 4}}

	results := runConfig(c, 5, 1)

	require.Len(t, results, 5)
	for _, r := range results {
		assert.True(t, r.verified)
		placed := 0
		for _, n := range r.satisfaction {
			placed += n
		}
		assert.Equal(t, c.students, placed+r.unassigned)
	}
	assert.Equal(t, results[0].unassigned, runConfig(c, 1, 1)[0].unassigned)
}
