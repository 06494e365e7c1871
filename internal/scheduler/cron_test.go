package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day int, hour, minute int) time.Time {
	// August 2026: the 20th is a Thursday (weekday 4).
	return time.Date(2026, 8, day, hour, minute, 0, 0, time.UTC)
}

func TestParseAndMatch(t *testing.T) {
	tests := []struct {
		expr    string
		match   []time.Time
		noMatch []time.Time
	}{
		{
			expr:    "* * * * *",
			match:   []time.Time{at(20, 0, 0), at(20, 23, 59)},
			noMatch: nil,
		},
		{
			expr:    "0 4 * * *",
			match:   []time.Time{at(20, 4, 0)},
			noMatch: []time.Time{at(20, 4, 1), at(20, 5, 0)},
		},
		{
			expr:    "*/15 * * * *",
			match:   []time.Time{at(20, 9, 0), at(20, 9, 15), at(20, 9, 45)},
			noMatch: []time.Time{at(20, 9, 7)},
		},
		{
			expr:    "30 8-17 * * *",
			match:   []time.Time{at(20, 8, 30), at(20, 17, 30)},
			noMatch: []time.Time{at(20, 7, 30), at(20, 18, 30)},
		},
		{
			expr:    "0 0 1,15 * *",
			match:   []time.Time{at(1, 0, 0), at(15, 0, 0)},
			noMatch: []time.Time{at(2, 0, 0)},
		},
		{
			// Thursdays only.
			expr:    "0 12 * * 4",
			match:   []time.Time{at(20, 12, 0)},
			noMatch: []time.Time{at(21, 12, 0)},
		},
		{
			expr:    "0-30/10 * * * *",
			match:   []time.Time{at(20, 9, 0), at(20, 9, 10), at(20, 9, 30)},
			noMatch: []time.Time{at(20, 9, 40)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			spec, err := Parse(tt.expr)
			require.NoError(t, err)
			for _, m := range tt.match {
				assert.True(t, spec.Matches(m), "expected match at %v", m)
			}
			for _, m := range tt.noMatch {
				assert.False(t, spec.Matches(m), "expected no match at %v", m)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	exprs := []string{
		"",
		"* * * *",
		"* * * * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * 32 * *",
		"* * * 13 *",
		"* * * * 7",
		"a * * * *",
		"*/0 * * * *",
		"5-2 * * * *",
	}
	for _, expr := range exprs {
		_, err := Parse(expr)
		assert.Error(t, err, "expr %q", expr)
	}
}

func TestValidAction(t *testing.T) {
	assert.True(t, ValidAction("say"))
	assert.True(t, ValidAction("command"))
	assert.True(t, ValidAction("shutdown"))
	assert.False(t, ValidAction("reboot"))
	assert.False(t, ValidAction(""))
}
