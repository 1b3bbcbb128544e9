package testutil

import "testing"

// Given and When run setup steps as subtests. Later steps depend on them,
// so a failed setup step stops the enclosing test.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Given", desc, fn, true)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "When", desc, fn, true)
}

// Then and And run assertions. A failure is reported and the remaining
// siblings still run.
func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "Then", desc, fn, false)
}

func And(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	step(t, "And", desc, fn, false)
}

func step(t *testing.T, keyword, desc string, fn func(t *testing.T), stopOnFailure bool) {
	t.Helper()
	if !t.Run(keyword+" "+desc, fn) && stopOnFailure {
		t.FailNow()
	}
}
