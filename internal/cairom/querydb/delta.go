package querydb

import "github.com/cairo-m/cairom/internal/cairom/diag"

// DeltaTracker remembers the last published diagnostic set per module so a
// recompute that leaves a module's diagnostics unchanged doesn't re-publish
// them (spec §4.1's "Delta Diagnostics Tracker"), which matters for the
// cooperative diagnostics controller (spec §5): an editor should only be
// told about a module when something in it actually changed.
type DeltaTracker struct {
	published map[string][]diag.Diagnostic
}

// NewDeltaTracker creates an empty tracker.
func NewDeltaTracker() *DeltaTracker {
	return &DeltaTracker{published: make(map[string][]diag.Diagnostic)}
}

// Update compares fresh diagnostics for module against what was last
// published and returns (delta, changed). changed is false, and delta is
// nil, when the new set is identical to the last published one.
func (t *DeltaTracker) Update(module string, fresh []diag.Diagnostic) (delta []diag.Diagnostic, changed bool) {
	prev, ok := t.published[module]
	if ok && sameDiagnostics(prev, fresh) {
		return nil, false
	}
	t.published[module] = fresh
	return fresh, true
}

// Forget drops a module's published state, e.g. when it's removed from the
// project (multi-file module graph, SPEC_FULL.md's supplemented feature).
func (t *DeltaTracker) Forget(module string) {
	delete(t.published, module)
}

func sameDiagnostics(a, b []diag.Diagnostic) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Severity != b[i].Severity ||
			a[i].Code != b[i].Code ||
			a[i].Message != b[i].Message ||
			a[i].Span != b[i].Span ||
			!sameLabels(a[i].Labels, b[i].Labels) {
			return false
		}
	}
	return true
}

func sameLabels(a, b []diag.Label) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
