package testutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/itsluminous/Letters/internal/backend"
)

// MustNoErr fails the test immediately if err is non-nil.
func MustNoErr(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// AssertKind asserts that err is classified as want.
func AssertKind(t *testing.T, err error, want backend.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := backend.KindOf(err); got != want {
		t.Errorf("error kind = %s, want %s (err: %v)", got, want, err)
	}
}

// AssertErrorIs asserts that errors.Is(err, target).
func AssertErrorIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("error = %v, want errors.Is %v", err, target)
	}
}

// AssertContainsAll asserts that got contains every substring in subs.
func AssertContainsAll(t *testing.T, got string, subs []string) {
	t.Helper()
	for _, substr := range subs {
		if !strings.Contains(got, substr) {
			t.Errorf("result missing %q:\n%s", substr, got)
		}
	}
}

// AssertStrings compares two string slices element-by-element.
func AssertStrings(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("got len %d, want %d: %v", len(got), len(want), got)
		return
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("at index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
