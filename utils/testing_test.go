package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestTesting_AssertErrorIs(t *testing.T) {
	base := errors.New("base")
	AssertErrorIs(t, fmt.Errorf("wrapped: %w", base), base)
}

func TestTesting_AssertDiff(t *testing.T) {
	AssertDiff(t, []string{"a", "b"}, []string{"a", "b"})
}
