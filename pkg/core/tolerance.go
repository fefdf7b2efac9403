package core

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Tolerance bounds the difference accepted between an expected and an
// observed invariant measure. The zero value requires equality.
type Tolerance struct {
	Relative bool
	Value    float64
}

// epsilon absorbs float rounding in sums computed by different engines.
const epsilon = 1e-9

var tolerancePattern = regexp.MustCompile(`^(relative|absolute)\(\s*([^)]+?)\s*\)$`)

// ParseTolerance parses "relative(x)", "absolute(x)" or a bare number,
// which is absolute. Empty means exact.
func ParseTolerance(s string) (Tolerance, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Tolerance{}, nil
	}

	kind, num := "absolute", s
	if m := tolerancePattern.FindStringSubmatch(s); m != nil {
		kind, num = m[1], m[2]
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return Tolerance{}, fmt.Errorf("invalid tolerance %q, expected relative(x), absolute(x) or a non-negative number", s)
	}
	return Tolerance{Relative: kind == "relative", Value: v}, nil
}

// Within reports whether observed is within the tolerance of expected.
func (t Tolerance) Within(expected, observed float64) bool {
	limit := t.Value
	if t.Relative {
		limit = t.Value * math.Abs(expected)
	}
	return math.Abs(observed-expected) <= limit+epsilon
}

// String renders the tolerance in the form ParseTolerance accepts.
func (t Tolerance) String() string {
	if t.Value == 0 && !t.Relative {
		return "exact"
	}
	kind := "absolute"
	if t.Relative {
		kind = "relative"
	}
	return kind + "(" + strconv.FormatFloat(t.Value, 'g', -1, 64) + ")"
}

// Tolerance returns the tolerance of an invariant block.
func (b *Block) Tolerance() (Tolerance, error) {
	v, ok := b.Params.Get("tolerance")
	if !ok || v.IsNull() {
		return Tolerance{}, nil
	}
	return ParseTolerance(v.Text())
}
