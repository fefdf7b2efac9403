package core

import (
	"fmt"
	"strings"
)

// Severity decides what a failed test or invariant does to its step.
type Severity int

// Severity levels for checks.
const (
	// SeverityError fails the step.
	SeverityError Severity = iota
	// SeverityWarning is reported and logged; the step still succeeds.
	SeverityWarning
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a "severity" parameter. Empty means SeverityError.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return SeverityError, nil
	case "warn", "warning":
		return SeverityWarning, nil
	default:
		return SeverityError, fmt.Errorf("invalid severity %q, expected error or warning", s)
	}
}

// Severity returns the severity of a test or invariant block.
func (b *Block) Severity() (Severity, error) {
	return ParseSeverity(b.Params.StringOr("severity", ""))
}
