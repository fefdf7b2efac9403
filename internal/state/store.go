// Package state records run history for etlite in SQLite: pipeline runs,
// the step runs inside them, the test and invariant results of every step
// run, and the fingerprints of the step files that were executed.
package state

import (
	"fmt"

	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/zeebo/xxh3"
)

type (
	// Store is an alias for core.Store.
	Store = core.Store

	// Run is an alias for core.Run.
	Run = core.Run

	// StepRun is an alias for core.StepRun.
	StepRun = core.StepRun

	// CheckResult is an alias for core.CheckResult.
	CheckResult = core.CheckResult
)

// Fingerprint returns the content hash stored for a step file.
func Fingerprint(content []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(content))
}

var _ core.Store = (*SQLiteStore)(nil)
