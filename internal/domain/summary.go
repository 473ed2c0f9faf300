package domain

import "fmt"

// StageCounts tallies the units of one reconciliation stage.
type StageCounts struct {
	Updated int
	Skipped int
	Failed  int
	// Invalid counts station-days the provider marked as having no
	// schedule at all. Stage 3 only.
	Invalid int
}

// Total returns the number of units the stage examined.
func (c StageCounts) Total() int {
	return c.Updated + c.Skipped + c.Failed + c.Invalid
}

// UnitFailure records one failed unit for the end-of-run report.
type UnitFailure struct {
	Stage string
	Unit  string
	Err   error
}

func (f UnitFailure) String() string {
	return fmt.Sprintf("%s %s: %v", f.Stage, f.Unit, f.Err)
}

// RunSummary aggregates the outcome of one reconciliation run.
// Per-unit failures are accumulated here and reported at run end,
// never silently dropped.
type RunSummary struct {
	LineupsChanged bool
	Lineups        StageCounts
	ScheduleDays   StageCounts
	Programs       StageCounts

	// DanglingStations lists stations with the query flag set that are
	// no longer a member of any subscribed lineup.
	DanglingStations []Station

	Failures []UnitFailure
}

// AddFailure records a failed unit.
func (s *RunSummary) AddFailure(stage, unit string, err error) {
	s.Failures = append(s.Failures, UnitFailure{Stage: stage, Unit: unit, Err: err})
}
