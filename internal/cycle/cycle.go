// Package cycle computes how long a work item spent in each pipeline stage
// from its label-change history.
package cycle

import (
	"sort"
	"time"

	"taskpulse/internal/taxonomy"
)

const day = 24 * time.Hour

// Label change actions as reported upstream.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// Change is one entry of an item's label history.
type Change struct {
	Action string
	Label  string
	At     time.Time
}

// Metrics are whole days spent per stage. They are never negative.
type Metrics struct {
	ExecutionDays  int `json:"execution_days"`
	ReviewDays     int `json:"review_days"`
	FunctionalDays int `json:"functional_days"`
}

// Groups tells which canonical status a label belongs to.
type Groups interface {
	StatusOf(label string) (taxonomy.Status, bool)
}

// Milestones are the first times an item entered QA review and functional
// review. A zero time means the stage was never entered.
type Milestones struct {
	Review     time.Time
	Functional time.Time
}

// FindMilestones scans history in time order and records the first "add" of
// a label from the qa-review group and, independently, from the
// functional-review group. Later adds never move a milestone.
func FindMilestones(history []Change, groups Groups) Milestones {
	sorted := make([]Change, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	var m Milestones
	for _, c := range sorted {
		if c.Action != ActionAdd || c.At.IsZero() {
			continue
		}
		status, ok := groups.StatusOf(c.Label)
		if !ok {
			continue
		}
		switch status {
		case taxonomy.QAReview:
			if m.Review.IsZero() {
				m.Review = c.At
			}
		case taxonomy.FunctionalReview:
			if m.Functional.IsZero() {
				m.Functional = c.At
			}
		}
	}
	return m
}

// Compute derives stage durations for an item created at created, evaluated at
// now. Incomplete or inverted histories degrade to zero rather than failing.
func Compute(created, now time.Time, history []Change, groups Groups) Metrics {
	m := FindMilestones(history, groups)

	execEnd := now
	if !m.Review.IsZero() {
		execEnd = m.Review
	}
	out := Metrics{ExecutionDays: days(created, execEnd)}

	if !m.Review.IsZero() {
		reviewEnd := now
		if !m.Functional.IsZero() {
			reviewEnd = m.Functional
		}
		out.ReviewDays = days(m.Review, reviewEnd)
	}
	if !m.Functional.IsZero() {
		out.FunctionalDays = days(m.Functional, now)
	}
	return out
}

func days(from, to time.Time) int {
	if from.IsZero() || !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / day)
}
