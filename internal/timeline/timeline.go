/* SPDX-License-Identifier: BSD-3-Clause */

// Package timeline replays an item's unordered status change events into a
// gap-free state history covering the item's whole existence from creation
// to "now" (or its resolution timestamp).
package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/YHatahet/jira-stats/internal/domain"
)

// InitialStatus is the synthetic state every timeline starts in; no change
// event can precede creation.
const InitialStatus = "Open"

// UnknownStatus stands in for status events missing a from/to string.
const UnknownStatus = "Unknown"

// Result is one item's reconstructed history.
type Result struct {
	Key         string
	Intervals   map[string]domain.StateInterval
	Transitions map[domain.Transition]int
	Reopens     []domain.ReopenFlag
}

// Reconstruct replays events for one item. Events need not be ordered; they
// are stable-sorted by timestamp so same-instant changes keep their input
// order (zero-duration intervals are valid and still count an occurrence).
// Non-status events are ignored. The sum of all interval hours equals
// now−created.
func Reconstruct(key string, created, now time.Time, events []domain.ChangeEvent) *Result {
	r := &Result{
		Key:         key,
		Intervals:   map[string]domain.StateInterval{},
		Transitions: map[domain.Transition]int{},
	}
	statusEvents := make([]domain.ChangeEvent, 0, len(events))
	for _, ev := range events {
		if ev.Field == "status" { statusEvents = append(statusEvents, ev) }
	}
	sort.SliceStable(statusEvents, func(i, j int) bool {
		return statusEvents[i].At.Before(statusEvents[j].At)
	})

	cursor := created
	current := InitialStatus
	seen := map[string]struct{}{}
	for _, ev := range statusEvents {
		from, to := ev.From, ev.To
		if from == "" { from = UnknownStatus }
		if to == "" { to = UnknownStatus }
		elapsed := ev.At.Sub(cursor).Hours()
		if elapsed < 0 { elapsed = 0 }
		accumulate(r.Intervals, from, elapsed)
		r.Transitions[domain.Transition{From: from, To: to}]++
		if _, ok := seen[to]; ok {
			r.Reopens = append(r.Reopens, domain.ReopenFlag{
				Key:     key,
				Pattern: fmt.Sprintf("%s -> %s (Repeated)", from, to),
			})
		}
		seen[from] = struct{}{}
		seen[to] = struct{}{}
		cursor = ev.At
		current = to
	}
	// the item's present state runs up to now; with zero status events the
	// whole lifetime lands on the synthetic initial status
	tail := now.Sub(cursor).Hours()
	if tail < 0 { tail = 0 }
	accumulate(r.Intervals, current, tail)
	return r
}

func accumulate(m map[string]domain.StateInterval, status string, hours float64) {
	iv := m[status]
	iv.Status = status
	iv.Hours += hours
	iv.Count++
	m[status] = iv
}
