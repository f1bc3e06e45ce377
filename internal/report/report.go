/* SPDX-License-Identifier: BSD-3-Clause */

// Package report folds per-item results into the caller-facing summaries.
// All folds are commutative (sums and set unions), so per-item results may
// arrive in any order; only the final bottleneck sort is order-sensitive and
// it runs after the fold completes.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/YHatahet/jira-stats/internal/domain"
	"github.com/YHatahet/jira-stats/internal/timeline"
)

// FoldTimelines merges a completed batch of timeline results into one
// workflow summary. Bottleneck ties keep their sort-input order, which is
// unspecified.
func FoldTimelines(results []*timeline.Result) *domain.WorkflowSummary {
	intervals := map[string]domain.StateInterval{}
	transitions := map[string]int{}
	reopens := []domain.ReopenFlag{}
	for _, r := range results {
		for status, iv := range r.Intervals {
			agg := intervals[status]
			agg.Status = status
			agg.Hours += iv.Hours
			agg.Count += iv.Count
			intervals[status] = agg
		}
		for tr, n := range r.Transitions {
			transitions[fmt.Sprintf("%s -> %s", tr.From, tr.To)] += n
		}
		reopens = append(reopens, r.Reopens...)
	}

	bottlenecks := make([]domain.BottleneckEntry, 0, len(intervals))
	for status, iv := range intervals {
		avg := 0.0
		if iv.Count > 0 { avg = iv.Hours / float64(iv.Count) }
		bottlenecks = append(bottlenecks, domain.BottleneckEntry{Status: status, AvgHours: avg})
	}
	sort.SliceStable(bottlenecks, func(i, j int) bool {
		return bottlenecks[i].AvgHours > bottlenecks[j].AvgHours
	})

	return &domain.WorkflowSummary{
		Analyzed:    len(results),
		Transitions: transitions,
		Bottlenecks: bottlenecks,
		Reopens:     reopens,
	}
}

// TimeAnalysis computes age/resolution/stalled/spike statistics from raw
// timestamps; no timeline reconstruction involved.
func TimeAnalysis(items []domain.WorkItem, now time.Time, stalledDays int) *domain.TimeSummary {
	if stalledDays <= 0 { stalledDays = 14 }
	out := &domain.TimeSummary{
		Total:           len(items),
		Stalled:         []domain.StalledRecord{},
		CreatedPerWeek:  map[string]int{},
		ResolvedPerWeek: map[string]int{},
	}
	var ageSum, resSum float64
	for _, it := range items {
		if it.Created != nil {
			out.CreatedPerWeek[weekKey(*it.Created)]++
		}
		if it.Resolved != nil {
			out.ResolvedCount++
			out.ResolvedPerWeek[weekKey(*it.Resolved)]++
			if it.Created != nil {
				resSum += it.Resolved.Sub(*it.Created).Hours() / 24.0
			}
			continue
		}
		out.UnresolvedCount++
		if it.Created != nil {
			ageSum += now.Sub(*it.Created).Hours() / 24.0
		}
		if it.Updated != nil {
			days := int(now.Sub(*it.Updated).Hours() / 24.0)
			if days >= stalledDays {
				out.Stalled = append(out.Stalled, domain.StalledRecord{
					Key:             it.Key,
					Status:          it.Status,
					DaysSinceUpdate: days,
				})
			}
		}
	}
	if out.UnresolvedCount > 0 { out.AvgAgeDays = ageSum / float64(out.UnresolvedCount) }
	if out.ResolvedCount > 0 { out.AvgResolutionDays = resSum / float64(out.ResolvedCount) }
	sort.SliceStable(out.Stalled, func(i, j int) bool {
		return out.Stalled[i].DaysSinceUpdate > out.Stalled[j].DaysSinceUpdate
	})
	return out
}

// Quality counts field value groups and missing-field occurrences.
func Quality(items []domain.WorkItem) *domain.QualitySummary {
	out := &domain.QualitySummary{
		Total:      len(items),
		ByStatus:   map[string]int{},
		ByType:     map[string]int{},
		ByPriority: map[string]int{},
		Workload:   map[string]int{},
	}
	for _, it := range items {
		out.ByStatus[orUnassigned(it.Status)]++
		out.ByType[orUnassigned(it.Type)]++
		if it.Priority == "" {
			out.MissingPriority++
		} else {
			out.ByPriority[it.Priority]++
		}
		if it.Assignee == "" {
			out.MissingAssignee++
		} else {
			out.Workload[it.Assignee]++
		}
		if it.Points == nil { out.MissingPoints++ }
	}
	return out
}

func orUnassigned(s string) string {
	if s == "" { return "Unassigned" }
	return s
}

// weekKey buckets a timestamp as ISO year-week, e.g. "2026-W35".
func weekKey(t time.Time) string {
	y, w := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}
