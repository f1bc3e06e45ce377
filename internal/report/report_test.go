package report

import (
	"math"
	"testing"
	"time"

	"github.com/YHatahet/jira-stats/internal/domain"
	"github.com/YHatahet/jira-stats/internal/timeline"
)

func mkTimeline(key string, events []domain.ChangeEvent, created, now time.Time) *timeline.Result {
	return timeline.Reconstruct(key, created, now, events)
}

func TestFoldTimelines_OrderIndependent(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(100 * time.Hour)
	x := mkTimeline("X-1", []domain.ChangeEvent{
		{At: created.Add(10 * time.Hour), Field: "status", From: "Open", To: "InProgress"},
		{At: created.Add(40 * time.Hour), Field: "status", From: "InProgress", To: "Done"},
	}, created, now)
	y := mkTimeline("Y-1", []domain.ChangeEvent{
		{At: created.Add(20 * time.Hour), Field: "status", From: "Open", To: "InProgress"},
	}, created, now)

	a := FoldTimelines([]*timeline.Result{x, y})
	b := FoldTimelines([]*timeline.Result{y, x})

	if len(a.Transitions) != len(b.Transitions) {
		t.Fatalf("transition tables differ: %#v vs %#v", a.Transitions, b.Transitions)
	}
	for k, v := range a.Transitions {
		if b.Transitions[k] != v { t.Fatalf("transition %q: %d vs %d", k, v, b.Transitions[k]) }
	}
	if len(a.Bottlenecks) != len(b.Bottlenecks) {
		t.Fatalf("bottleneck lengths differ")
	}
	for i := range a.Bottlenecks {
		if a.Bottlenecks[i] != b.Bottlenecks[i] {
			t.Fatalf("ranking differs at %d: %#v vs %#v", i, a.Bottlenecks[i], b.Bottlenecks[i])
		}
	}
}

func TestFoldTimelines_BottlenecksRankedByAverageDesc(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := mkTimeline("X-2", []domain.ChangeEvent{
		{At: created.Add(5 * time.Hour), Field: "status", From: "Open", To: "Review"},
		{At: created.Add(45 * time.Hour), Field: "status", From: "Review", To: "Done"},
	}, created, created.Add(46*time.Hour))
	sum := FoldTimelines([]*timeline.Result{r})
	// Review 40h > Open 5h > Done 1h
	want := []string{"Review", "Open", "Done"}
	if len(sum.Bottlenecks) != len(want) { t.Fatalf("bottlenecks = %#v", sum.Bottlenecks) }
	for i, w := range want {
		if sum.Bottlenecks[i].Status != w {
			t.Fatalf("rank %d = %q, want %q (%#v)", i, sum.Bottlenecks[i].Status, w, sum.Bottlenecks)
		}
	}
	if math.Abs(sum.Bottlenecks[0].AvgHours-40) > 1e-9 {
		t.Fatalf("Review avg = %f, want 40", sum.Bottlenecks[0].AvgHours)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestTimeAnalysis_StalledDetection(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	items := []domain.WorkItem{
		{Key: "S-1", Status: "InProgress", Created: ptrTime(now.Add(-40 * 24 * time.Hour)), Updated: ptrTime(now.Add(-20 * 24 * time.Hour))},
		{Key: "S-2", Status: "Open", Created: ptrTime(now.Add(-10 * 24 * time.Hour)), Updated: ptrTime(now.Add(-2 * 24 * time.Hour))},
		{Key: "S-3", Status: "Done", Created: ptrTime(now.Add(-30 * 24 * time.Hour)), Updated: ptrTime(now.Add(-25 * 24 * time.Hour)), Resolved: ptrTime(now.Add(-25 * 24 * time.Hour))},
	}
	out := TimeAnalysis(items, now, 14)
	if len(out.Stalled) != 1 { t.Fatalf("stalled = %#v", out.Stalled) }
	if out.Stalled[0].Key != "S-1" || out.Stalled[0].DaysSinceUpdate != 20 {
		t.Fatalf("stalled record = %#v, want S-1 at 20 days", out.Stalled[0])
	}
	if out.Stalled[0].Status != "InProgress" {
		t.Fatalf("stalled status = %q", out.Stalled[0].Status)
	}
}

func TestTimeAnalysis_Averages(t *testing.T) {
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	items := []domain.WorkItem{
		{Key: "A-1", Created: ptrTime(now.Add(-10 * 24 * time.Hour))},
		{Key: "A-2", Created: ptrTime(now.Add(-20 * 24 * time.Hour))},
		{Key: "A-3", Created: ptrTime(now.Add(-8 * 24 * time.Hour)), Resolved: ptrTime(now.Add(-2 * 24 * time.Hour))},
	}
	out := TimeAnalysis(items, now, 14)
	if out.UnresolvedCount != 2 || out.ResolvedCount != 1 {
		t.Fatalf("counts = %d/%d", out.UnresolvedCount, out.ResolvedCount)
	}
	if math.Abs(out.AvgAgeDays-15) > 1e-9 {
		t.Fatalf("avg age = %f, want 15", out.AvgAgeDays)
	}
	if math.Abs(out.AvgResolutionDays-6) > 1e-9 {
		t.Fatalf("avg resolution = %f, want 6", out.AvgResolutionDays)
	}
}

func TestTimeAnalysis_WeeklyHistograms(t *testing.T) {
	now := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC) // ISO week 35
	resolved := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	items := []domain.WorkItem{
		{Key: "W-1", Created: &created, Resolved: &resolved},
		{Key: "W-2", Created: &created},
	}
	out := TimeAnalysis(items, now, 14)
	if out.CreatedPerWeek["2026-W35"] != 2 {
		t.Fatalf("created histogram = %#v", out.CreatedPerWeek)
	}
	if out.ResolvedPerWeek["2026-W35"] != 1 {
		t.Fatalf("resolved histogram = %#v", out.ResolvedPerWeek)
	}
}

func TestQuality_CountsGroupsAndMissingFields(t *testing.T) {
	pts := 5.0
	items := []domain.WorkItem{
		{Key: "Q-1", Status: "Open", Type: "Bug", Priority: "High", Assignee: "alice", Points: &pts},
		{Key: "Q-2", Status: "Open", Type: "Task"},
		{Key: "Q-3", Status: "Done", Type: "Bug", Priority: "Low", Assignee: "alice"},
	}
	out := Quality(items)
	if out.ByStatus["Open"] != 2 || out.ByStatus["Done"] != 1 {
		t.Fatalf("by_status = %#v", out.ByStatus)
	}
	if out.ByType["Bug"] != 2 { t.Fatalf("by_type = %#v", out.ByType) }
	if out.Workload["alice"] != 2 { t.Fatalf("workload = %#v", out.Workload) }
	if out.MissingAssignee != 1 || out.MissingPriority != 1 || out.MissingPoints != 2 {
		t.Fatalf("missing counters = %d/%d/%d", out.MissingAssignee, out.MissingPriority, out.MissingPoints)
	}
}
