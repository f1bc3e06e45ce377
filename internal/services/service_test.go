package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YHatahet/jira-stats/internal/adapters/jira"
	"github.com/YHatahet/jira-stats/internal/config"
	"github.com/YHatahet/jira-stats/internal/domain"
	"github.com/rs/zerolog"
)

type fakeJira struct {
	issues     []map[string]any
	changelogs map[string][]map[string]any
	failKeys   map[string]bool
	fields     []map[string]any
}

func (f *fakeJira) SearchOffset(_ context.Context, _ jira.Auth, _ string, startAt, max int) (*domain.RemotePage, error) {
	end := startAt + max
	if end > len(f.issues) { end = len(f.issues) }
	if startAt > len(f.issues) { startAt = len(f.issues) }
	return &domain.RemotePage{Records: f.issues[startAt:end], StartAt: startAt, Total: len(f.issues)}, nil
}

func (f *fakeJira) SearchToken(_ context.Context, _ jira.Auth, _ string, _ string, max int) (*domain.RemotePage, error) {
	end := max
	if end > len(f.issues) { end = len(f.issues) }
	next := "more"
	return &domain.RemotePage{Records: f.issues[:end], NextToken: &next}, nil
}

func (f *fakeJira) Changelog(_ context.Context, _ jira.Auth, key string, startAt, _ int) (*domain.RemotePage, error) {
	if f.failKeys[key] { return nil, errors.New("history unavailable") }
	hs := f.changelogs[key]
	if startAt >= len(hs) {
		return &domain.RemotePage{Total: len(hs)}, nil
	}
	return &domain.RemotePage{Records: hs[startAt:], StartAt: startAt, Total: len(hs)}, nil
}

func (f *fakeJira) Fields(_ context.Context, _ jira.Auth) ([]map[string]any, error) {
	return f.fields, nil
}

func testConfig() config.Config {
	return config.Config{
		Pagination:  "offset",
		PageSize:    50,
		MaxRecords:  2000,
		StalledDays: 14,
		PointsField: "customfield_10016",
		WorkersJira: 3,
	}
}

func issueRecord(key, status string, created time.Time) map[string]any {
	return map[string]any{
		"id":  key,
		"key": key,
		"fields": map[string]any{
			"summary": "summary of " + key,
			"status": map[string]any{
				"name":           status,
				"statusCategory": map[string]any{"key": "indeterminate"},
			},
			"created": created.Format(time.RFC3339),
			"updated": created.Add(time.Hour).Format(time.RFC3339),
		},
	}
}

func history(at time.Time, field, from, to string) map[string]any {
	return map[string]any{
		"created": at.Format(time.RFC3339),
		"items": []any{
			map[string]any{"field": field, "fromString": from, "toString": to},
		},
	}
}

func TestWorkflow_PerItemFailureDropsOnlyThatItem(t *testing.T) {
	created := time.Now().UTC().Add(-48 * time.Hour)
	fj := &fakeJira{
		issues: []map[string]any{
			issueRecord("PRJ-1", "InProgress", created),
			issueRecord("PRJ-2", "Open", created),
			issueRecord("PRJ-3", "Open", created),
		},
		changelogs: map[string][]map[string]any{
			"PRJ-1": {history(created.Add(2*time.Hour), "status", "Open", "InProgress")},
			"PRJ-3": {},
		},
		failKeys: map[string]bool{"PRJ-2": true},
	}
	svc := New(testConfig(), zerolog.Nop(), fj)

	out, err := svc.Workflow(context.Background(), jira.Auth{BaseURL: "http://j", Token: "t"}, "jql")
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if out.Analyzed != 2 || out.Dropped != 1 {
		t.Fatalf("analyzed/dropped = %d/%d, want 2/1", out.Analyzed, out.Dropped)
	}
	if out.Transitions["Open -> InProgress"] != 1 {
		t.Fatalf("transitions = %#v", out.Transitions)
	}
}

func TestWorkflow_CountsReopens(t *testing.T) {
	created := time.Now().UTC().Add(-72 * time.Hour)
	fj := &fakeJira{
		issues: []map[string]any{issueRecord("PRJ-9", "InProgress", created)},
		changelogs: map[string][]map[string]any{
			"PRJ-9": {
				history(created.Add(1*time.Hour), "status", "Open", "InProgress"),
				history(created.Add(2*time.Hour), "status", "InProgress", "Review"),
				history(created.Add(3*time.Hour), "status", "Review", "InProgress"),
			},
		},
	}
	svc := New(testConfig(), zerolog.Nop(), fj)
	out, err := svc.Workflow(context.Background(), jira.Auth{BaseURL: "http://j", Token: "t"}, "jql")
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if len(out.Reopens) != 1 {
		t.Fatalf("reopens = %#v, want exactly one", out.Reopens)
	}
	if out.Reopens[0].Key != "PRJ-9" {
		t.Fatalf("reopen key = %q", out.Reopens[0].Key)
	}
}

func TestCollection_NormalizesFields(t *testing.T) {
	created := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	rec := issueRecord("PRJ-5", "Open", created)
	fields := rec["fields"].(map[string]any)
	fields["assignee"] = map[string]any{"displayName": "Alice"}
	fields["priority"] = map[string]any{"name": "High"}
	fields["issuetype"] = map[string]any{"name": "Bug"}
	fields["customfield_10016"] = 8.0
	fj := &fakeJira{issues: []map[string]any{rec}}
	svc := New(testConfig(), zerolog.Nop(), fj)

	out, err := svc.Collection(context.Background(), jira.Auth{BaseURL: "http://j", Token: "t"}, "jql", "")
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if out.Total != 1 { t.Fatalf("total = %d", out.Total) }
	it := out.Items[0]
	if it.Key != "PRJ-5" || it.Assignee != "Alice" || it.Priority != "High" || it.Type != "Bug" {
		t.Fatalf("normalized item = %#v", it)
	}
	if it.StatusCategory != "indeterminate" { t.Fatalf("status category = %q", it.StatusCategory) }
	if it.Points == nil || *it.Points != 8 { t.Fatalf("points = %v", it.Points) }
	if it.Created == nil || !it.Created.Equal(created) { t.Fatalf("created = %v", it.Created) }
}

func TestQuality_TokenModeEchoesContinuation(t *testing.T) {
	cfg := testConfig()
	cfg.Pagination = "token"
	created := time.Now().UTC().Add(-24 * time.Hour)
	fj := &fakeJira{issues: []map[string]any{issueRecord("PRJ-7", "Open", created)}}
	svc := New(cfg, zerolog.Nop(), fj)

	out, err := svc.Quality(context.Background(), jira.Auth{BaseURL: "http://j", Token: "t"}, "jql", "cur")
	if err != nil { t.Fatalf("unexpected error: %v", err) }
	if out.NextPageToken == nil || *out.NextPageToken != "more" {
		t.Fatalf("next token = %v", out.NextPageToken)
	}
}

func TestRefreshFields_UpdatesPointsFieldByName(t *testing.T) {
	fj := &fakeJira{fields: []map[string]any{
		{"id": "customfield_999", "name": "Story Points"},
		{"id": "customfield_1", "name": "Epic Link"},
	}}
	svc := New(testConfig(), zerolog.Nop(), fj)
	if err := svc.RefreshFields(context.Background(), jira.Auth{BaseURL: "http://j", Token: "t"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := svc.currentPointsField(); got != "customfield_999" {
		t.Fatalf("points field = %q, want customfield_999", got)
	}
}
