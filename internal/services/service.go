/* SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/YHatahet/jira-stats/internal/adapters/jira"
	"github.com/YHatahet/jira-stats/internal/config"
	"github.com/YHatahet/jira-stats/internal/domain"
	"github.com/YHatahet/jira-stats/internal/paging"
	"github.com/YHatahet/jira-stats/internal/report"
	"github.com/YHatahet/jira-stats/internal/timeline"
	"github.com/rs/zerolog"
)

type JiraClient interface {
	SearchOffset(ctx context.Context, auth jira.Auth, jql string, startAt, max int) (*domain.RemotePage, error)
	SearchToken(ctx context.Context, auth jira.Auth, jql, token string, max int) (*domain.RemotePage, error)
	Changelog(ctx context.Context, auth jira.Auth, key string, startAt, max int) (*domain.RemotePage, error)
	Fields(ctx context.Context, auth jira.Auth) ([]map[string]any, error)
}

type Service struct {
	cfg  config.Config
	log  zerolog.Logger
	jira JiraClient

	mu          sync.RWMutex
	pointsField string
}

func New(cfg config.Config, log zerolog.Logger, jc JiraClient) *Service {
	return &Service{cfg: cfg, log: log, jira: jc, pointsField: cfg.PointsField}
}

// boundFetcher binds one request's auth onto the shared client so the
// traversal engine stays credential-agnostic.
type boundFetcher struct {
	jc   JiraClient
	auth jira.Auth
}

func (b boundFetcher) FetchOffset(ctx context.Context, jql string, startAt, max int) (*domain.RemotePage, error) {
	return b.jc.SearchOffset(ctx, b.auth, jql, startAt, max)
}

func (b boundFetcher) FetchToken(ctx context.Context, jql, token string, max int) (*domain.RemotePage, error) {
	return b.jc.SearchToken(ctx, b.auth, jql, token, max)
}

func (s *Service) traverser(auth jira.Auth) paging.Traverser {
	return paging.New(s.cfg.Pagination, boundFetcher{jc: s.jira, auth: auth}, s.cfg.PageSize, s.cfg.MaxRecords, s.log)
}

func (s *Service) defaultJQL(jql string) string {
	if strings.TrimSpace(jql) != "" { return jql }
	return s.cfg.JiraDefaultJQL
}

// Collection fetches the item collection and normalizes per-item fields.
func (s *Service) Collection(ctx context.Context, auth jira.Auth, jql, pageToken string) (*domain.CollectionSummary, error) {
	res, err := s.traverser(auth).Collect(ctx, s.defaultJQL(jql), pageToken)
	if err != nil { return nil, err }
	items := s.normalizeAll(res.Records)
	return &domain.CollectionSummary{
		Total:         len(items),
		Truncated:     res.Truncated,
		NextPageToken: res.NextToken,
		Items:         items,
	}, nil
}

// Quality groups items per field value and counts missing fields. Under the
// token contract the continuation token is echoed for the caller's next page.
func (s *Service) Quality(ctx context.Context, auth jira.Auth, jql, pageToken string) (*domain.QualitySummary, error) {
	res, err := s.traverser(auth).Collect(ctx, s.defaultJQL(jql), pageToken)
	if err != nil { return nil, err }
	q := report.Quality(s.normalizeAll(res.Records))
	q.NextPageToken = res.NextToken
	return q, nil
}

// TimeAnalysis computes age/resolution/stalled/spike stats from raw
// timestamps.
func (s *Service) TimeAnalysis(ctx context.Context, auth jira.Auth, jql string, stalledDays int) (*domain.TimeSummary, error) {
	res, err := s.traverser(auth).Collect(ctx, s.defaultJQL(jql), "")
	if err != nil { return nil, err }
	if stalledDays <= 0 { stalledDays = s.cfg.StalledDays }
	return report.TimeAnalysis(s.normalizeAll(res.Records), time.Now().UTC(), stalledDays), nil
}

// Workflow drains the collection, fans out bounded per-item changelog
// fetches, waits for all of them, then folds the completed results. One
// item's failed history fetch drops only that item; a page fetch failure
// already aborted the whole call inside Collect.
func (s *Service) Workflow(ctx context.Context, auth jira.Auth, jql string) (*domain.WorkflowSummary, error) {
	res, err := s.traverser(auth).Collect(ctx, s.defaultJQL(jql), "")
	if err != nil { return nil, err }
	items := s.normalizeAll(res.Records)

	now := time.Now().UTC()
	workerCount := s.cfg.WorkersJira
	if workerCount <= 0 { workerCount = 6 }

	jobs := make(chan domain.WorkItem)
	results := make(chan *timeline.Result)
	failures := make(chan string)
	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range jobs {
				events, err := s.fetchItemEvents(ctx, auth, it.Key)
				if err != nil {
					s.log.Error().Err(err).Str("key", it.Key).Msg("changelog fetch failed, item dropped")
					failures <- it.Key
					continue
				}
				end := now
				if it.Resolved != nil { end = *it.Resolved }
				created := now
				if it.Created != nil { created = *it.Created }
				results <- timeline.Reconstruct(it.Key, created, end, events)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, it := range items {
			select {
			case jobs <- it:
			case <-ctx.Done():
				return
			}
		}
	}()
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	// join barrier: every worker finishes before the fold starts
	var completed []*timeline.Result
	dropped := 0
	for {
		select {
		case r := <-results:
			completed = append(completed, r)
		case <-failures:
			dropped++
		case <-done:
			if err := ctx.Err(); err != nil { return nil, err }
			summary := report.FoldTimelines(completed)
			summary.Dropped = dropped
			summary.Truncated = res.Truncated
			return summary, nil
		}
	}
}

// fetchItemEvents drains one item's change history (offset paged on every
// API variant) into flat change events.
func (s *Service) fetchItemEvents(ctx context.Context, auth jira.Auth, key string) ([]domain.ChangeEvent, error) {
	var events []domain.ChangeEvent
	startAt := 0
	for {
		page, err := s.jira.Changelog(ctx, auth, key, startAt, 100)
		if err != nil { return nil, err }
		for _, h := range page.Records {
			at := parseTimeUTC(h["created"])
			if at == nil { continue }
			items, _ := h["items"].([]any)
			for _, it0 := range items {
				itm, _ := it0.(map[string]any)
				if itm == nil { continue }
				events = append(events, domain.ChangeEvent{
					At:    *at,
					Field: toStrAny(itm["field"]),
					From:  toStrAny(itm["fromString"]),
					To:    toStrAny(itm["toString"]),
				})
			}
		}
		if len(page.Records) == 0 { break }
		if page.IsLast != nil && *page.IsLast { break }
		startAt += len(page.Records)
		if page.Total > 0 && startAt >= page.Total { break }
	}
	return events, nil
}

func (s *Service) normalizeAll(records []map[string]any) []domain.WorkItem {
	items := make([]domain.WorkItem, 0, len(records))
	for _, rec := range records {
		items = append(items, s.normalizeItem(rec))
	}
	return items
}

func (s *Service) normalizeItem(im map[string]any) domain.WorkItem {
	fields, _ := im["fields"].(map[string]any)
	it := domain.WorkItem{
		ID:  toStrAny(im["id"]),
		Key: toStrAny(im["key"]),
	}
	it.Summary = toStrAny(fields["summary"])
	if tp, ok := fields["issuetype"].(map[string]any); ok { it.Type = toStrAny(tp["name"]) }
	if st, ok := fields["status"].(map[string]any); ok {
		it.Status = toStrAny(st["name"])
		if sc, ok := st["statusCategory"].(map[string]any); ok {
			it.StatusCategory = toStrAny(sc["key"])
		}
	}
	if as, ok := fields["assignee"].(map[string]any); ok { it.Assignee = toStrAny(as["displayName"]) }
	if pr, ok := fields["priority"].(map[string]any); ok { it.Priority = toStrAny(pr["name"]) }
	if v, ok := fields[s.currentPointsField()].(float64); ok {
		tmp := v
		it.Points = &tmp
	}
	it.Created = parseTimeUTC(fields["created"])
	it.Updated = parseTimeUTC(fields["updated"])
	it.Resolved = parseTimeUTC(fields["resolutiondate"])
	return it
}

func (s *Service) currentPointsField() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pointsField
}

// RefreshFields re-discovers the story points custom field id by display
// name so a renamed field keeps resolving without a restart.
func (s *Service) RefreshFields(ctx context.Context, auth jira.Auth) error {
	fields, err := s.jira.Fields(ctx, auth)
	if err != nil { return err }
	for _, f := range fields {
		name, _ := f["name"].(string)
		if !strings.EqualFold(strings.TrimSpace(name), "Story Points") { continue }
		id, _ := f["id"].(string)
		if id == "" { id, _ = f["key"].(string) }
		if id == "" { continue }
		s.mu.Lock()
		if s.pointsField != id {
			s.log.Info().Str("field", id).Msg("story points field updated")
			s.pointsField = id
		}
		s.mu.Unlock()
		return nil
	}
	return nil
}

func parseTimeUTC(v any) *time.Time {
	str, _ := v.(string)
	if str == "" { return nil }
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"}
	for _, l := range layouts {
		if t, err := time.Parse(l, str); err == nil {
			tt := t.UTC()
			return &tt
		}
	}
	return nil
}

func toStrAny(v any) string {
	if v == nil { return "" }
	if s, ok := v.(string); ok { return s }
	return fmt.Sprintf("%v", v)
}
