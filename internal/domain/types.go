package domain

import "time"

// RemotePage is one page of a remote collection exactly as the upstream
// returned it. Depending on the API variant the server reports completion
// either with total/isLast (offset contract) or with a continuation token
// (token contract); absent signals stay nil.
type RemotePage struct {
	Records   []map[string]any
	StartAt   int
	Total     int
	IsLast    *bool
	NextToken *string
}

// WorkItem is one ticket with its fields normalized out of the raw payload.
type WorkItem struct {
	ID             string     `json:"id"`
	Key            string     `json:"key"`
	Summary        string     `json:"summary"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	StatusCategory string     `json:"status_category"`
	Assignee       string     `json:"assignee"`
	Priority       string     `json:"priority"`
	Points         *float64   `json:"points"`
	Created        *time.Time `json:"created"`
	Updated        *time.Time `json:"updated"`
	Resolved       *time.Time `json:"resolved"`
}

// ChangeEvent is a single field change inside one changelog group.
type ChangeEvent struct {
	At    time.Time
	Field string
	From  string
	To    string
}

// StateInterval accumulates the time one or more visits spent in a status.
type StateInterval struct {
	Status string  `json:"status"`
	Hours  float64 `json:"hours"`
	Count  int     `json:"count"`
}

// Transition is an ordered from→to status pair.
type Transition struct {
	From string
	To   string
}

// ReopenFlag marks an item re-entering a status it had already visited.
type ReopenFlag struct {
	Key     string `json:"key"`
	Pattern string `json:"pattern"`
}

// StalledRecord is an unresolved item whose last update is older than the
// configured threshold.
type StalledRecord struct {
	Key             string `json:"key"`
	Status          string `json:"status"`
	DaysSinceUpdate int    `json:"days_since_update"`
}

// BottleneckEntry ranks one status by average accumulated hours.
type BottleneckEntry struct {
	Status   string  `json:"status"`
	AvgHours float64 `json:"avg_hours"`
}

// CollectionSummary is the /api/issues payload.
type CollectionSummary struct {
	Total         int        `json:"total"`
	Truncated     bool       `json:"truncated,omitempty"`
	NextPageToken *string    `json:"next_page_token,omitempty"`
	Items         []WorkItem `json:"items"`
}

// QualitySummary groups items by field value and counts missing fields.
type QualitySummary struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	ByType          map[string]int `json:"by_type"`
	ByPriority      map[string]int `json:"by_priority"`
	Workload        map[string]int `json:"workload"`
	MissingAssignee int            `json:"missing_assignee"`
	MissingPriority int            `json:"missing_priority"`
	MissingPoints   int            `json:"missing_points"`
	NextPageToken   *string        `json:"next_page_token,omitempty"`
}

// TimeSummary is the timeline-free age/resolution/stalled analysis.
type TimeSummary struct {
	Total             int             `json:"total"`
	UnresolvedCount   int             `json:"unresolved_count"`
	ResolvedCount     int             `json:"resolved_count"`
	AvgAgeDays        float64         `json:"avg_age_days"`
	AvgResolutionDays float64         `json:"avg_resolution_days"`
	Stalled           []StalledRecord `json:"stalled"`
	CreatedPerWeek    map[string]int  `json:"created_per_week"`
	ResolvedPerWeek   map[string]int  `json:"resolved_per_week"`
}

// WorkflowSummary is the folded timeline analysis across a batch.
type WorkflowSummary struct {
	Analyzed    int               `json:"analyzed"`
	Dropped     int               `json:"dropped"`
	Truncated   bool              `json:"truncated,omitempty"`
	Transitions map[string]int    `json:"transitions"`
	Bottlenecks []BottleneckEntry `json:"bottlenecks"`
	Reopens     []ReopenFlag      `json:"reopens"`
}
