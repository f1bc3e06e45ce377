/* SPDX-License-Identifier: BSD-3-Clause */

// Package paging drains remote paginated collections. Two incompatible
// completion contracts exist upstream: the offset contract reports
// total/isLast and can be drained exhaustively; the token contract hands
// back an opaque continuation token with no forward-looking completion
// signal, so it is served one page at a time and the caller continues with
// the returned token. The contract is chosen by configuration, never by
// sniffing the response shape mid-traversal.
package paging

import (
	"context"
	"fmt"

	"github.com/YHatahet/jira-stats/internal/domain"
	"github.com/rs/zerolog"
)

// Fetcher issues one authenticated request for one page.
type Fetcher interface {
	FetchOffset(ctx context.Context, jql string, startAt, max int) (*domain.RemotePage, error)
	FetchToken(ctx context.Context, jql, token string, max int) (*domain.RemotePage, error)
}

// Result is the outcome of one Collect call. Truncated is set when the
// record ceiling forced completion before the server signalled it.
// NextToken is only populated under the token contract.
type Result struct {
	Records   []map[string]any
	Truncated bool
	NextToken *string
}

// TraversalError wraps a page fetch failure with the position at which the
// traversal died. No partial records are returned alongside it.
type TraversalError struct {
	Offset int
	Cursor string
	Err    error
}

func (e *TraversalError) Error() string {
	if e.Cursor != "" {
		return fmt.Sprintf("paging: fetch failed at cursor %q: %v", e.Cursor, e.Err)
	}
	return fmt.Sprintf("paging: fetch failed at offset %d: %v", e.Offset, e.Err)
}

func (e *TraversalError) Unwrap() error { return e.Err }

// Traverser collects records for one query under one contract. A single
// Collect call never mixes contracts.
type Traverser interface {
	Collect(ctx context.Context, jql, pageToken string) (*Result, error)
}

// New selects the traversal strategy for the configured contract.
func New(mode string, f Fetcher, pageSize, maxRecords int, log zerolog.Logger) Traverser {
	if pageSize <= 0 { pageSize = 50 }
	if maxRecords <= 0 { maxRecords = 2000 }
	if mode == "token" {
		return &tokenTraverser{f: f, pageSize: pageSize, log: log}
	}
	return &offsetTraverser{f: f, pageSize: pageSize, maxRecords: maxRecords, log: log}
}

// offsetTraverser drains the collection exhaustively. The offset advances by
// the number of records actually returned, not the requested page size, so a
// short page never skips records.
type offsetTraverser struct {
	f          Fetcher
	pageSize   int
	maxRecords int
	log        zerolog.Logger
}

func (t *offsetTraverser) Collect(ctx context.Context, jql, _ string) (*Result, error) {
	out := &Result{}
	startAt := 0
	for {
		page, err := t.f.FetchOffset(ctx, jql, startAt, t.pageSize)
		if err != nil {
			return nil, &TraversalError{Offset: startAt, Err: err}
		}
		out.Records = append(out.Records, page.Records...)
		done := len(page.Records) == 0
		if page.IsLast != nil {
			done = done || *page.IsLast
		} else if page.Total > 0 && startAt+t.pageSize >= page.Total {
			done = true
		}
		if len(out.Records) >= t.maxRecords {
			if !done {
				out.Truncated = true
				t.log.Warn().Int("ceiling", t.maxRecords).Str("jql", jql).
					Msg("paging: record ceiling hit, results truncated")
			}
			out.Records = out.Records[:t.maxRecords]
			return out, nil
		}
		if done { return out, nil }
		startAt += len(page.Records)
	}
}

// tokenTraverser issues exactly one request and passes the server's
// continuation token back to the caller. Exhaustively draining a
// token-paged upstream would be unbounded for an interactive caller.
type tokenTraverser struct {
	f        Fetcher
	pageSize int
	log      zerolog.Logger
}

func (t *tokenTraverser) Collect(ctx context.Context, jql, pageToken string) (*Result, error) {
	page, err := t.f.FetchToken(ctx, jql, pageToken, t.pageSize)
	if err != nil {
		return nil, &TraversalError{Cursor: pageToken, Err: err}
	}
	return &Result{Records: page.Records, NextToken: page.NextToken}, nil
}
