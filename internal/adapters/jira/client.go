/* SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/YHatahet/jira-stats/internal/config"
	"github.com/YHatahet/jira-stats/internal/domain"
	"github.com/rs/zerolog"
)

// Auth carries the upstream credentials for one request. Callers build it
// from request headers with env config as fallback; the client itself never
// reads the environment.
type Auth struct {
	BaseURL  string
	Token    string
	Username string
	Password string
}

// Missing reports whether the Auth cannot authenticate any request.
func (a Auth) Missing() bool {
	if strings.TrimSpace(a.BaseURL) == "" { return true }
	return a.Token == "" && (a.Username == "" || a.Password == "")
}

// APIError is a non-2xx upstream response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira api status=%d body=%s", e.Status, e.Body)
}

type Client struct {
	http   *http.Client
	log    zerolog.Logger
	apiVer string
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
		log:    log,
		apiVer: cfg.JiraAPIVersion,
	}
}

func apiURL(auth Auth, path string, q url.Values) string {
	base := strings.TrimRight(auth.BaseURL, "/")
	if !strings.HasPrefix(path, "/") { path = "/" + path }
	u := base + path
	if len(q) > 0 { u = u + "?" + q.Encode() }
	return u
}

func (c *Client) doJSON(ctx context.Context, auth Auth, method, u string, body any) (map[string]any, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil { return nil, err }
		payload = b
	}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		out, retry, err := c.attempt(ctx, auth, method, u, payload)
		if err == nil { return out, nil }
		lastErr = err
		if !retry { return nil, err }
		// backoff on 429/5xx/transport errors
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, auth Auth, method, u string, payload []byte) (map[string]any, bool, error) {
	var r io.Reader
	if payload != nil { r = strings.NewReader(string(payload)) }
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil { return nil, false, err }
	if payload != nil { req.Header.Set("Content-Type", "application/json") }
	setAuth(req, auth)
	resp, err := c.http.Do(req)
	if err != nil { return nil, true, err }
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, apiErr
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil { return nil, false, err }
	return out, false, nil
}

func setAuth(req *http.Request, auth Auth) {
	if auth.Token != "" {
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	} else if auth.Username != "" && auth.Password != "" {
		req.SetBasicAuth(auth.Username, auth.Password)
	}
}

// SearchOffset fetches one page of a search under the offset contract
// (startAt/maxResults with total and, on some endpoints, isLast).
func (c *Client) SearchOffset(ctx context.Context, auth Auth, jql string, startAt, max int) (*domain.RemotePage, error) {
	if jql == "" { return nil, errors.New("jira: empty jql") }
	if c.apiVer == "2" {
		q := url.Values{}
		q.Set("jql", jql)
		q.Set("startAt", strconv.Itoa(startAt))
		if max > 0 { q.Set("maxResults", strconv.Itoa(max)) }
		q.Set("fields", "*all")
		u := apiURL(auth, "/rest/api/2/search", q)
		m, err := c.doJSON(ctx, auth, http.MethodGet, u, nil)
		if err != nil { return nil, err }
		return parsePage(m, "issues"), nil
	}
	// default to v3
	body := map[string]any{"jql": jql, "startAt": startAt, "maxResults": max, "fields": []string{"*all"}}
	u := apiURL(auth, "/rest/api/3/search", nil)
	m, err := c.doJSON(ctx, auth, http.MethodPost, u, body)
	if err != nil { return nil, err }
	return parsePage(m, "issues"), nil
}

// SearchToken fetches one page of a search under the token contract
// (opaque continuation token, no forward-looking completion signal).
func (c *Client) SearchToken(ctx context.Context, auth Auth, jql, token string, max int) (*domain.RemotePage, error) {
	if jql == "" { return nil, errors.New("jira: empty jql") }
	q := url.Values{}
	q.Set("jql", jql)
	if max > 0 { q.Set("maxResults", strconv.Itoa(max)) }
	if token != "" { q.Set("nextPageToken", token) }
	q.Set("fields", "*all")
	u := apiURL(auth, "/rest/api/3/search/jql", q)
	m, err := c.doJSON(ctx, auth, http.MethodGet, u, nil)
	if err != nil { return nil, err }
	return parsePage(m, "issues"), nil
}

// Changelog fetches one page of an item's change history.
func (c *Client) Changelog(ctx context.Context, auth Auth, key string, startAt, max int) (*domain.RemotePage, error) {
	if key == "" { return nil, errors.New("jira: empty issue key") }
	q := url.Values{}
	q.Set("startAt", strconv.Itoa(startAt))
	if max > 0 { q.Set("maxResults", strconv.Itoa(max)) }
	path := "/rest/api/3/issue/" + url.PathEscape(key) + "/changelog"
	if c.apiVer == "2" { path = "/rest/api/2/issue/" + url.PathEscape(key) + "/changelog" }
	u := apiURL(auth, path, q)
	m, err := c.doJSON(ctx, auth, http.MethodGet, u, nil)
	if err != nil { return nil, err }
	// v2 reports "histories", v3 reports "values"
	p := parsePage(m, "values")
	if len(p.Records) == 0 {
		if alt := parsePage(m, "histories"); len(alt.Records) > 0 { p = alt }
	}
	return p, nil
}

// Fields lists all field definitions (for discovering custom field ids).
// The endpoint returns a bare array, so it bypasses doJSON.
func (c *Client) Fields(ctx context.Context, auth Auth) ([]map[string]any, error) {
	u := apiURL(auth, "/rest/api/2/field", nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil { return nil, err }
	setAuth(req, auth)
	resp, err := c.http.Do(req)
	if err != nil { return nil, err }
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	var out []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil { return nil, err }
	return out, nil
}

// parsePage lifts a raw search/changelog response into a RemotePage. Missing
// list fields become empty, never an error.
func parsePage(m map[string]any, listKey string) *domain.RemotePage {
	p := &domain.RemotePage{}
	if m == nil { return p }
	if arr, ok := m[listKey].([]any); ok {
		p.Records = make([]map[string]any, 0, len(arr))
		for _, it := range arr {
			if im, _ := it.(map[string]any); im != nil { p.Records = append(p.Records, im) }
		}
	}
	if v, ok := m["startAt"].(float64); ok { p.StartAt = int(v) }
	if v, ok := m["total"].(float64); ok { p.Total = int(v) }
	if v, ok := m["isLast"].(bool); ok { b := v; p.IsLast = &b }
	if v, ok := m["nextPageToken"].(string); ok && v != "" {
		s := v
		p.NextToken = &s
	}
	return p
}
