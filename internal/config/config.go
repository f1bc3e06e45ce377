/* SPDX-License-Identifier: BSD-3-Clause */
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	TZ       string
	HTTPAddr string

	JiraBaseURL    string
	JiraPAT        string
	JiraUsername   string
	JiraPassword   string
	JiraAPIVersion string
	JiraDefaultJQL string
	JiraFieldsFile string
	JiraFieldMap   map[string]string // name -> id

	// Pagination is the traversal contract the upstream exposes:
	// "offset" (total/isLast completion) or "token" (opaque continuation).
	Pagination  string
	PageSize    int
	MaxRecords  int
	StalledDays int
	PointsField string

	FieldRefreshCron string
	WorkersJira      int
	HTTPTimeout      time.Duration
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" { return def }
	return v
}

func atoi(key string, def int) int {
	v := os.Getenv(key)
	if v == "" { return def }
	i, err := strconv.Atoi(v)
	if err != nil { return def }
	return i
}

func dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" { return def }
	d, err := time.ParseDuration(v)
	if err != nil { return def }
	return d
}

func Load() Config {
	cfg := Config{
		AppEnv:   getenv("APP_ENV", "dev"),
		TZ:       getenv("APP_TZ", "UTC"),
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		JiraBaseURL:    getenv("JIRA_BASE_URL", ""),
		JiraPAT:        getenv("JIRA_PAT", ""),
		JiraUsername:   getenv("JIRA_USERNAME", ""),
		JiraPassword:   getenv("JIRA_PASSWORD", ""),
		JiraAPIVersion: getenv("JIRA_API_VERSION", "2"),
		JiraDefaultJQL: getenv("JIRA_DEFAULT_JQL", "updated >= -30d"),
		JiraFieldsFile: getenv("JIRA_FIELDS_FILE", "/config/jira_fields.json"),

		Pagination:  getenv("JIRA_PAGINATION", "offset"),
		PageSize:    atoi("PAGE_SIZE", 50),
		MaxRecords:  atoi("MAX_RECORDS", 2000),
		StalledDays: atoi("STALLED_DAYS", 14),
		PointsField: getenv("POINTS_FIELD", "customfield_10016"),

		FieldRefreshCron: getenv("FIELD_REFRESH_CRON", "0 * * * *"),
		WorkersJira:      atoi("WORKERS_JIRA", 6),
		HTTPTimeout:      dur("HTTP_TIMEOUT", 15*time.Second),
	}

	if cfg.Pagination != "offset" && cfg.Pagination != "token" {
		log.Printf("warning: unknown JIRA_PAGINATION %q, falling back to offset", cfg.Pagination)
		cfg.Pagination = "offset"
	}
	if cfg.PageSize <= 0 { cfg.PageSize = 50 }
	if cfg.MaxRecords <= 0 { cfg.MaxRecords = 2000 }

	// set global timezone if available
	if loc, err := time.LoadLocation(cfg.TZ); err == nil {
		time.Local = loc
	} else {
		log.Printf("warning: cannot load TZ %s: %v", cfg.TZ, err)
	}

	// Optional: load Jira custom fields mapping from file (name->id)
	if data, err := os.ReadFile(cfg.JiraFieldsFile); err == nil {
		cfg.JiraFieldMap = parseFieldMap(data)
	} else if data2, err2 := os.ReadFile("config/jira_fields.json"); err2 == nil {
		cfg.JiraFieldMap = parseFieldMap(data2)
	}
	if id, ok := cfg.JiraFieldMap["Story Points"]; ok && id != "" && os.Getenv("POINTS_FIELD") == "" {
		cfg.PointsField = id
	}
	return cfg
}

func parseFieldMap(data []byte) map[string]string {
	type fieldDef struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	var arr []fieldDef
	if err := json.Unmarshal(data, &arr); err != nil { return nil }
	m := map[string]string{}
	for _, f := range arr {
		n := strings.TrimSpace(f.Name)
		if n != "" && f.ID != "" { m[n] = f.ID }
	}
	if len(m) == 0 { return nil }
	return m
}
