package models

import "time"

// Run statuses as stored in crawl_runs
const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// CrawlRun summarizes one crawl of one category
type CrawlRun struct {
	ID         string    `json:"id" yaml:"id"`
	Category   string    `json:"category" yaml:"category"`
	Status     string    `json:"status" yaml:"status"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	MaxPage    int       `json:"max_page" yaml:"max_page"`
	Pages      int       `json:"pages" yaml:"pages"`
	Records    int       `json:"records" yaml:"records"`
	Errors     int       `json:"errors" yaml:"errors"`
	LastError  string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Duration is the wall time of a finished run
func (r CrawlRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
