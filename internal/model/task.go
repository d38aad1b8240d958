package model

import (
	"time"
)

// TaskMode selects how subtasks are generated from the request input.
type TaskMode string

const (
	// ModeNameOnly searches each name with no location constraint.
	ModeNameOnly TaskMode = "nameOnly"
	// ModeNameLocation searches the cross product of names and locations.
	ModeNameLocation TaskMode = "nameLocation"
)

// TaskStatus tracks the task lifecycle.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
	// StatusInsufficientCredits means the task stopped early because the
	// budget ran out. Partial results are valid and final; this is not an
	// error state.
	StatusInsufficientCredits TaskStatus = "insufficient_credits"
)

// Terminal reports whether the status is a terminal state.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusInsufficientCredits:
		return true
	default:
		return false
	}
}

// SubTask is one (name, location) search unit. Index is its stable
// identity; results are grouped by it, never by slice position.
type SubTask struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// Progress holds the live counters exposed to pollers.
type Progress struct {
	SearchPageRequests int `json:"search_page_requests"`
	DetailPageRequests int `json:"detail_page_requests"`
	CacheHits          int `json:"cache_hits"`
	FilteredOut        int `json:"filtered_out"`
	TotalResults       int `json:"total_results"`
	CreditsUsed        int `json:"credits_used"`
}

// Task is the unit of user-submitted work. It is owned by the engine and
// mutated only through its transition methods.
type Task struct {
	ID        string     `json:"id"`
	Site      string     `json:"site"`
	Mode      TaskMode   `json:"mode"`
	Names     []string   `json:"names"`
	Locations []string   `json:"locations,omitempty"`
	Filter    Filter     `json:"filter"`
	Credits   int        `json:"credits"`
	Status    TaskStatus `json:"status"`
	Progress  Progress   `json:"progress"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Log *LogRing `json:"-"`
}

// TaskStats is the final per-task emission.
type TaskStats struct {
	Status              TaskStatus `json:"status"`
	TotalResults        int        `json:"total_results"`
	SearchPageRequests  int        `json:"search_page_requests"`
	DetailPageRequests  int        `json:"detail_page_requests"`
	CacheHits           int        `json:"cache_hits"`
	FilteredOut         int        `json:"filtered_out"`
	CreditsUsed         int        `json:"credits_used"`
	StoppedDueToCredits bool       `json:"stopped_due_to_credits"`
}
