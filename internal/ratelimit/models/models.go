package models

import (
	"fmt"
	"time"
)

// EndpointClass groups endpoints that share a request budget.
type EndpointClass string

const (
	// ClassOpen covers POST /forms.
	ClassOpen EndpointClass = "open"
	// ClassEdit covers search, selection and field edits.
	ClassEdit EndpointClass = "edit"
	// ClassSubmit covers POST /forms/{id}/submit, the only call that reaches
	// the workflow.
	ClassSubmit EndpointClass = "submit"
)

// IsValid checks if the endpoint class is one of the supported values.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassOpen, ClassEdit, ClassSubmit:
		return true
	}
	return false
}

// Limit is a request budget over a sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// IPKey builds the bucket key for an IP and endpoint class.
func IPKey(ip string, class EndpointClass) string {
	return fmt.Sprintf("eventreg:ratelimit:ip:%s:%s", class, ip)
}
