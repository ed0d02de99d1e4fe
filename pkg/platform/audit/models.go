package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"eventreg/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers events with financial significance: a
	// registration accepted by the workflow, with or without a payment link.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Action names what happened.
type Action string

const (
	ActionFormOpened            Action = "form_opened"
	ActionRegistrationSubmitted Action = "registration_submitted"
	ActionRegistrationFailed    Action = "registration_failed"
	ActionPaymentLinkMissing    Action = "payment_link_missing"
)

var actionCategories = map[Action]EventCategory{
	ActionRegistrationSubmitted: CategoryCompliance,
	ActionPaymentLinkMissing:    CategoryCompliance,
	ActionRegistrationFailed:    CategoryOperations,
	ActionFormOpened:            CategoryOperations,
}

// Category returns the category for a, defaulting to operations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted by the registration flow. The parent's CPF never appears
// in clear; SubjectIDHash carries its SHA-256 instead.
type Event struct {
	ID            string        `json:"id"`
	Category      EventCategory `json:"category"`
	Timestamp     time.Time     `json:"timestamp"`
	Action        Action        `json:"action"`
	SessionID     string        `json:"session_id"`
	EventTag      string        `json:"event_tag,omitempty"`
	SubjectIDHash string        `json:"subject_id_hash,omitempty"`
	StudentID     string        `json:"student_id,omitempty"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	Installments  int           `json:"installments,omitempty"`
	Tickets       int           `json:"tickets,omitempty"`
	Amount        string        `json:"amount,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	RequestID     string        `json:"request_id,omitempty"`
	ClientIP      string        `json:"client_ip,omitempty"`
	Device        string        `json:"device,omitempty"`
}

// Filter narrows a List call. Zero values match everything; Limit <= 0 means
// no limit.
type Filter struct {
	SessionID string
	Actions   []Action
	Limit     int
}

// Matches reports whether e passes the session and action constraints.
func (f Filter) Matches(e Event) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if len(f.Actions) == 0 {
		return true
	}
	for _, a := range f.Actions {
		if e.Action == a {
			return true
		}
	}
	return false
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader is implemented by stores that can be queried back.
type Reader interface {
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// HashSubjectID returns the hex SHA-256 of the digits of a national ID, or ""
// when there are none.
func HashSubjectID(nationalID string) string {
	digits := domain.NationalIDDigits(nationalID)
	if digits == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(digits))
	return hex.EncodeToString(sum[:])
}
