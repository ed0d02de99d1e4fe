package registration

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks SessionStore,StudentLookup,Submitter,AuditPublisher

import (
	"context"
	"time"

	"eventreg/internal/payment"
	"eventreg/internal/students/models"
	"eventreg/pkg/platform/audit"
)

// SessionStore persists form sessions between requests.
// Get returns sentinel.ErrNotFound for unknown or expired sessions.
// Save is a compare-and-set on State.Version: it writes only when the stored
// copy is at Version-1, or when no copy exists and Version <= 1. A stored copy
// at any other version yields sentinel.ErrConflict; a missing copy for a later
// version yields sentinel.ErrNotFound.
type SessionStore interface {
	Get(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, state State, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// StudentLookup searches the record store. It never fails; errors degrade to
// an empty list inside the implementation.
type StudentLookup interface {
	Search(ctx context.Context, q models.Query) []models.Student
}

// Submitter posts a registration to the workflow.
type Submitter interface {
	Submit(ctx context.Context, p payment.Payload) (payment.Result, error)
}

// AuditPublisher emits audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
