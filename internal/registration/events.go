package registration

import (
	"time"

	"eventreg/internal/pricing"
	"eventreg/internal/students/models"
)

// Event is an input to Reduce.
type Event interface {
	isEvent()
}

// Opened starts a session.
type Opened struct {
	EventTag string
	Shift    string
	At       time.Time
}

// SearchTextChanged carries the raw search box content.
type SearchTextChanged struct {
	Text string
}

// GradeFilterChanged sets the optional grade filter; "" means all grades.
type GradeFilterChanged struct {
	Grade string
}

// FiltersCleared resets the grade filter. The shift stays fixed.
type FiltersCleared struct{}

// LookupStarted marks lookup Seq as in flight.
type LookupStarted struct {
	Seq uint64
}

// LookupCompleted delivers the candidates of lookup Seq.
type LookupCompleted struct {
	Seq        uint64
	Candidates []models.Student
}

// StudentSelected picks a candidate by ID.
type StudentSelected struct {
	StudentID string
}

// SelectionCleared drops the selected student.
type SelectionCleared struct{}

// ContactChanged edits contact fields. Nil fields are left alone.
type ContactChanged struct {
	ParentName *string
	Email      *string
	Phone      *string
}

// IdentifierChanged carries the raw identifier input; the state keeps it
// masked.
type IdentifierChanged struct {
	Input string
}

// PaymentMethodChanged switches between pix and credit.
type PaymentMethodChanged struct {
	Method pricing.Method
}

// InstallmentsChanged picks a credit installment count.
type InstallmentsChanged struct {
	Installments int
}

// TicketsIncremented steps the quantity up by one.
type TicketsIncremented struct{}

// TicketsDecremented steps the quantity down by one.
type TicketsDecremented struct{}

// SubmitRequested asks to submit. The gate runs inside Reduce.
type SubmitRequested struct{}

// SubmissionSucceeded reports an accepted registration. An empty PaymentURL
// is the link-missing case.
type SubmissionSucceeded struct {
	PaymentURL string
}

// SubmissionFailed reports a rejected or failed submission.
type SubmissionFailed struct {
	Message string
}

// Closed ends the session.
type Closed struct{}

func (Opened) isEvent()               {}
func (SearchTextChanged) isEvent()    {}
func (GradeFilterChanged) isEvent()   {}
func (FiltersCleared) isEvent()       {}
func (LookupStarted) isEvent()        {}
func (LookupCompleted) isEvent()      {}
func (StudentSelected) isEvent()      {}
func (SelectionCleared) isEvent()     {}
func (ContactChanged) isEvent()       {}
func (IdentifierChanged) isEvent()    {}
func (PaymentMethodChanged) isEvent() {}
func (InstallmentsChanged) isEvent()  {}
func (TicketsIncremented) isEvent()   {}
func (TicketsDecremented) isEvent()   {}
func (SubmitRequested) isEvent()      {}
func (SubmissionSucceeded) isEvent()  {}
func (SubmissionFailed) isEvent()     {}
func (Closed) isEvent()               {}
