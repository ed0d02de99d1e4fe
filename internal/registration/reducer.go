package registration

import (
	"strings"

	"eventreg/internal/payment"
	"eventreg/internal/pricing"
	"eventreg/internal/students/models"
	"eventreg/pkg/domain"
)

// Reduce applies e to s and returns the next state. It is pure: no I/O, no
// clock, and s is never modified.
//
// Edits are refused with a notice while a submission is in flight or once the
// session has reached a terminal phase. Lookup completions whose sequence
// number is not the latest issued one are dropped.
func Reduce(s State, e Event) State {
	next := s.clone()

	switch ev := e.(type) {
	case Opened:
		if s.Phase != PhaseIdle {
			return next
		}
		next.Phase = PhaseEditing
		next.EventTag = ev.EventTag
		next.Shift = ev.Shift
		next.Form = Form{
			PaymentMethod:  pricing.MethodPix,
			Installments:   1,
			TicketQuantity: pricing.MinTickets,
		}
		next.CreatedAt = ev.At
		next.UpdatedAt = ev.At
		return next

	case Closed:
		next.Phase = PhaseClosed
		next.Processing = false
		next.Searching = false
		next.LookupSeq++
		next.Candidates = nil
		next.DropdownVisible = false
		return next

	case LookupCompleted:
		if !s.Searching || ev.Seq != s.LookupSeq || s.Phase.Terminal() {
			return next
		}
		next.Searching = false
		next.Candidates = append([]models.Student{}, ev.Candidates...)
		next.DropdownVisible = len(next.Candidates) > 0
		return next

	case SubmissionSucceeded:
		if s.Phase != PhaseSubmitting {
			return next
		}
		next.Processing = false
		if ev.PaymentURL == "" {
			next.Phase = PhaseLinkMissing
			next.Notice = &Notice{Kind: NoticePaymentLinkMissing, Message: payment.MsgPaymentLinkMissing}
			return next
		}
		next.Phase = PhaseRedirectPending
		next.PaymentURL = ev.PaymentURL
		next.Notice = nil
		return next

	case SubmissionFailed:
		if s.Phase != PhaseSubmitting {
			return next
		}
		msg := ev.Message
		if msg == "" {
			msg = payment.MsgGenericFailure
		}
		next.Processing = false
		next.Phase = PhaseStudentSelected
		next.Notice = &Notice{Kind: NoticeSubmissionFailed, Message: msg}
		return next
	}

	// Everything below is an edit.
	switch {
	case s.Phase == PhaseIdle:
		return next
	case s.Phase.Terminal():
		next.Notice = &Notice{Kind: NoticeLocked, Message: MsgLocked}
		return next
	case s.Processing:
		next.Notice = &Notice{Kind: NoticeBusy, Message: MsgBusy}
		return next
	}
	next.Notice = nil

	switch ev := e.(type) {
	case SearchTextChanged:
		next.SearchText = ev.Text
		if next.Selected != nil && ev.Text != next.Selected.FullName {
			clearSelection(&next)
		}
		if !models.Searchable(ev.Text) {
			invalidateLookup(&next)
		}

	case GradeFilterChanged:
		next.GradeFilter = ev.Grade

	case FiltersCleared:
		next.GradeFilter = ""

	case LookupStarted:
		if ev.Seq <= s.LookupSeq {
			return next
		}
		next.LookupSeq = ev.Seq
		next.Searching = true

	case StudentSelected:
		student, ok := findCandidate(s.Candidates, ev.StudentID)
		if !ok {
			next.Notice = &Notice{Kind: NoticeValidation, Message: MsgSelectStudent}
			return next
		}
		next.Selected = &student
		next.Form.StudentName = student.FullName
		next.Form.StudentGrade = student.Grade
		next.Form.StudentClass = student.Section
		next.SearchText = student.FullName
		next.Phase = PhaseStudentSelected
		invalidateLookup(&next)

	case SelectionCleared:
		clearSelection(&next)
		next.SearchText = ""
		invalidateLookup(&next)

	case ContactChanged:
		if ev.ParentName != nil {
			next.Form.ParentName = *ev.ParentName
		}
		if ev.Email != nil {
			next.Form.Email = *ev.Email
		}
		if ev.Phone != nil {
			next.Form.Phone = *ev.Phone
		}

	case IdentifierChanged:
		next.Form.Identifier = domain.MaskNationalID(ev.Input)

	case PaymentMethodChanged:
		switch ev.Method {
		case pricing.MethodPix, pricing.MethodCredit:
			next.Form.PaymentMethod = ev.Method
			next.Form.Installments = pricing.ClampInstallments(ev.Method, next.Form.TicketQuantity, next.Form.Installments)
		default:
			next.Notice = &Notice{Kind: NoticeUnavailableOption, Message: "Forma de pagamento indisponível."}
		}

	case InstallmentsChanged:
		if !installmentsAllowed(next.Form, ev.Installments) {
			next.Notice = &Notice{Kind: NoticeUnavailableOption, Message: MsgInstallmentsNotAllowed}
			return next
		}
		next.Form.Installments = ev.Installments

	case TicketsIncremented:
		stepTickets(&next, +1)

	case TicketsDecremented:
		stepTickets(&next, -1)

	case SubmitRequested:
		if msg := SubmitBlocker(next); msg != "" {
			next.Notice = &Notice{Kind: NoticeValidation, Message: msg}
			return next
		}
		next.Phase = PhaseSubmitting
		next.Processing = true
		invalidateLookup(&next)
	}
	return next
}

// SubmitBlocker runs the submission gate and returns the first failure's
// message, or "" when s may be submitted. Checks run in order: student
// selected, identifier complete, identifier valid, contact fields present.
func SubmitBlocker(s State) string {
	if s.Selected == nil {
		return MsgSelectStudent
	}
	digits := domain.NationalIDDigits(s.Form.Identifier)
	if len(digits) != domain.NationalIDLength {
		return MsgFillValidID
	}
	if !domain.ValidNationalID(digits) {
		return domain.MsgNationalIDInvalid
	}
	if strings.TrimSpace(s.Form.ParentName) == "" {
		return MsgFillParentName
	}
	if strings.TrimSpace(s.Form.Email) == "" {
		return MsgFillEmail
	}
	if strings.TrimSpace(s.Form.Phone) == "" {
		return MsgFillPhone
	}
	return ""
}

// LookupWanted reports whether s should issue a lookup for its current search
// text and filter.
func LookupWanted(s State) bool {
	return s.Phase == PhaseEditing &&
		!s.Processing &&
		s.Selected == nil &&
		models.Searchable(s.SearchText)
}

func clearSelection(s *State) {
	s.Selected = nil
	s.Form.StudentName = ""
	s.Form.StudentGrade = ""
	s.Form.StudentClass = ""
	if s.Phase == PhaseStudentSelected {
		s.Phase = PhaseEditing
	}
}

// invalidateLookup drops the candidate list and makes any in-flight lookup
// stale.
func invalidateLookup(s *State) {
	s.LookupSeq++
	s.Searching = false
	s.Candidates = nil
	s.DropdownVisible = false
}

func findCandidate(candidates []models.Student, id string) (models.Student, bool) {
	for _, c := range candidates {
		if c.ID == id {
			return c, true
		}
	}
	return models.Student{}, false
}

func installmentsAllowed(f Form, n int) bool {
	if f.PaymentMethod != pricing.MethodCredit {
		return n == 1
	}
	return n >= 1 && n <= pricing.MaxInstallments(f.TicketQuantity)
}

func stepTickets(s *State, delta int) {
	n := s.Form.TicketQuantity + delta
	if n < pricing.MinTickets || n > pricing.MaxTickets {
		return
	}
	s.Form.TicketQuantity = n
	s.Form.Installments = pricing.ClampInstallments(s.Form.PaymentMethod, n, s.Form.Installments)
}
