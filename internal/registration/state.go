package registration

import (
	"time"

	"eventreg/internal/pricing"
	"eventreg/internal/students/models"
)

// Phase is where a form session is in the registration flow.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseEditing         Phase = "editing"
	PhaseStudentSelected Phase = "student_selected"
	PhaseSubmitting      Phase = "submitting"
	PhaseRedirectPending Phase = "redirect_pending"
	PhaseLinkMissing     Phase = "link_missing"
	PhaseClosed          Phase = "closed"
)

// Terminal reports whether the phase accepts no further edits.
func (p Phase) Terminal() bool {
	return p == PhaseRedirectPending || p == PhaseLinkMissing || p == PhaseClosed
}

// Form holds the values the parent typed or the selection filled in.
// StudentName, StudentGrade and StudentClass are only ever set by selecting a
// student and are cleared together with the selection.
type Form struct {
	StudentName    string         `msgpack:"student_name"`
	StudentGrade   string         `msgpack:"student_grade"`
	StudentClass   string         `msgpack:"student_class"`
	ParentName     string         `msgpack:"parent_name"`
	Email          string         `msgpack:"email"`
	Phone          string         `msgpack:"phone"`
	Identifier     string         `msgpack:"identifier"`
	PaymentMethod  pricing.Method `msgpack:"payment_method"`
	Installments   int            `msgpack:"installments"`
	TicketQuantity int            `msgpack:"ticket_quantity"`
}

// NoticeKind classifies a user-visible notice.
type NoticeKind string

const (
	NoticeValidation         NoticeKind = "validation"
	NoticeSubmissionFailed   NoticeKind = "submission_failed"
	NoticePaymentLinkMissing NoticeKind = "payment_link_missing"
	NoticeBusy               NoticeKind = "busy"
	NoticeLocked             NoticeKind = "locked"
	NoticeUnavailableOption  NoticeKind = "unavailable_option"
)

// Notice is a blocking message for the parent.
type Notice struct {
	Kind    NoticeKind `msgpack:"kind" json:"kind"`
	Message string     `msgpack:"message" json:"message"`
}

// Messages for notices raised by the controller itself.
const (
	MsgSelectStudent          = "Por favor, selecione um aluno da lista."
	MsgFillValidID            = "Por favor, preencha um CPF válido."
	MsgFillParentName         = "Por favor, preencha o nome do responsável."
	MsgFillEmail              = "Por favor, preencha o e-mail."
	MsgFillPhone              = "Por favor, preencha o telefone."
	MsgBusy                   = "Aguarde, estamos processando sua inscrição."
	MsgLocked                 = "Esta inscrição já foi enviada."
	MsgInstallmentsNotAllowed = "Parcelamento indisponível para esta quantidade de ingressos."
)

// State is one form session. It is a plain value: Reduce returns a new State
// and never mutates its input.
type State struct {
	SessionID       string           `msgpack:"session_id"`
	Version         int64            `msgpack:"version"`
	EventTag        string           `msgpack:"event_tag"`
	Phase           Phase            `msgpack:"phase"`
	Processing      bool             `msgpack:"processing"`
	Searching       bool             `msgpack:"searching"`
	LookupSeq       uint64           `msgpack:"lookup_seq"`
	SearchText      string           `msgpack:"search_text"`
	GradeFilter     string           `msgpack:"grade_filter"`
	Shift           string           `msgpack:"shift"`
	Form            Form             `msgpack:"form"`
	Selected        *models.Student  `msgpack:"selected"`
	Candidates      []models.Student `msgpack:"candidates"`
	DropdownVisible bool             `msgpack:"dropdown_visible"`
	Notice          *Notice          `msgpack:"notice"`
	PaymentURL      string           `msgpack:"payment_url"`
	CreatedAt       time.Time        `msgpack:"created_at"`
	UpdatedAt       time.Time        `msgpack:"updated_at"`
}

// NewState returns an idle session.
func NewState(sessionID string) State {
	return State{SessionID: sessionID, Phase: PhaseIdle}
}

// clone deep-copies the slices and pointers so Reduce can edit freely.
func (s State) clone() State {
	if s.Selected != nil {
		sel := *s.Selected
		s.Selected = &sel
	}
	if s.Notice != nil {
		n := *s.Notice
		s.Notice = &n
	}
	if s.Candidates != nil {
		s.Candidates = append([]models.Student(nil), s.Candidates...)
	}
	return s
}

// Quote prices the current form.
func (s State) Quote() (pricing.Quote, error) {
	return pricing.Calculate(s.Form.TicketQuantity, s.Form.PaymentMethod, s.Form.Installments)
}
