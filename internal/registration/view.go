package registration

import (
	"time"

	"github.com/shopspring/decimal"

	"eventreg/internal/pricing"
	"eventreg/internal/students/models"
	"eventreg/pkg/domain"
)

// View is what a client renders for a session. Validation, quote and
// installment options are derived here on every call and never stored.
type View struct {
	SessionID          string                 `json:"session_id"`
	Phase              Phase                  `json:"phase"`
	Processing         bool                   `json:"processing"`
	Searching          bool                   `json:"searching"`
	SearchText         string                 `json:"search_text"`
	GradeFilter        string                 `json:"grade_filter"`
	Shift              string                 `json:"shift"`
	Grades             []string               `json:"grades"`
	Form               FormView               `json:"form"`
	SelectedStudent    *models.Student        `json:"selected_student"`
	Candidates         []models.Student       `json:"candidates"`
	DropdownVisible    bool                   `json:"dropdown_visible"`
	Validation         domain.NationalIDCheck `json:"validation"`
	Quote              *QuoteView             `json:"quote"`
	InstallmentOptions []pricing.Option       `json:"installment_options"`
	CanSubmit          bool                   `json:"can_submit"`
	Notice             *Notice                `json:"notice"`
	Redirect           *Redirect              `json:"redirect"`
}

// FormView mirrors Form for JSON clients.
type FormView struct {
	StudentName    string         `json:"student_name"`
	StudentGrade   string         `json:"student_grade"`
	StudentClass   string         `json:"student_class"`
	ParentName     string         `json:"parent_name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone"`
	Identifier     string         `json:"identifier"`
	PaymentMethod  pricing.Method `json:"payment_method"`
	Installments   int            `json:"installments"`
	TicketQuantity int            `json:"ticket_quantity"`
}

// QuoteView is a price breakdown rounded to cents, with display strings.
type QuoteView struct {
	Tickets               int             `json:"tickets"`
	Method                pricing.Method  `json:"method"`
	Installments          int             `json:"installments"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	SurchargeRate         decimal.Decimal `json:"surcharge_rate"`
	Surcharge             decimal.Decimal `json:"surcharge"`
	Fee                   decimal.Decimal `json:"fee"`
	Total                 decimal.Decimal `json:"total"`
	PerInstallment        decimal.Decimal `json:"per_installment"`
	TotalDisplay          string          `json:"total_display"`
	PerInstallmentDisplay string          `json:"per_installment_display"`
}

// Redirect tells the client where to go and how long to wait first.
type Redirect struct {
	URL     string `json:"url"`
	DelayMS int64  `json:"delay_ms"`
}

// NewQuoteView rounds q for display.
func NewQuoteView(q pricing.Quote) *QuoteView {
	r := q.Rounded()
	return &QuoteView{
		Tickets:               r.Tickets,
		Method:                r.Method,
		Installments:          r.Installments,
		UnitPrice:             r.UnitPrice,
		Subtotal:              r.Subtotal,
		SurchargeRate:         r.SurchargeRate,
		Surcharge:             r.Surcharge,
		Fee:                   r.Fee,
		Total:                 r.Total,
		PerInstallment:        r.PerInstallment,
		TotalDisplay:          pricing.FormatBRL(q.Total),
		PerInstallmentDisplay: pricing.FormatBRL(q.PerInstallment),
	}
}

// BuildView derives the client view of s.
func BuildView(s State, grades []string, redirectDelay time.Duration) View {
	v := View{
		SessionID:   s.SessionID,
		Phase:       s.Phase,
		Processing:  s.Processing,
		Searching:   s.Searching,
		SearchText:  s.SearchText,
		GradeFilter: s.GradeFilter,
		Shift:       s.Shift,
		Grades:      grades,
		Form: FormView{
			StudentName:    s.Form.StudentName,
			StudentGrade:   s.Form.StudentGrade,
			StudentClass:   s.Form.StudentClass,
			ParentName:     s.Form.ParentName,
			Email:          s.Form.Email,
			Phone:          s.Form.Phone,
			Identifier:     s.Form.Identifier,
			PaymentMethod:  s.Form.PaymentMethod,
			Installments:   s.Form.Installments,
			TicketQuantity: s.Form.TicketQuantity,
		},
		SelectedStudent: s.Selected,
		Candidates:      s.Candidates,
		DropdownVisible: s.DropdownVisible,
		Validation:      domain.CheckNationalID(s.Form.Identifier),
		Notice:          s.Notice,
	}
	if v.Candidates == nil {
		v.Candidates = []models.Student{}
	}

	if q, err := s.Quote(); err == nil {
		v.Quote = NewQuoteView(q)
	}
	if s.Form.TicketQuantity >= pricing.MinTickets && s.Form.TicketQuantity <= pricing.MaxTickets {
		if opts, err := pricing.CreditOptions(s.Form.TicketQuantity); err == nil {
			v.InstallmentOptions = opts
		}
	}

	editable := !s.Processing && !s.Phase.Terminal() && s.Phase != PhaseIdle
	v.CanSubmit = editable && SubmitBlocker(s) == ""

	if s.Phase == PhaseRedirectPending && s.PaymentURL != "" {
		v.Redirect = &Redirect{URL: s.PaymentURL, DelayMS: redirectDelay.Milliseconds()}
	}
	return v
}
