package handler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"eventreg/internal/pricing"
	"eventreg/internal/registration"
	dErrors "eventreg/pkg/domain-errors"
)

// maxFieldLength bounds free-text fields before sanitizing.
const maxFieldLength = 500

// SearchRequest is the body of PUT /forms/{id}/search.
type SearchRequest struct {
	Text string `json:"text"`
}

func (r *SearchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if utf8.RuneCountInString(r.Text) > maxFieldLength {
		return dErrors.New(dErrors.CodeValidation, "text is too long")
	}
	return nil
}

// FilterRequest is the body of PUT /forms/{id}/filters.
type FilterRequest struct {
	Grade string `json:"grade"`
}

func (r *FilterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Grade = strings.TrimSpace(r.Grade)
	return nil
}

// SelectionRequest is the body of PUT /forms/{id}/selection.
type SelectionRequest struct {
	StudentID string `json:"student_id"`
}

func (r *SelectionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.StudentID = strings.TrimSpace(r.StudentID)
	if r.StudentID == "" {
		return dErrors.New(dErrors.CodeValidation, "student_id is required")
	}
	return nil
}

// ContactRequest is the body of PATCH /forms/{id}/contact. Absent fields are
// left untouched.
type ContactRequest struct {
	ParentName *string `json:"parent_name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	Identifier *string `json:"identifier"`
}

func (r *ContactRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.ParentName == nil && r.Email == nil && r.Phone == nil && r.Identifier == nil {
		return dErrors.New(dErrors.CodeValidation, "at least one field is required")
	}
	for name, v := range map[string]*string{
		"parent_name": r.ParentName,
		"email":       r.Email,
		"phone":       r.Phone,
		"identifier":  r.Identifier,
	} {
		if v != nil && utf8.RuneCountInString(*v) > maxFieldLength {
			return dErrors.New(dErrors.CodeValidation, name+" is too long")
		}
	}
	return nil
}

// Update converts the request into a controller update.
func (r *ContactRequest) Update() registration.ContactUpdate {
	return registration.ContactUpdate{
		ParentName: r.ParentName,
		Email:      r.Email,
		Phone:      r.Phone,
		Identifier: r.Identifier,
	}
}

// PaymentRequest is the body of PUT /forms/{id}/payment.
type PaymentRequest struct {
	Method       string `json:"method"`
	Installments int    `json:"installments"`
}

func (r *PaymentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Method = strings.ToLower(strings.TrimSpace(r.Method))
	if _, err := pricing.ParseMethod(r.Method); err != nil {
		return err
	}
	if r.Installments < 0 {
		return dErrors.New(dErrors.CodeValidation, "installments must not be negative")
	}
	return nil
}

// IdentifierCheckRequest is the body of POST /identifier/check.
type IdentifierCheckRequest struct {
	Identifier string `json:"identifier"`
}

func (r *IdentifierCheckRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Identifier) > 64 {
		return dErrors.New(dErrors.CodeValidation, "identifier is too long")
	}
	return nil
}

// QuoteParams are the query parameters of GET /quote.
type QuoteParams struct {
	Tickets      int
	Method       pricing.Method
	Installments int
}

// ParseQuoteParams reads tickets, method and installments. Method defaults to
// pix and installments to 1. Credit installments above the quantity's cap are
// rejected rather than clamped.
func ParseQuoteParams(get func(string) string) (QuoteParams, error) {
	p := QuoteParams{Method: pricing.MethodPix, Installments: 1}

	tickets, err := strconv.Atoi(strings.TrimSpace(get("tickets")))
	if err != nil {
		return p, dErrors.New(dErrors.CodeValidation, "tickets must be a number")
	}
	p.Tickets = tickets

	if m := strings.TrimSpace(get("method")); m != "" {
		method, err := pricing.ParseMethod(strings.ToLower(m))
		if err != nil {
			return p, err
		}
		p.Method = method
	}
	if raw := strings.TrimSpace(get("installments")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, dErrors.New(dErrors.CodeValidation, "installments must be a number")
		}
		p.Installments = n
	}
	if p.Method == pricing.MethodCredit {
		if limit := pricing.MaxInstallments(p.Tickets); p.Installments < 1 || p.Installments > limit {
			return p, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("installments must be between 1 and %d for %d tickets", limit, p.Tickets))
		}
	}
	return p, nil
}
