package handler

import (
	"eventreg/internal/pricing"
	"eventreg/internal/registration"
	"eventreg/pkg/domain"
)

// QuoteResponse is the response of GET /quote.
type QuoteResponse struct {
	Quote              *registration.QuoteView `json:"quote"`
	InstallmentOptions []pricing.Option        `json:"installment_options"`
}

// IdentifierCheckResponse is the response of POST /identifier/check.
type IdentifierCheckResponse struct {
	Identifier string `json:"identifier"`
	domain.NationalIDCheck
}
