// Package pricing computes ticket totals and installment amounts.
//
// Everything here is pure: a quote is a function of ticket quantity, payment
// method and installment count only. Amounts keep full decimal precision
// until Rounded or a Format function is applied.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	dErrors "eventreg/pkg/domain-errors"
)

// Method is how the buyer pays.
type Method string

const (
	MethodPix    Method = "pix"
	MethodCredit Method = "credit"
)

// ParseMethod validates a payment method received from a client.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodPix, MethodCredit:
		return m, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "payment method is required")
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", s))
	}
}

// Ticket quantity bounds of the stepper.
const (
	MinTickets = 1
	MaxTickets = 20
)

var (
	// UnitPrice is the price of one ticket.
	UnitPrice = decimal.RequireFromString("30.00")
	// CardFixedFee is charged once per credit payment regardless of tier.
	CardFixedFee = decimal.RequireFromString("0.49")

	rateSingle = decimal.RequireFromString("0.0299")
	rateShort  = decimal.RequireFromString("0.0349")
	rateLong   = decimal.RequireFromString("0.0399")
)

// SurchargeRate returns the card surcharge for an installment count:
// 2.99% at 1x, 3.49% from 2x to 4x, 3.99% from 5x.
func SurchargeRate(installments int) decimal.Decimal {
	switch {
	case installments <= 1:
		return rateSingle
	case installments <= 4:
		return rateShort
	default:
		return rateLong
	}
}

// Quote is the price breakdown for one purchase.
type Quote struct {
	Tickets        int
	Method         Method
	Installments   int
	UnitPrice      decimal.Decimal
	Subtotal       decimal.Decimal
	SurchargeRate  decimal.Decimal
	Surcharge      decimal.Decimal
	Fee            decimal.Decimal
	Total          decimal.Decimal
	PerInstallment decimal.Decimal
}

// Calculate prices tickets for the given method and installment count.
// Pix ignores installments and always quotes a single payment.
func Calculate(tickets int, method Method, installments int) (Quote, error) {
	if tickets < MinTickets || tickets > MaxTickets {
		return Quote{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("ticket quantity must be between %d and %d", MinTickets, MaxTickets))
	}
	if installments < 1 {
		return Quote{}, dErrors.New(dErrors.CodeValidation, "installments must be at least 1")
	}

	q := Quote{
		Tickets:       tickets,
		Method:        method,
		Installments:  installments,
		UnitPrice:     UnitPrice,
		Subtotal:      UnitPrice.Mul(decimal.NewFromInt(int64(tickets))),
		SurchargeRate: decimal.Zero,
		Surcharge:     decimal.Zero,
		Fee:           decimal.Zero,
	}

	switch method {
	case MethodPix:
		q.Installments = 1
		q.Total = q.Subtotal
	case MethodCredit:
		q.SurchargeRate = SurchargeRate(installments)
		q.Surcharge = q.Subtotal.Mul(q.SurchargeRate)
		q.Fee = CardFixedFee
		q.Total = q.Subtotal.Add(q.Surcharge).Add(q.Fee)
	default:
		return Quote{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", method))
	}

	q.PerInstallment = q.Total.Div(decimal.NewFromInt(int64(q.Installments)))
	return q, nil
}

// Rounded returns a copy with every amount rounded to cents.
func (q Quote) Rounded() Quote {
	q.Subtotal = q.Subtotal.Round(2)
	q.Surcharge = q.Surcharge.Round(2)
	q.Fee = q.Fee.Round(2)
	q.Total = q.Total.Round(2)
	q.PerInstallment = q.PerInstallment.Round(2)
	return q
}

// MaxInstallments caps the installment count by ticket quantity: one payment
// below 3 tickets, up to 2 for 3 to 5 tickets, up to 3 from 6 tickets.
func MaxInstallments(tickets int) int {
	switch {
	case tickets >= 6:
		return 3
	case tickets >= 3:
		return 2
	default:
		return 1
	}
}

// InstallmentOptions lists the installment counts offered for a quantity.
func InstallmentOptions(tickets int) []int {
	limit := MaxInstallments(tickets)
	options := make([]int, 0, limit)
	for n := 1; n <= limit; n++ {
		options = append(options, n)
	}
	return options
}

// ClampInstallments keeps an installment choice within what the method and
// quantity allow.
func ClampInstallments(method Method, tickets, installments int) int {
	if method != MethodCredit || installments < 1 {
		return 1
	}
	if limit := MaxInstallments(tickets); installments > limit {
		return limit
	}
	return installments
}
