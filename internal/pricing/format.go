package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBRL renders an amount as shown to buyers, e.g. "R$ 31,39".
func FormatBRL(amount decimal.Decimal) string {
	return "R$ " + strings.Replace(amount.StringFixed(2), ".", ",", 1)
}

// Option is one installment choice with its display label.
type Option struct {
	Installments   int             `json:"installments"`
	PerInstallment decimal.Decimal `json:"per_installment"`
	Label          string          `json:"label"`
}

// CreditOptions prices every installment count allowed for tickets, each at
// its own surcharge tier.
func CreditOptions(tickets int) ([]Option, error) {
	counts := InstallmentOptions(tickets)
	options := make([]Option, 0, len(counts))
	for _, n := range counts {
		q, err := Calculate(tickets, MethodCredit, n)
		if err != nil {
			return nil, err
		}
		per := q.PerInstallment.Round(2)
		options = append(options, Option{
			Installments:   n,
			PerInstallment: per,
			Label:          fmt.Sprintf("%dx de %s", n, FormatBRL(per)),
		})
	}
	return options, nil
}
