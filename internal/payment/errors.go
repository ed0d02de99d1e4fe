package payment

import (
	"errors"

	"eventreg/internal/platform/provider"
)

// Messages shown to the parent when a submission does not end in a redirect.
const (
	MsgGenericFailure     = "Erro ao processar inscrição. Tente novamente."
	MsgRejectedFallback   = "Erro ao processar dados. Tente novamente."
	MsgServerFailure      = "Erro ao enviar dados para o servidor"
	MsgPaymentLinkMissing = "Erro: Link de pagamento não encontrado. Entre em contato conosco."
)

// ErrPaymentLinkMissing means the workflow accepted the registration but did
// not return a payment link. The registration exists remotely, so the
// submission must not be retried blindly.
var ErrPaymentLinkMissing = errors.New("payment link missing from workflow reply")

// RejectedError is a reply the workflow sent on purpose: success:false or a
// non-2xx status. Message is the server's own text, possibly empty.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "registration rejected by workflow"
	}
	return "registration rejected by workflow: " + e.Message
}

// UserMessage picks the notice shown for a failed submission: the server's
// message when it sent one, otherwise a fallback matching the failure kind.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrPaymentLinkMissing) {
		return MsgPaymentLinkMissing
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		switch {
		case rejected.Message != "":
			return rejected.Message
		case rejected.StatusCode != 0:
			return MsgServerFailure
		default:
			return MsgRejectedFallback
		}
	}
	return MsgGenericFailure
}

// Outcome labels err for metrics and audit.
func Outcome(err error) string {
	var rejected *RejectedError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrPaymentLinkMissing):
		return "link_missing"
	case errors.As(err, &rejected):
		return "rejected"
	default:
		return string(provider.CategoryOf(err))
	}
}
