package payment

import "time"

// Payload is the registration record posted to the workflow endpoint. Field
// names are the ones the workflow expects.
type Payload struct {
	StudentName    string    `json:"studentName"`
	StudentGrade   string    `json:"studentGrade"`
	StudentClass   string    `json:"studentClass"`
	ParentName     string    `json:"parentName"`
	CPF            string    `json:"cpf"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	PaymentMethod  string    `json:"paymentMethod"`
	Installments   int       `json:"installments"`
	TicketQuantity int       `json:"ticketQuantity"`
	Amount         float64   `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
	Event          string    `json:"event"`
}

// reply is the workflow's JSON answer. Success is a pointer so that an
// absent field is not read as false.
type reply struct {
	Success    *bool  `json:"success"`
	Message    string `json:"message"`
	PaymentURL string `json:"paymentUrl"`
}

// Result is an accepted registration.
type Result struct {
	PaymentURL string
}
