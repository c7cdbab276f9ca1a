package order

import (
	"strings"
)

// PaymentMethod enumerates the accepted payment instruments.
type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentPayPal     PaymentMethod = "paypal"
	PaymentApplePay   PaymentMethod = "apple_pay"
	PaymentGooglePay  PaymentMethod = "google_pay"
)

// Payment holds the payment details supplied with an order. Only the shape
// is validated here; charging is the job of an external gateway.
type Payment struct {
	Method     PaymentMethod
	CardNumber string
	CardName   string
	Expiry     string
	CVC        string
}

// PaymentError carries the individual field failures of the payment gate.
type PaymentError struct {
	Fields []string
}

func (e *PaymentError) Error() string {
	return "payment validation failed: " + strings.Join(e.Fields, "; ")
}

// validatePayment is the format gate standing in for a payment gateway.
// Card payments require a plausible number, holder name, MM/YY expiry,
// and CVC; wallet methods pass through.
func validatePayment(p Payment) error {
	if p.Method != PaymentCreditCard && p.Method != PaymentDebitCard {
		return nil
	}

	var fields []string

	digits := strings.ReplaceAll(p.CardNumber, " ", "")
	if len(digits) < 13 || !allDigits(digits) {
		fields = append(fields, "invalid card number")
	}
	if len(strings.TrimSpace(p.CardName)) < 2 {
		fields = append(fields, "card name is required")
	}
	if !validExpiry(p.Expiry) {
		fields = append(fields, "invalid expiry date (MM/YY)")
	}
	if len(p.CVC) < 3 || !allDigits(p.CVC) {
		fields = append(fields, "invalid CVC")
	}

	if len(fields) > 0 {
		return &PaymentError{Fields: fields}
	}
	return nil
}

func validExpiry(s string) bool {
	if len(s) != 5 || s[2] != '/' {
		return false
	}
	if !allDigits(s[:2]) || !allDigits(s[3:]) {
		return false
	}
	month := int(s[0]-'0')*10 + int(s[1]-'0')
	return month >= 1 && month <= 12
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
