package service

import (
	"encoding/json"
	"errors"

	"github.com/atelier-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Errors returned when validating payment method maps.
var (
	ErrEmptyMethods         = errors.New("metodo_pago is required")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidMethodAmount  = errors.New("invalid payment method amount")
	ErrMethodSumMismatch    = errors.New("payment methods must sum to the amount")
)

// ParsePaymentMethods validates a method→amount map against the known
// methods and the expected total, returning the JSONB representation
// stored alongside the payment. Amounts are strings on the wire to avoid
// float drift; they are normalized to two decimals here.
func ParsePaymentMethods(methods map[string]string, expected decimal.Decimal) ([]byte, error) {
	if len(methods) == 0 {
		return nil, ErrEmptyMethods
	}

	normalized := make(map[string]string, len(methods))
	sum := decimal.Zero
	for method, raw := range methods {
		switch method {
		case enum.PaymentMethodEfectivo, enum.PaymentMethodTarjeta, enum.PaymentMethodTransferencia:
		default:
			return nil, ErrInvalidPaymentMethod
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil || !amount.IsPositive() {
			return nil, ErrInvalidMethodAmount
		}
		normalized[method] = amount.StringFixed(2)
		sum = sum.Add(amount)
	}
	if !sum.Equal(expected) {
		return nil, ErrMethodSumMismatch
	}
	return json.Marshal(normalized)
}
