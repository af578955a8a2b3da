package billing

import (
	"context"
	"errors"
	"fmt"

	billingapp "water-billing/internal/billing/application"
	billing "water-billing/internal/billing/domain"
	"water-billing/internal/calendar"
	meteringapp "water-billing/internal/metering/application"
)

// PaymentGenerator triggers billing after a reading submission.
type PaymentGenerator struct {
	generator *billingapp.PaymentGenerator
}

// NewPaymentGenerator constructs the adapter.
func NewPaymentGenerator(generator *billingapp.PaymentGenerator) (*PaymentGenerator, error) {
	if generator == nil {
		return nil, errors.New("payment adapter: nil generator")
	}
	return &PaymentGenerator{generator: generator}, nil
}

// GeneratePayment creates or fetches the month's payment and summarizes it.
func (a *PaymentGenerator) GeneratePayment(ctx context.Context, apartmentID, userID string, month calendar.Month) (meteringapp.PaymentSummary, error) {
	result, err := a.generator.Generate(ctx, billingapp.GenerateRequest{
		ApartmentID: apartmentID,
		UserID:      userID,
		Month:       month,
	})
	if err != nil {
		if errors.Is(err, billing.ErrNoTariffConfigured) {
			return meteringapp.PaymentSummary{}, fmt.Errorf("%w: %w", meteringapp.ErrBillingUnavailable, err)
		}
		return meteringapp.PaymentSummary{}, err
	}
	payment := result.Payment
	return meteringapp.PaymentSummary{
		ID:      payment.ID,
		Month:   payment.BillingMonth,
		Amount:  payment.Amount,
		PayDate: payment.PayDate,
		Status:  string(payment.Status),
		Existed: result.Existed,
	}, nil
}
