package gateway

import (
	"context"
	"fmt"

	"eventsphere/models"
	"eventsphere/utils"
)

// PaymentGateway executes an external charge for a pending transaction.
// It returns whether the charge succeeded and, when available, the
// provider's reference string.
type PaymentGateway interface {
	ProcessPayment(ctx context.Context, tx *models.Transaction) (bool, string, error)
}

// MockGateway simulates a provider for development and tests: charges
// with a non-negative amount succeed and get a synthetic reference.
type MockGateway struct{}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) ProcessPayment(_ context.Context, tx *models.Transaction) (bool, string, error) {
	if tx.Amount < 0 {
		return false, "", nil
	}

	code, err := utils.GenerateCode(8)
	if err != nil {
		return false, "", err
	}
	return true, fmt.Sprintf("PG-REF-%s", code), nil
}
