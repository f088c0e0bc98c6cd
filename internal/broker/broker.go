// Package broker provides order execution implementations. Only
// simulated execution exists; no real money is ever touched.
package broker

import (
	"context"

	"deltastack/internal/models"
)

// Broker executes orders and reports account state.
type Broker interface {
	PlaceOrder(ctx context.Context, order models.OrderRequest) (*models.OrderResult, error)
	GetPositions(ctx context.Context) ([]models.Position, error)
	GetAccount(ctx context.Context) (*models.Account, error)
}
