package service

import (
	"context"

	"github.com/unifarm-balance-ledger/internal/domain/shared"
)

// ProcessingService defines the interface for applying queued deposit events
type ProcessingService interface {
	// ProcessDeposit applies one deposit event. A nil return acknowledges
	// the Kafka message; an error triggers redelivery.
	ProcessDeposit(ctx context.Context, request *shared.MutationRequest) error
}
