package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartgifter/giftledger/generic"
)

// Sandbox is an in-process Provider for development and tests. It declines
// charges above Limit and waits Latency before answering.
type Sandbox struct {
	Limit   generic.Amount
	Latency time.Duration
	Now     func() time.Time

	mu       sync.Mutex
	receipts map[string]Receipt
}

func NewSandbox(limit generic.Amount, latency time.Duration) *Sandbox {
	return &Sandbox{
		Limit:    limit,
		Latency:  latency,
		Now:      time.Now,
		receipts: make(map[string]Receipt),
	}
}

func (s *Sandbox) RequestTopUp(ctx context.Context, req TopUpRequest) (Receipt, error) {
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Receipt{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.IdempotencyKey != "" {
		if r, ok := s.receipts[req.IdempotencyKey]; ok {
			return r, nil
		}
	}

	if !s.Limit.IsZero() && req.Amount.GreaterThan(s.Limit) {
		return Receipt{}, fmt.Errorf("%w: %s exceeds sandbox limit %s", ErrPaymentDeclined, req.Amount, s.Limit)
	}

	r := Receipt{
		ID:          "rcpt_" + uuid.NewString(),
		Amount:      req.Amount,
		ProcessedAt: s.Now().UTC(),
	}
	if req.IdempotencyKey != "" {
		s.receipts[req.IdempotencyKey] = r
	}
	return r, nil
}
