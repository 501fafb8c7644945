package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// StubClient accepts every entry and remembers references so replays are reported as duplicates.
// Used in development when no bank credentials are configured.
type StubClient struct {
	mu   sync.Mutex
	seen map[string]string
}

func NewStubClient() *StubClient {
	return &StubClient{seen: make(map[string]string)}
}

func (s *StubClient) Debit(ctx context.Context, e Entry) (*Receipt, error) {
	return s.apply(ctx, e)
}

func (s *StubClient) Credit(ctx context.Context, e Entry) (*Receipt, error) {
	return s.apply(ctx, e)
}

func (s *StubClient) apply(ctx context.Context, e Entry) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Amount <= 0 {
		return nil, ErrDeclined
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.seen[e.Reference]; ok {
		return &Receipt{Reference: e.Reference, ProviderRef: ref, Duplicate: true}, nil
	}
	ref := "stub_" + uuid.NewString()
	s.seen[e.Reference] = ref
	return &Receipt{Reference: e.Reference, ProviderRef: ref}, nil
}
