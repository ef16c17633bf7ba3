package mock

import (
	"context"
	"sync"

	"github.com/bkuiper/adwatch"
)

var _ adwatch.StateService = (*StateService)(nil)

// StateService is a mock implementation of adwatch.StateService.
type StateService struct {
	LastSeenFn    func(ctx context.Context) (*adwatch.Seen, error)
	SetLastSeenFn func(ctx context.Context, seen *adwatch.Seen) error
	CookiesFn     func(ctx context.Context) ([]byte, error)
	SetCookiesFn  func(ctx context.Context, jar []byte) error
}

func (s *StateService) LastSeen(ctx context.Context) (*adwatch.Seen, error) {
	return s.LastSeenFn(ctx)
}

func (s *StateService) SetLastSeen(ctx context.Context, seen *adwatch.Seen) error {
	return s.SetLastSeenFn(ctx, seen)
}

func (s *StateService) Cookies(ctx context.Context) ([]byte, error) {
	return s.CookiesFn(ctx)
}

func (s *StateService) SetCookies(ctx context.Context, jar []byte) error {
	return s.SetCookiesFn(ctx, jar)
}

// MemoryState is an in-memory adwatch.StateService for tests that only care
// about guard behavior, not call wiring.
type MemoryState struct {
	mu   sync.Mutex
	seen *adwatch.Seen
	jar  []byte
}

var _ adwatch.StateService = (*MemoryState)(nil)

func (s *MemoryState) LastSeen(context.Context) (*adwatch.Seen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		return nil, adwatch.Errorf(adwatch.ENOTFOUND, "nothing observed yet")
	}
	return s.seen, nil
}

func (s *MemoryState) SetLastSeen(_ context.Context, seen *adwatch.Seen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = seen
	return nil
}

func (s *MemoryState) Cookies(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jar == nil {
		return nil, adwatch.Errorf(adwatch.ENOTFOUND, "no cookie jar persisted")
	}
	return s.jar, nil
}

func (s *MemoryState) SetCookies(_ context.Context, jar []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = jar
	return nil
}
