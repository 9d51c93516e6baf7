package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockBackend is an instrumented fake for tests. It counts concurrent
// in-flight calls, records every request, and can be scripted to fail for
// specific units or a fixed number of attempts.
type MockBackend struct {
	mu           sync.Mutex
	inFlight     int
	MaxInFlight  int
	Calls        int
	Requests     []Request
	Delay        time.Duration
	Response     func(req Request) string
	FailFor      map[string]error // fail when the request context contains the key
	FailAttempts map[string]int   // fail this many times, then succeed
	attempts     map[string]int
}

// NewMock creates a mock backend that echoes a canned summary.
func NewMock() *MockBackend {
	return &MockBackend{
		FailFor:      make(map[string]error),
		FailAttempts: make(map[string]int),
		attempts:     make(map[string]int),
	}
}

func (m *MockBackend) Name() string  { return "mock/test-model" }
func (m *MockBackend) Model() string { return "test-model" }

func (m *MockBackend) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.MaxInFlight {
		m.MaxInFlight = m.inFlight
	}
	m.Calls++
	m.Requests = append(m.Requests, req)
	delay := m.Delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, err := range m.FailFor {
		if strings.Contains(req.Context, key) || strings.Contains(req.Prompt, key) {
			return "", err
		}
	}
	for key, n := range m.FailAttempts {
		if !strings.Contains(req.Context, key) && !strings.Contains(req.Prompt, key) {
			continue
		}
		m.attempts[key]++
		if m.attempts[key] <= n {
			return "", &Error{Kind: FailureTransient, Status: 429, Message: "rate limited"}
		}
	}

	if m.Response != nil {
		return m.Response(req), nil
	}
	return fmt.Sprintf("generated documentation (%d bytes of context)", len(req.Context)), nil
}
