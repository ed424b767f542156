// Package mocks provides shared test doubles for shimbuild packages.
package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/AndreyAkinshin/shimbuild/internal/shim"
)

// Shim implements shim.Runner for testing.
// Use NewShim() to create instances with a fluent builder API.
type Shim struct {
	// RunFunc is called by Run. If nil, Run returns a successful Result.
	RunFunc func(ctx context.Context, req shim.Request) (*shim.Result, error)

	// Execution tracking (thread-safe)
	runCount int32
	inFlight int32
	peak     int32
	mu       sync.Mutex
	requests []shim.Request
}

// NewShim creates a mock shim that succeeds for every request.
func NewShim() *Shim {
	return &Shim{}
}

// WithRunFunc sets the function called for each request.
func (m *Shim) WithRunFunc(fn func(ctx context.Context, req shim.Request) (*shim.Result, error)) *Shim {
	m.RunFunc = fn
	return m
}

// WithExitCodes makes Run return the exit code chosen by fn for each
// request. Requests fn does not recognize should return 0.
func (m *Shim) WithExitCodes(fn func(req shim.Request) int) *Shim {
	m.RunFunc = func(ctx context.Context, req shim.Request) (*shim.Result, error) {
		code := fn(req)
		res := &shim.Result{ExitCode: code}
		if code != 0 {
			res.Stdout = req.ID + ": error\n"
		}
		return res, nil
	}
	return m
}

func (m *Shim) Run(ctx context.Context, req shim.Request) (*shim.Result, error) {
	atomic.AddInt32(&m.runCount, 1)
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		p := atomic.LoadInt32(&m.peak)
		if n <= p || atomic.CompareAndSwapInt32(&m.peak, p, n) {
			break
		}
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, req)
	}
	return &shim.Result{}, nil
}

// Test inspection methods

// RunCount returns the number of times Run was called.
func (m *Shim) RunCount() int32 {
	return atomic.LoadInt32(&m.runCount)
}

// PeakConcurrency returns the highest number of simultaneous Run calls seen.
func (m *Shim) PeakConcurrency() int32 {
	return atomic.LoadInt32(&m.peak)
}

// Requests returns a copy of every request in call order.
func (m *Shim) Requests() []shim.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]shim.Request, len(m.requests))
	copy(result, m.requests)
	return result
}

// Reset clears execution tracking state.
func (m *Shim) Reset() {
	atomic.StoreInt32(&m.runCount, 0)
	atomic.StoreInt32(&m.peak, 0)
	m.mu.Lock()
	m.requests = nil
	m.mu.Unlock()
}
