package pkg

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type stubSubmitter struct {
	mu       sync.Mutex
	result   PaymentResult
	err      error
	requests []PaymentRequest
	apiKeys  []string
	// when set, Submit waits for it to close (or ctx) before answering
	gate chan struct{}
	// closed once Submit has been entered
	entered chan struct{}
}

func (s *stubSubmitter) Submit(ctx context.Context, apiKey string, req PaymentRequest) (PaymentResult, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.apiKeys = append(s.apiKeys, apiKey)
	gate, entered := s.gate, s.entered
	s.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return PaymentResult{}, ctx.Err()
		}
	}
	return s.result, s.err
}

func (s *stubSubmitter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type stubPresentation struct {
	once      sync.Once
	dismissed chan struct{}
	mu        sync.Mutex
	dismisses int
}

func newStubPresentation() *stubPresentation {
	return &stubPresentation{dismissed: make(chan struct{})}
}

func (p *stubPresentation) Dismiss() {
	p.mu.Lock()
	p.dismisses++
	p.mu.Unlock()
	p.once.Do(func() { close(p.dismissed) })
}

func (p *stubPresentation) Dismissed() <-chan struct{} {
	return p.dismissed
}

func (p *stubPresentation) dismissCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dismisses
}

type stubSurface struct {
	mu           sync.Mutex
	urls         []string
	onSignal     SignalFunc
	presentation *stubPresentation
	openErr      error
	// signal delivered from inside Open, before it returns
	signalDuringOpen []string
}

func (s *stubSurface) Open(_ context.Context, url string, onSignal SignalFunc) (Presentation, error) {
	s.mu.Lock()
	s.urls = append(s.urls, url)
	if s.openErr != nil {
		s.mu.Unlock()
		return nil, s.openErr
	}
	s.onSignal = onSignal
	s.presentation = newStubPresentation()
	p := s.presentation
	early := s.signalDuringOpen
	s.mu.Unlock()
	if early != nil {
		onSignal(early[0], early[1])
	}
	return p, nil
}

func (s *stubSurface) signal(status, message string) {
	s.mu.Lock()
	f := s.onSignal
	s.mu.Unlock()
	f(status, message)
}

func (s *stubSurface) opened() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

func (s *stubSurface) current() *stubPresentation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presentation
}

type resultRecorder struct {
	mu      sync.Mutex
	results []PaymentResult
	ch      chan PaymentResult
}

func newResultRecorder() *resultRecorder {
	return &resultRecorder{ch: make(chan PaymentResult, 8)}
}

func (r *resultRecorder) deliver(res PaymentResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
	r.ch <- res
}

func (r *resultRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func (r *resultRecorder) wait(t *testing.T) PaymentResult {
	t.Helper()
	select {
	case res := <-r.ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a delivered result")
		return PaymentResult{}
	}
}

func testPaymentConfig() PaymentConfig {
	return PaymentConfig{
		Amount:      decimal.RequireFromString("10.50"),
		Currency:    "SAR",
		Description: "order #42",
		CallbackURL: "https://shop.example/return",
		Metadata:    map[string]string{"order": "42"},
	}
}
