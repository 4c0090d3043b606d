package web

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ykjam/cardpay/pkg"
)

// ChallengeHub hosts the 3ds challenges of the daemon. The cardholder's
// browser is sent to a hub url that redirects to the gateway's challenge
// page; the gateway later redirects back to the return endpoint, which
// feeds the signal into the waiting session. A challenge not settled within
// ttl is dismissed, which fails the attempt.
type ChallengeHub struct {
	publicBaseUrl string
	ttl           time.Duration

	mu      sync.Mutex
	pending map[string]*hostedChallenge
}

type hostedChallenge struct {
	hub        *ChallengeHub
	attemptID  string
	url        string
	onSignal   pkg.SignalFunc
	signalOnce sync.Once
	once       sync.Once
	dismissed  chan struct{}
	// guarded by hub.mu
	expiry *time.Timer
}

func NewChallengeHub(publicBaseUrl string, ttl time.Duration) *ChallengeHub {
	return &ChallengeHub{
		publicBaseUrl: strings.TrimRight(publicBaseUrl, "/"),
		ttl:           ttl,
		pending:       make(map[string]*hostedChallenge),
	}
}

// Surface returns the challenge surface for one attempt.
func (h *ChallengeHub) Surface(attemptID string) pkg.ChallengeSurface {
	return hubSurface{hub: h, attemptID: attemptID}
}

func (h *ChallengeHub) HostedURL(attemptID string) string {
	return fmt.Sprintf("%s/api/v1/challenge/%s", h.publicBaseUrl, attemptID)
}

func (h *ChallengeHub) ReturnURL(token string) string {
	return fmt.Sprintf("%s/api/v1/challenge/return?token=%s", h.publicBaseUrl, token)
}

// ChallengeURL returns the gateway page for a pending attempt.
func (h *ChallengeHub) ChallengeURL(attemptID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.pending[attemptID]
	if !ok {
		return "", false
	}
	return c.url, true
}

// Signal forwards a return-url status to the pending attempt.
func (h *ChallengeHub) Signal(attemptID, status, message string) bool {
	h.mu.Lock()
	c, ok := h.pending[attemptID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	c.signalOnce.Do(func() {
		c.onSignal(status, message)
	})
	return true
}

// Dismiss is the cardholder backing out of the challenge.
func (h *ChallengeHub) Dismiss(attemptID string) bool {
	h.mu.Lock()
	c, ok := h.pending[attemptID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	c.Dismiss()
	return true
}

func (h *ChallengeHub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

type hubSurface struct {
	hub       *ChallengeHub
	attemptID string
}

func (s hubSurface) Open(_ context.Context, url string, onSignal pkg.SignalFunc) (pkg.Presentation, error) {
	c := &hostedChallenge{
		hub:       s.hub,
		attemptID: s.attemptID,
		url:       url,
		onSignal:  onSignal,
		dismissed: make(chan struct{}),
	}
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if _, exists := s.hub.pending[s.attemptID]; exists {
		return nil, fmt.Errorf("challenge for attempt %s already open", s.attemptID)
	}
	s.hub.pending[s.attemptID] = c
	if s.hub.ttl > 0 {
		c.expiry = time.AfterFunc(s.hub.ttl, c.Dismiss)
	}
	return c, nil
}

func (c *hostedChallenge) Dismiss() {
	c.once.Do(func() {
		c.hub.mu.Lock()
		if c.hub.pending[c.attemptID] == c {
			delete(c.hub.pending, c.attemptID)
		}
		if c.expiry != nil {
			c.expiry.Stop()
		}
		c.hub.mu.Unlock()
		close(c.dismissed)
	})
}

func (c *hostedChallenge) Dismissed() <-chan struct{} {
	return c.dismissed
}
