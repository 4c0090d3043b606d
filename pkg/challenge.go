package pkg

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// SignalFunc receives the status tag and message reported by a challenge
// surface. Tags other than paid and authorized mean the challenge failed.
type SignalFunc func(status, message string)

// ChallengeSurface shows a 3ds challenge url somewhere the cardholder can
// complete it. Implementations call onSignal at most once.
type ChallengeSurface interface {
	Open(ctx context.Context, url string, onSignal SignalFunc) (Presentation, error)
}

// Presentation is an open challenge surface.
type Presentation interface {
	// Dismiss closes the surface; safe to call more than once.
	Dismiss()
	// Dismissed is closed once the surface is gone, whoever closed it.
	Dismissed() <-chan struct{}
}

// ChallengeOutcome is what a challenge session resolved to.
type ChallengeOutcome struct {
	Status  PaymentStatus
	Message string
	Reason  FailureReason
}

// ChallengeSession drives one challenge surface to exactly one outcome.
// It is single use.
type ChallengeSession struct {
	surface   ChallengeSurface
	url       string
	onResolve func(ChallengeOutcome)
	clog      *log.Entry

	mu           sync.Mutex
	once         sync.Once
	done         chan struct{}
	presentation Presentation
	resolved     bool
}

func NewChallengeSession(surface ChallengeSurface, url string, clog *log.Entry, onResolve func(ChallengeOutcome)) *ChallengeSession {
	if clog == nil {
		clog = log.NewEntry(log.StandardLogger())
	}
	return &ChallengeSession{
		surface:   surface,
		url:       url,
		onResolve: onResolve,
		clog:      clog.WithField("part", "3ds challenge"),
		done:      make(chan struct{}),
	}
}

// Start opens the surface and returns without waiting for the outcome.
// Cancelling ctx counts as the cardholder dismissing the surface.
func (s *ChallengeSession) Start(ctx context.Context) {
	s.clog.Info("Opening challenge surface")
	p, err := s.surface.Open(ctx, s.url, s.signal)
	if err != nil {
		s.clog.WithError(err).Error("error opening challenge surface")
		s.resolve(ChallengeOutcome{Status: PaymentStatusFailed, Message: err.Error(), Reason: FailureChallenge})
		return
	}

	s.mu.Lock()
	s.presentation = p
	resolved := s.resolved
	s.mu.Unlock()
	if resolved {
		// signal arrived while Open was still running
		p.Dismiss()
		return
	}

	go s.watch(ctx, p)
}

// Done is closed once the session has resolved.
func (s *ChallengeSession) Done() <-chan struct{} {
	return s.done
}

func (s *ChallengeSession) watch(ctx context.Context, p Presentation) {
	select {
	case <-s.done:
	case <-p.Dismissed():
		if s.isDone() {
			return
		}
		s.clog.Warn("challenge surface dismissed without a signal")
		s.resolve(ChallengeOutcome{Status: PaymentStatusFailed, Reason: FailureDismissed})
	case <-ctx.Done():
		if s.isDone() {
			return
		}
		s.clog.WithError(ctx.Err()).Warn("challenge abandoned")
		s.resolve(ChallengeOutcome{Status: PaymentStatusFailed, Reason: FailureDismissed})
	}
}

func (s *ChallengeSession) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *ChallengeSession) signal(status, message string) {
	outcome := ChallengeOutcome{Status: SignalStatus(status)}
	if outcome.Status == PaymentStatusFailed {
		outcome.Message = message
		outcome.Reason = FailureChallenge
	}
	s.clog.WithFields(log.Fields{
		"signal":  status,
		"message": message,
	}).Info("challenge signal received")
	s.resolve(outcome)
}

func (s *ChallengeSession) resolve(outcome ChallengeOutcome) {
	s.once.Do(func() {
		s.mu.Lock()
		s.resolved = true
		p := s.presentation
		s.mu.Unlock()
		// done before Dismiss; watch reads a bare dismissal as the cardholder's
		close(s.done)
		if p != nil {
			p.Dismiss()
		}
		s.onResolve(outcome)
	})
}
