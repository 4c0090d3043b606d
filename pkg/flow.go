package pkg

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateAwaitingChallenge
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingChallenge:
		return "awaiting-challenge"
	case StateTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) inFlight() bool {
	return s == StateValidating || s == StateSubmitting || s == StateAwaitingChallenge
}

var (
	ErrSubmitDisabled = errors.New("submit is not enabled")
	ErrInvalidFields  = errors.New("card fields failed validation")
)

// ResultFunc receives the final result of a submission.
type ResultFunc func(PaymentResult)

// Controller runs the card payment flow for one form: validate, normalize,
// submit and, when the gateway asks for it, the 3ds challenge. Every
// submission delivers exactly one result to onResult unless the controller
// was detached first.
type Controller struct {
	apiKey    string
	config    PaymentConfig
	submitter Submitter
	surface   ChallengeSurface
	onResult  ResultFunc

	mu         sync.Mutex
	form       *Form
	state      State
	submitting bool
	attached   bool
	attempt    *attempt
}

type attempt struct {
	givenID string
	cancel  context.CancelFunc
	once    sync.Once
}

func NewController(apiKey string, config PaymentConfig, locale Locale, submitter Submitter, surface ChallengeSurface, onResult ResultFunc) (*Controller, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	if submitter == nil || surface == nil || onResult == nil {
		return nil, errors.New("submitter, challenge surface and result callback are required")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid payment config")
	}
	return &Controller{
		apiKey:    apiKey,
		config:    config,
		submitter: submitter,
		surface:   surface,
		onResult:  onResult,
		form:      NewForm(locale),
		attached:  true,
	}, nil
}

// SetField pushes a raw field value from the front-end and returns the
// resulting field state.
func (c *Controller) SetField(field Field, raw string) FormFieldState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form.Set(field, raw)
}

func (c *Controller) Field(field Field) FormFieldState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form.Get(field)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) IsSubmitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// SubmitEnabled is the button condition: the form condition plus no
// challenge outstanding and a still attached front-end.
func (c *Controller) SubmitEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitEnabledLocked()
}

func (c *Controller) submitEnabledLocked() bool {
	return c.attached && !c.state.inFlight() && SubmitEnabled(c.form.States(), c.submitting)
}

// Submit starts a submission. It returns ErrSubmitDisabled or
// ErrInvalidFields when nothing was submitted; any later failure is
// delivered as a failed result instead. Submit blocks for the gateway call
// only; a 3ds challenge resolves in the background and ctx bounds it too.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if !c.submitEnabledLocked() {
		c.mu.Unlock()
		return ErrSubmitDisabled
	}
	c.state = StateValidating
	// field state may be stale if the clock moved past the expiry month
	if !c.form.Revalidate() {
		c.state = StateIdle
		c.mu.Unlock()
		return ErrInvalidFields
	}
	req := c.buildRequest()
	actx, cancel := context.WithCancel(ctx)
	a := &attempt{givenID: req.GivenID, cancel: cancel}
	c.attempt = a
	c.state = StateSubmitting
	c.submitting = true
	c.mu.Unlock()

	clog := log.WithFields(log.Fields{
		"given-id":  req.GivenID,
		"operation": "Submit Payment",
		"card":      MaskCardNumber(req.Source.Number),
		"brand":     DetectCardBrand(req.Source.Number),
		"currency":  req.Config.Currency,
	})
	clog.Info("Processing")

	result, err := c.submitter.Submit(actx, c.apiKey, req)

	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()

	if err != nil {
		clog.WithError(err).Error("error submitting payment")
		c.finish(a, clog, FailedResult(req, FailureSubmission, err.Error()))
		return nil
	}
	clog = clog.WithFields(log.Fields{"payment-id": result.ID, "status": result.Status})
	if result.Status.IsTerminal() {
		if result.Status == PaymentStatusFailed && result.Failure == FailureNone {
			result.Failure = FailureGateway
		}
		c.finish(a, clog, result)
		return nil
	}
	if result.ChallengeURL == "" {
		clog.Error("initiated payment without a challenge url")
		c.finish(a, clog, result.Resolve(PaymentStatusFailed, "missing 3ds challenge url", FailureGateway))
		return nil
	}
	if actx.Err() != nil {
		c.finish(a, clog, result.Resolve(PaymentStatusFailed, "", FailureDismissed))
		return nil
	}

	c.mu.Lock()
	if c.attempt == a {
		c.state = StateAwaitingChallenge
	}
	c.mu.Unlock()

	pending := result
	session := NewChallengeSession(c.surface, pending.ChallengeURL, clog, func(o ChallengeOutcome) {
		c.finish(a, clog, pending.Resolve(o.Status, o.Message, o.Reason))
	})
	session.Start(actx)
	return nil
}

// Detach marks the front-end as gone. Results that arrive afterwards are
// dropped and an outstanding challenge is dismissed.
func (c *Controller) Detach() {
	c.mu.Lock()
	c.attached = false
	a := c.attempt
	c.mu.Unlock()
	if a != nil {
		a.cancel()
	}
}

func (c *Controller) buildRequest() PaymentRequest {
	cfg := c.config
	cfg.Metadata = copyMetadata(c.config.Metadata)
	givenID := cfg.GivenID
	if givenID == "" {
		givenID = uuid.New().String()
	}
	return PaymentRequest{
		GivenID:  givenID,
		Config:   cfg,
		Source:   NormalizeForm(c.form),
		SaveCard: cfg.SaveCard,
		IsManual: cfg.Manual,
	}
}

func (c *Controller) finish(a *attempt, clog *log.Entry, result PaymentResult) {
	a.once.Do(func() {
		c.mu.Lock()
		if c.attempt == a {
			c.state = StateTerminal
			c.attempt = nil
		}
		attached := c.attached
		c.mu.Unlock()
		a.cancel()

		if !attached {
			clog.WithField("status", result.Status).Warn("front-end detached, dropping result")
			return
		}
		clog.WithFields(log.Fields{
			"status":  result.Status,
			"failure": result.Failure,
		}).Info("payment finished")
		c.onResult(result)
	})
}
