package pkg

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Submitter sends one payment request to the gateway. Transport and
// gateway errors come back as err; the controller turns them into a
// failed result.
type Submitter interface {
	Submit(ctx context.Context, apiKey string, req PaymentRequest) (PaymentResult, error)
}

type PaymentConfig struct {
	// amount in major units, e.g. 10.50 SAR
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	// where the gateway sends the browser once the 3ds challenge is over
	CallbackURL string            `json:"callback_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	// idempotency id forwarded to the gateway, generated per submission when empty
	GivenID  string `json:"given_id,omitempty"`
	SaveCard bool   `json:"save_card"`
	Manual   bool   `json:"manual"`
}

// minor unit exponents that differ from the usual two decimals
var currencyExponents = map[string]int32{
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
	"CLP": 0, "ISK": 0, "JPY": 0, "KRW": 0, "UGX": 0, "VND": 0, "XAF": 0, "XOF": 0,
}

func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// AmountMinorUnits converts the configured amount to the smallest unit of
// its currency, failing when that would need rounding.
func (c PaymentConfig) AmountMinorUnits() (int64, error) {
	minor := c.Amount.Shift(CurrencyExponent(c.Currency))
	if !minor.IsInteger() {
		return 0, errors.Errorf("amount %s has more precision than %s allows", c.Amount, c.Currency)
	}
	return minor.IntPart(), nil
}

func (c PaymentConfig) Validate() error {
	if c.Amount.Sign() <= 0 {
		return errors.New("amount must be positive")
	}
	if len(c.Currency) != 3 || strings.ToUpper(c.Currency) != c.Currency {
		return errors.Errorf("invalid currency %q", c.Currency)
	}
	if _, err := c.AmountMinorUnits(); err != nil {
		return err
	}
	u, err := url.Parse(c.CallbackURL)
	if err != nil {
		return errors.Wrap(err, "invalid callback url")
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return errors.Errorf("callback url must be absolute http(s), got %q", c.CallbackURL)
	}
	return nil
}

// PaymentRequest belongs to exactly one submission.
type PaymentRequest struct {
	GivenID  string                `json:"given_id"`
	Config   PaymentConfig         `json:"config"`
	Source   NormalizedCardPayload `json:"source"`
	SaveCard bool                  `json:"save_card"`
	IsManual bool                  `json:"is_manual"`
}

type PaymentSource struct {
	Type    string `json:"type,omitempty"`
	Company string `json:"company,omitempty"`
	Name    string `json:"name,omitempty"`
	// masked by the gateway
	Number  string `json:"number,omitempty"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
}

// PaymentResult is a value; steps after submission produce new results
// rather than editing one already handed out.
type PaymentResult struct {
	ID           string            `json:"id,omitempty"`
	Status       PaymentStatus     `json:"status"`
	Amount       int64             `json:"amount,omitempty"`
	Currency     string            `json:"currency,omitempty"`
	Description  string            `json:"description,omitempty"`
	Message      string            `json:"message,omitempty"`
	ChallengeURL string            `json:"challenge_url,omitempty"`
	Source       PaymentSource     `json:"source"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Failure      FailureReason     `json:"failure,omitempty"`
}

func (r PaymentResult) String() string {
	return fmt.Sprintf("PaymentResult {id: %v, status: %v, amount: %d %v, failure: %v, message: %v}",
		r.ID, r.Status, r.Amount, r.Currency, r.Failure, r.Message)
}

// Resolve returns a copy of an initiated result carrying the outcome of the
// 3ds step. The challenge url is dropped since it can no longer be used.
func (r PaymentResult) Resolve(status PaymentStatus, message string, reason FailureReason) PaymentResult {
	resolved := r
	resolved.Status = status
	resolved.ChallengeURL = ""
	resolved.Metadata = copyMetadata(r.Metadata)
	if status == PaymentStatusFailed {
		resolved.Message = message
		resolved.Failure = reason
	} else {
		resolved.Message = ""
		resolved.Failure = FailureNone
	}
	return resolved
}

// FailedResult describes a submission that never produced a gateway result.
func FailedResult(req PaymentRequest, reason FailureReason, message string) PaymentResult {
	amount, _ := req.Config.AmountMinorUnits()
	return PaymentResult{
		Status:      PaymentStatusFailed,
		Amount:      amount,
		Currency:    req.Config.Currency,
		Description: req.Config.Description,
		Message:     message,
		Metadata:    copyMetadata(req.Config.Metadata),
		Failure:     reason,
	}
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
