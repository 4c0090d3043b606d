package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"ykjam/cardpay/pkg"
	"ykjam/cardpay/pkg/gateway/response"
)

type Service interface {
	Submit(ctx context.Context, apiKey string, req pkg.PaymentRequest) (pkg.PaymentResult, error)
	FetchPayment(ctx context.Context, apiKey, paymentID string) (pkg.PaymentResult, error)
}

type service struct {
	timeout    time.Duration
	baseApiUrl string
}

type paymentRequest struct {
	GivenID     string            `json:"given_id,omitempty"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	CallbackURL string            `json:"callback_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Source      creditCardSource  `json:"source"`
}

type creditCardSource struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Number   string `json:"number"`
	Month    string `json:"month"`
	Year     string `json:"year"`
	CVC      string `json:"cvc"`
	ThreeDS  bool   `json:"3ds"`
	Manual   bool   `json:"manual"`
	SaveCard bool   `json:"save_card"`
}

func (s *service) generateClient() *http.Client {
	return &http.Client{
		Timeout: s.timeout,
	}
}

func (s *service) getPaymentsUrl() string {
	return fmt.Sprintf("%s/v1/payments", s.baseApiUrl)
}

func (s *service) getPaymentUrl(paymentID string) string {
	return fmt.Sprintf("%s/v1/payments/%s", s.baseApiUrl, url.PathEscape(paymentID))
}

func (s *service) Submit(ctx context.Context, apiKey string, req pkg.PaymentRequest) (result pkg.PaymentResult, err error) {
	clog := log.WithFields(log.Fields{
		"given-id":  req.GivenID,
		"operation": "Create Payment",
	})
	clog.Info("Processing")

	var amount int64
	amount, err = req.Config.AmountMinorUnits()
	if err != nil {
		eMsg := "error converting amount"
		clog.WithError(err).Error(eMsg)
		err = errors.Wrap(err, eMsg)
		return
	}
	body := paymentRequest{
		GivenID:     req.GivenID,
		Amount:      amount,
		Currency:    req.Config.Currency,
		Description: req.Config.Description,
		CallbackURL: req.Config.CallbackURL,
		Metadata:    req.Config.Metadata,
		Source: creditCardSource{
			Type:     "creditcard",
			Name:     req.Source.Name,
			Number:   req.Source.Number,
			Month:    req.Source.Month,
			Year:     req.Source.Year,
			CVC:      req.Source.CVC,
			ThreeDS:  true,
			Manual:   req.IsManual,
			SaveCard: req.SaveCard,
		},
	}
	var raw []byte
	raw, err = json.Marshal(body)
	if err != nil {
		eMsg := "error encoding payment request"
		clog.WithError(err).Error(eMsg)
		err = errors.Wrap(err, eMsg)
		return
	}

	var payment response.Payment
	payment, err = s.do(ctx, clog, http.MethodPost, s.getPaymentsUrl(), apiKey, raw)
	if err != nil {
		return
	}
	result = toResult(payment)
	clog.WithFields(log.Fields{
		"payment-id": result.ID,
		"status":     result.Status,
	}).Info("payment created")
	return
}

func (s *service) FetchPayment(ctx context.Context, apiKey, paymentID string) (result pkg.PaymentResult, err error) {
	clog := log.WithFields(log.Fields{
		"payment-id": paymentID,
		"operation":  "Fetch Payment",
	})
	clog.Info("Processing")

	var payment response.Payment
	payment, err = s.do(ctx, clog, http.MethodGet, s.getPaymentUrl(paymentID), apiKey, nil)
	if err != nil {
		return
	}
	result = toResult(payment)
	return
}

func (s *service) do(ctx context.Context, clog *log.Entry, method, target, apiKey string, payload []byte) (payment response.Payment, err error) {
	client := s.generateClient()
	var res *http.Response
	var r *http.Request
	var data []byte

	r, err = http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		eMsg := "error creating http request"
		clog.WithError(err).Error(eMsg)
		err = errors.Wrap(err, eMsg)
		return
	}
	r.SetBasicAuth(apiKey, "")
	r.Header.Set("Accept", "application/json")
	if payload != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	res, err = client.Do(r)
	if err != nil {
		clog.WithError(err).Error("error making http request")
		err = &NetworkError{Err: err}
		return
	}
	defer res.Body.Close()
	data, err = ioutil.ReadAll(res.Body)
	if err != nil {
		clog.WithError(err).Error("error reading http response")
		err = &NetworkError{Err: err}
		return
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: res.StatusCode,
			Headers:    res.Header,
		}
		var body response.Error
		if jerr := json.Unmarshal(data, &body); jerr == nil {
			apiErr.Type = body.Type
			apiErr.Message = body.Message
			if len(body.Errors) > 0 && string(body.Errors) != "null" {
				apiErr.Errors = string(body.Errors)
			}
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		clog.WithFields(log.Fields{
			"http-status": res.StatusCode,
			"error-type":  apiErr.Type,
		}).Error(apiErr.Message)
		err = apiErr
		return
	}

	err = json.Unmarshal(data, &payment)
	if err != nil {
		clog.WithError(err).Error("error parsing json response")
		err = &DecodeError{StatusCode: res.StatusCode, Body: data, Err: err}
		return
	}
	if !payment.IsValid() {
		eMsg := "payment without id or status"
		clog.Error(eMsg)
		err = &DecodeError{StatusCode: res.StatusCode, Body: data, Err: errors.New(eMsg)}
		return
	}
	return
}

func toResult(p response.Payment) pkg.PaymentResult {
	result := pkg.PaymentResult{
		ID:          p.ID,
		Status:      pkg.PaymentStatus(p.Status),
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: p.Description,
		Metadata:    p.Metadata,
		Source: pkg.PaymentSource{
			Type:    p.Source.Type,
			Company: p.Source.Company,
			Name:    p.Source.Name,
			Number:  p.Source.Number,
			Message: p.Source.Message,
			Token:   p.Source.Token,
		},
	}
	if result.Status == pkg.PaymentStatusInitiated {
		result.ChallengeURL = p.Source.TransactionURL
	}
	if result.Status == pkg.PaymentStatusFailed {
		result.Message = p.Source.Message
		result.Failure = pkg.FailureGateway
	}
	return result
}

func NewService(baseApiUrl string, timeout time.Duration) Service {
	return &service{
		timeout:    timeout,
		baseApiUrl: strings.TrimRight(baseApiUrl, "/"),
	}
}
