package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"ykjam/cardpay/pkg"
	"ykjam/cardpay/pkg/journal"
)

type HandlerContext interface {
	HandleUtilityEpoch(w http.ResponseWriter, r *http.Request)
	HandleUtilityIP(w http.ResponseWriter, r *http.Request)
	HandleSubmitPayment(w http.ResponseWriter, r *http.Request)
	HandleGetPayment(w http.ResponseWriter, r *http.Request)
	HandleChallengeRedirect(w http.ResponseWriter, r *http.Request)
	HandleChallengeReturn(w http.ResponseWriter, r *http.Request)
	HandleChallengeDismiss(w http.ResponseWriter, r *http.Request)
}

// Fetcher reads a payment back from the gateway.
type Fetcher interface {
	FetchPayment(ctx context.Context, apiKey, paymentID string) (pkg.PaymentResult, error)
}

// submitterFunc adapts a function to pkg.Submitter.
type submitterFunc func(ctx context.Context, apiKey string, req pkg.PaymentRequest) (pkg.PaymentResult, error)

func (f submitterFunc) Submit(ctx context.Context, apiKey string, req pkg.PaymentRequest) (pkg.PaymentResult, error) {
	return f(ctx, apiKey, req)
}

// Options configures the payment handlers.
type Options struct {
	// lives as long as the server; 3ds challenges outlast their request
	BaseContext     context.Context
	APIKey          string
	DefaultCurrency string
	Submitter       pkg.Submitter
	// source of truth for challenge outcomes
	Fetcher         Fetcher
	Hub             *ChallengeHub
	Tokens          *ReturnTokens
	Journal         journal.Journal
}

type handlerContext struct {
	opts         Options
	rApplication *regexp.Regexp
	rIdentity    *regexp.Regexp
	rCurrency    *regexp.Regexp
}

type httpWithLog func(w http.ResponseWriter, r *http.Request, ctx context.Context, clog *log.Entry)

// SubmitPaymentResponse is returned by the submit endpoint.
type SubmitPaymentResponse struct {
	AttemptID    string                  `json:"attempt_id"`
	Status       pkg.PaymentStatus       `json:"status"`
	ChallengeURL string                  `json:"challenge_url,omitempty"`
	Result       *pkg.PaymentResult      `json:"result,omitempty"`
	Fields       map[string]FieldSummary `json:"fields,omitempty"`
}

type FieldSummary struct {
	ErrorKind pkg.ErrorKind `json:"error_kind,omitempty"`
	IsFilled  bool          `json:"is_filled"`
}

func GetRemoteAddress(r *http.Request) string {
	if val := r.Header.Get("X-Forwarded-For"); val != "" {
		return val
	} else if val := r.Header.Get("X-Real-IP"); val != "" {
		return val
	} else {
		return r.RemoteAddr
	}
}

func errorHandler(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
	if status == http.StatusNotFound {
		_, _ = fmt.Fprint(w, "Page not found")

	} else {
		_, _ = fmt.Fprintf(w, "HTTP %d error", status)
	}
}

func errorHandlerWithError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, "HTTP %d error\nError %v", status, err)
}

func responseWithCodeAndMessage(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_, _ = fmt.Fprintln(w, message)
}

func jsonResponse(clog *log.Entry, w http.ResponseWriter, status int, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		clog.WithError(err).Error("error in json.Encode")
	}
}

func (c *handlerContext) handleHttpWithLog(handleName, method string, w http.ResponseWriter, r *http.Request, f httpWithLog) {
	ctx := r.Context()
	clog := log.WithFields(log.Fields{
		"remote-addr": GetRemoteAddress(r),
		"uri":         r.URL.Path,
		"method":      r.Method,
		"handle":      handleName,
	}).WithContext(ctx)
	if r.Method == method {
		f(w, r, ctx, clog)
	} else {
		clog.Error("invalid request, method not allowed")
		errorHandler(w, http.StatusMethodNotAllowed)
	}
}

func (c *handlerContext) isApplicationAndIdentityValid(application, identity string) bool {
	if !c.rApplication.MatchString(application) {
		return false
	} else if !c.rIdentity.MatchString(identity) {
		return false
	}
	return true
}

func (c *handlerContext) HandleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	h := "handleSubmitPayment"
	c.handleHttpWithLog(h, http.MethodPost, w, r, func(w http.ResponseWriter, r *http.Request, ctx context.Context, clog *log.Entry) {
		// request parameters
		application := r.FormValue("app")
		identity := r.FormValue("id")
		currency := strings.ToUpper(r.FormValue("currency"))
		if currency == "" {
			currency = c.opts.DefaultCurrency
		}
		locale := pkg.Locale(r.FormValue("locale"))
		if locale == "" {
			locale = pkg.LocaleEnglish
		}
		// validate inputs
		if !c.isApplicationAndIdentityValid(application, identity) {
			clog.Warn("not valid application or identity, ignoring request")
			errorHandler(w, http.StatusBadRequest)
			return
		}
		amount, err := decimal.NewFromString(r.FormValue("amount"))
		if err != nil || !c.rCurrency.MatchString(currency) {
			clog.WithField("currency", currency).Warn("not valid amount or currency, ignoring request")
			errorHandler(w, http.StatusBadRequest)
			return
		}

		attemptID := uuid.New().String()
		clog = clog.WithFields(log.Fields{
			"application": application,
			"identity":    identity,
			"attempt-id":  attemptID,
		})
		clog.Debug("request received")

		token, err := c.opts.Tokens.Issue(attemptID)
		if err != nil {
			clog.WithError(err).Error("error issuing return token")
			errorHandlerWithError(w, http.StatusInternalServerError, err)
			return
		}
		config := pkg.PaymentConfig{
			Amount:      amount,
			Currency:    currency,
			Description: r.FormValue("description"),
			CallbackURL: c.opts.Hub.ReturnURL(token),
			Metadata: map[string]string{
				"application": application,
				"identity":    identity,
				"attempt_id":  attemptID,
			},
			GivenID:  attemptID,
			SaveCard: r.FormValue("save-card") == "true",
			Manual:   r.FormValue("manual") == "true",
		}

		hosted := c.opts.Hub.HostedURL(attemptID)
		// initiated is journaled before the challenge opens; the return
		// endpoint reads the gateway payment id from it
		submitter := submitterFunc(func(sctx context.Context, apiKey string, req pkg.PaymentRequest) (pkg.PaymentResult, error) {
			res, err := c.opts.Submitter.Submit(sctx, apiKey, req)
			if err == nil && res.Status == pkg.PaymentStatusInitiated && res.ChallengeURL != "" {
				pending := res
				pending.ChallengeURL = hosted
				if rerr := c.opts.Journal.Record(c.opts.BaseContext, attemptID, pending); rerr != nil {
					clog.WithError(rerr).Error("error recording pending attempt")
				}
			}
			return res, err
		})
		delivered := make(chan pkg.PaymentResult, 1)
		onResult := func(res pkg.PaymentResult) {
			if err := c.opts.Journal.Record(c.opts.BaseContext, attemptID, res); err != nil {
				clog.WithError(err).Error("error recording result")
			}
			delivered <- res
		}

		controller, err := pkg.NewController(c.opts.APIKey, config, locale,
			submitter, c.opts.Hub.Surface(attemptID), onResult)
		if err != nil {
			clog.WithError(err).Warn("invalid payment configuration")
			errorHandlerWithError(w, http.StatusBadRequest, err)
			return
		}
		controller.SetField(pkg.FieldName, r.FormValue("name-on-card"))
		controller.SetField(pkg.FieldCardNumber, r.FormValue("card-number"))
		controller.SetField(pkg.FieldExpiry, r.FormValue("card-expiry"))
		controller.SetField(pkg.FieldCVC, r.FormValue("card-cvc"))

		err = controller.Submit(c.opts.BaseContext)
		if err != nil {
			clog.WithError(err).Warn("card details rejected")
			jsonResponse(clog, w, http.StatusBadRequest, SubmitPaymentResponse{
				AttemptID: attemptID,
				Status:    pkg.PaymentStatusFailed,
				Fields:    summarizeFields(controller),
			})
			return
		}

		select {
		case res := <-delivered:
			jsonResponse(clog, w, http.StatusOK, SubmitPaymentResponse{
				AttemptID: attemptID,
				Status:    res.Status,
				Result:    &res,
			})
		default:
			clog.Info("awaiting 3ds challenge")
			jsonResponse(clog, w, http.StatusAccepted, SubmitPaymentResponse{
				AttemptID:    attemptID,
				Status:       pkg.PaymentStatusInitiated,
				ChallengeURL: hosted,
			})
		}
	})
}

func summarizeFields(controller *pkg.Controller) map[string]FieldSummary {
	fields := make(map[string]FieldSummary, 4)
	for _, f := range []pkg.Field{pkg.FieldName, pkg.FieldCardNumber, pkg.FieldExpiry, pkg.FieldCVC} {
		s := controller.Field(f)
		fields[f.String()] = FieldSummary{ErrorKind: s.ErrorKind, IsFilled: s.IsFilled}
	}
	return fields
}

func (c *handlerContext) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	h := "handleGetPayment"
	c.handleHttpWithLog(h, http.MethodGet, w, r, func(w http.ResponseWriter, r *http.Request, ctx context.Context, clog *log.Entry) {
		attemptID := mux.Vars(r)["id"]
		entry, err := c.opts.Journal.Lookup(ctx, attemptID)
		if err == journal.ErrNotFound {
			errorHandler(w, http.StatusNotFound)
			return
		}
		if err != nil {
			clog.WithError(err).Error("journal lookup failed")
			errorHandlerWithError(w, http.StatusInternalServerError, err)
			return
		}
		jsonResponse(clog, w, http.StatusOK, entry)
	})
}

func (c *handlerContext) HandleChallengeRedirect(w http.ResponseWriter, r *http.Request) {
	h := "handleChallengeRedirect"
	c.handleHttpWithLog(h, http.MethodGet, w, r, func(w http.ResponseWriter, r *http.Request, ctx context.Context, clog *log.Entry) {
		attemptID := mux.Vars(r)["id"]
		target, ok := c.opts.Hub.ChallengeURL(attemptID)
		if !ok {
			clog.WithField("attempt-id", attemptID).Warn("no pending challenge")
			errorHandler(w, http.StatusNotFound)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	})
}

// HandleChallengeReturn settles a challenge once the gateway has redirected
// the cardholder back. The status in the query is only a hint; the outcome
// is read from the gateway.
func (c *handlerContext) HandleChallengeReturn(w http.ResponseWriter, r *http.Request) {
	h := "handleChallengeReturn"
	c.handleHttpWithLog(h, http.MethodGet, w, r, func(w http.ResponseWriter, r *http.Request, ctx context.Context, clog *log.Entry) {
		attemptID, err := c.opts.Tokens.Verify(r.FormValue("token"))
		if err != nil {
			clog.WithError(err).Warn("rejected return token")
			errorHandler(w, http.StatusForbidden)
			return
		}
		clog = clog.WithFields(log.Fields{
			"attempt-id":     attemptID,
			"claimed-status": r.FormValue("status"),
		})

		entry, err := c.opts.Journal.Lookup(ctx, attemptID)
		if err == journal.ErrNotFound {
			clog.Warn("return for an unknown attempt")
			errorHandler(w, http.StatusGone)
			return
		}
		if err != nil {
			clog.WithError(err).Error("journal lookup failed")
			errorHandlerWithError(w, http.StatusInternalServerError, err)
			return
		}
		if entry.Result.Status != pkg.PaymentStatusInitiated || entry.Result.ID == "" {
			clog.WithField("status", entry.Result.Status).Warn("return for an attempt that is no longer pending")
			errorHandler(w, http.StatusGone)
			return
		}
		paymentID := entry.Result.ID
		clog = clog.WithField("payment-id", paymentID)
		if id := r.FormValue("id"); id != "" && id != paymentID {
			clog.WithField("returned-id", id).Warn("return names another payment")
			errorHandler(w, http.StatusBadRequest)
			return
		}

		payment, err := c.opts.Fetcher.FetchPayment(ctx, c.opts.APIKey, paymentID)
		if err != nil {
			clog.WithError(err).Error("error fetching payment from gateway")
			errorHandlerWithError(w, http.StatusBadGateway, err)
			return
		}
		if !payment.Status.IsTerminal() {
			clog.Warn("gateway has not settled the payment yet")
			responseWithCodeAndMessage(w, http.StatusConflict, "Payment is still being processed, please retry.")
			return
		}
		message := payment.Source.Message
		if message == "" {
			message = payment.Message
		}
		clog = clog.WithField("status", payment.Status)
		if !c.opts.Hub.Signal(attemptID, string(payment.Status), message) {
			clog.Warn("return for an attempt that is no longer pending")
			errorHandler(w, http.StatusGone)
			return
		}
		clog.Info("challenge returned")
		responseWithCodeAndMessage(w, http.StatusOK,
			fmt.Sprintf("Payment %s. You can close this window.", pkg.SignalStatus(string(payment.Status))))
	})
}

func (c *handlerContext) HandleChallengeDismiss(w http.ResponseWriter, r *http.Request) {
	h := "handleChallengeDismiss"
	c.handleHttpWithLog(h, http.MethodPost, w, r, func(w http.ResponseWriter, r *http.Request, ctx context.Context, clog *log.Entry) {
		attemptID := mux.Vars(r)["id"]
		if !c.opts.Hub.Dismiss(attemptID) {
			errorHandler(w, http.StatusNotFound)
			return
		}
		clog.WithField("attempt-id", attemptID).Info("challenge dismissed by cardholder")
		w.WriteHeader(http.StatusNoContent)
	})
}

func (c *handlerContext) HandleUtilityEpoch(w http.ResponseWriter, _ *http.Request) {
	epoch := time.Now().Unix()
	responseWithCodeAndMessage(w, http.StatusOK, fmt.Sprintf("%d", epoch))
}

func (c *handlerContext) HandleUtilityIP(w http.ResponseWriter, r *http.Request) {
	remoteIp := GetRemoteAddress(r)
	responseWithCodeAndMessage(w, http.StatusOK, remoteIp)
}

func NewHandlerContext(opts Options) HandlerContext {
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	return &handlerContext{
		opts:         opts,
		rApplication: regexp.MustCompile(`^(?i)[a-z0-9-]{3,16}$`),
		rIdentity:    regexp.MustCompile(`^(?i)[a-z0-9-]{3,64}$`),
		rCurrency:    regexp.MustCompile(`^[A-Z]{3}$`),
	}
}

// NewRouter wires the handlers to their routes.
func NewRouter(hc HandlerContext) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/epoch", hc.HandleUtilityEpoch)
	r.HandleFunc("/api/ip", hc.HandleUtilityIP)
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/payments", hc.HandleSubmitPayment)
	api.HandleFunc("/payments/{id}", hc.HandleGetPayment)
	api.HandleFunc("/challenge/return", hc.HandleChallengeReturn)
	api.HandleFunc("/challenge/{id}", hc.HandleChallengeRedirect)
	api.HandleFunc("/challenge/{id}/dismiss", hc.HandleChallengeDismiss)
	return r
}
