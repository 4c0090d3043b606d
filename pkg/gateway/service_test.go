package gateway

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"ykjam/cardpay/pkg"
)

func testRequest() pkg.PaymentRequest {
	return pkg.PaymentRequest{
		GivenID: "0f5b2b4e-6f7f-4c8e-9b43-4f1f2b8a1c11",
		Config: pkg.PaymentConfig{
			Amount:      decimal.RequireFromString("25.5"),
			Currency:    "SAR",
			Description: "order #7",
			CallbackURL: "https://shop.example/return",
			Metadata:    map[string]string{"order": "7"},
		},
		Source: pkg.NormalizedCardPayload{
			Name:   "John Doe",
			Number: "4111111111111111",
			Month:  "12",
			Year:   "30",
			CVC:    "123",
		},
		SaveCard: true,
	}
}

func TestSubmitInitiated(t *testing.T) {
	t.Parallel()

	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payments" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "pk_test" || pass != "" {
			t.Errorf("unexpected basic auth %q %q %v", user, pass, ok)
		}
		raw, _ := ioutil.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Errorf("invalid json body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "pay_123",
			"status": "initiated",
			"amount": 2550,
			"currency": "SAR",
			"description": "order #7",
			"source": {
				"type": "creditcard",
				"company": "visa",
				"name": "John Doe",
				"number": "4111-11XX-XXXX-1111",
				"message": null,
				"transaction_url": "https://acs.example/3ds?id=pay_123"
			}
		}`))
	}))
	defer srv.Close()

	res, err := NewService(srv.URL+"/", 5*time.Second).Submit(context.Background(), "pk_test", testRequest())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Status != pkg.PaymentStatusInitiated || res.ChallengeURL != "https://acs.example/3ds?id=pay_123" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.ID != "pay_123" || res.Amount != 2550 || res.Source.Company != "visa" {
		t.Errorf("unexpected result %+v", res)
	}

	if got["amount"].(float64) != 2550 || got["given_id"] != "0f5b2b4e-6f7f-4c8e-9b43-4f1f2b8a1c11" {
		t.Errorf("unexpected body %v", got)
	}
	if got["callback_url"] != "https://shop.example/return" {
		t.Errorf("unexpected callback url %v", got["callback_url"])
	}
	source := got["source"].(map[string]interface{})
	if source["type"] != "creditcard" || source["number"] != "4111111111111111" || source["3ds"] != true {
		t.Errorf("unexpected source %v", source)
	}
	if source["save_card"] != true || source["manual"] != false {
		t.Errorf("unexpected flags %v", source)
	}
}

func TestSubmitFailedCarriesSourceMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"pay_9","status":"failed","amount":2550,"currency":"SAR",
			"source":{"type":"creditcard","message":"INSUFFICIENT_FUNDS"}}`))
	}))
	defer srv.Close()

	res, err := NewService(srv.URL, time.Second).Submit(context.Background(), "pk", testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != pkg.PaymentStatusFailed || res.Message != "INSUFFICIENT_FUNDS" || res.Failure != pkg.FailureGateway {
		t.Errorf("unexpected result %+v", res)
	}
	if res.ChallengeURL != "" {
		t.Error("Expected no challenge url on a failed payment")
	}
}

func TestSubmitAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"invalid_request_error","message":"Validation Failed","errors":{"source.number":["is invalid"]}}`))
	}))
	defer srv.Close()

	_, err := NewService(srv.URL, time.Second).Submit(context.Background(), "pk", testRequest())
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected *APIError, got %T %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Type != "invalid_request_error" || apiErr.Message != "Validation Failed" {
		t.Errorf("unexpected error %+v", apiErr)
	}
	if apiErr.Errors == "" {
		t.Error("Expected field errors kept")
	}
}

func TestSubmitUnauthorizedPlainBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewService(srv.URL, time.Second).Submit(context.Background(), "bad", testRequest())
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "Unauthorized" {
		t.Fatalf("unexpected error %T %v", err, err)
	}
}

func TestSubmitNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	_, err := NewService(base, time.Second).Submit(context.Background(), "pk", testRequest())
	if _, ok := err.(*NetworkError); !ok {
		t.Fatalf("Expected *NetworkError, got %T %v", err, err)
	}
	if errors.Cause(err) == err {
		t.Error("Expected the transport error as cause")
	}
}

func TestSubmitDecodeError(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":   `<html>oops</html>`,
		"missing id": `{"status":"paid"}`,
	}
	for name, body := range tests {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := NewService(srv.URL, time.Second).Submit(context.Background(), "pk", testRequest())
			if _, ok := err.(*DecodeError); !ok {
				t.Fatalf("Expected *DecodeError, got %T %v", err, err)
			}
		})
	}
}

func TestSubmitRejectsFractionalMinorUnits(t *testing.T) {
	t.Parallel()

	req := testRequest()
	req.Config.Amount = decimal.RequireFromString("1.005")
	_, err := NewService("http://127.0.0.1:1", time.Second).Submit(context.Background(), "pk", req)
	if err == nil {
		t.Fatal("Expected amount conversion error")
	}
}

func TestFetchPayment(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/payments/pay_1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"pay_1","status":"paid","amount":100,"currency":"SAR","source":{"type":"creditcard"}}`))
	}))
	defer srv.Close()

	res, err := NewService(srv.URL, time.Second).FetchPayment(context.Background(), "sk", "pay_1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != pkg.PaymentStatusPaid || res.Amount != 100 {
		t.Errorf("unexpected result %+v", res)
	}
}
