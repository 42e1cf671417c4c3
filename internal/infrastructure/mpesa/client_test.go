package mpesa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonmuriithi/transit-core-poc/internal/application"
	"github.com/leonmuriithi/transit-core-poc/internal/config"
)

type darajaStub struct {
	tokenCalls  int32
	stkCalls    int32
	tokenStatus int
	stkBody     map[string]interface{}
	lastStkReq  map[string]interface{}
}

func newDarajaStub() *darajaStub {
	return &darajaStub{
		tokenStatus: http.StatusOK,
		stkBody: map[string]interface{}{
			"ResponseCode":        "0",
			"ResponseDescription": "Success. Request accepted for processing",
			"CheckoutRequestID":   "ws_CO_123456789",
		},
	}
}

func (d *darajaStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&d.tokenCalls, 1)
		assert.Contains(t, r.Header.Get("Authorization"), "Basic ")
		if d.tokenStatus != http.StatusOK {
			w.WriteHeader(d.tokenStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "test-token",
			"expires_in":   "3599",
		})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&d.stkCalls, 1)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&d.lastStkReq))
		json.NewEncoder(w).Encode(d.stkBody)
	})
	return mux
}

func newTestClient(serverURL string) *Client {
	return NewClient(&config.MpesaConfig{
		BaseURL:        serverURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/api/v1/payments/mpesa/callback",
		Timeout:        5 * time.Second,
	})
}

func TestClient_InitiatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("STKプッシュを送信できる", func(t *testing.T) {
		stub := newDarajaStub()
		server := httptest.NewServer(stub.handler(t))
		defer server.Close()

		client := newTestClient(server.URL)

		err := client.InitiatePayment(ctx, application.PaymentRequest{
			Amount:           1200,
			PayerPhone:       "254712345678",
			AccountReference: "ref-123",
		})

		require.NoError(t, err)
		assert.Equal(t, "174379", stub.lastStkReq["BusinessShortCode"])
		assert.Equal(t, "CustomerPayBillOnline", stub.lastStkReq["TransactionType"])
		assert.Equal(t, float64(1200), stub.lastStkReq["Amount"])
		assert.Equal(t, "254712345678", stub.lastStkReq["PhoneNumber"])
		assert.Equal(t, "ref-123", stub.lastStkReq["AccountReference"])
		// コールバックURLには突合キーが付与される
		assert.Equal(t, "https://example.com/api/v1/payments/mpesa/callback?account_ref=ref-123",
			stub.lastStkReq["CallBackURL"])
		assert.NotEmpty(t, stub.lastStkReq["Password"])
	})

	t.Run("アクセストークンは期限内はキャッシュされる", func(t *testing.T) {
		stub := newDarajaStub()
		server := httptest.NewServer(stub.handler(t))
		defer server.Close()

		client := newTestClient(server.URL)
		req := application.PaymentRequest{Amount: 100, PayerPhone: "254712345678", AccountReference: "ref-1"}

		require.NoError(t, client.InitiatePayment(ctx, req))
		require.NoError(t, client.InitiatePayment(ctx, req))

		assert.Equal(t, int32(1), atomic.LoadInt32(&stub.tokenCalls))
		assert.Equal(t, int32(2), atomic.LoadInt32(&stub.stkCalls))
	})

	t.Run("認証失敗時はエラー", func(t *testing.T) {
		stub := newDarajaStub()
		stub.tokenStatus = http.StatusUnauthorized
		server := httptest.NewServer(stub.handler(t))
		defer server.Close()

		client := newTestClient(server.URL)

		err := client.InitiatePayment(ctx, application.PaymentRequest{
			Amount: 100, PayerPhone: "254712345678", AccountReference: "ref-1",
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuthFailed)
		assert.Equal(t, int32(0), atomic.LoadInt32(&stub.stkCalls))
	})

	t.Run("ResponseCodeが0以外の場合はエラー", func(t *testing.T) {
		stub := newDarajaStub()
		stub.stkBody = map[string]interface{}{
			"ResponseCode":        "1",
			"ResponseDescription": "Insufficient balance",
		}
		server := httptest.NewServer(stub.handler(t))
		defer server.Close()

		client := newTestClient(server.URL)

		err := client.InitiatePayment(ctx, application.PaymentRequest{
			Amount: 100, PayerPhone: "254712345678", AccountReference: "ref-1",
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStkPushFailed)
		assert.Contains(t, err.Error(), "Insufficient balance")
	})
}
