// Package mpesa はM-Pesa Daraja APIによるSTKプッシュ決済のクライアントを提供する
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leonmuriithi/transit-core-poc/internal/application"
	"github.com/leonmuriithi/transit-core-poc/internal/config"
	"github.com/leonmuriithi/transit-core-poc/internal/pkg/logger"
)

var (
	ErrAuthFailed    = errors.New("M-Pesa認証に失敗しました")
	ErrStkPushFailed = errors.New("STKプッシュの送信に失敗しました")
)

// Client はDaraja APIのHTTPクライアント
// アクセストークンは有効期限までキャッシュする
type Client struct {
	cfg        *config.MpesaConfig
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient は新しいM-Pesaクライアントを作成する
func NewClient(cfg *config.MpesaConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int    `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
}

// InitiatePayment は乗客の電話にSTKプッシュを送信する
// コールバックURLには突合キーをクエリとして付与し、非同期通知を予約に対応付ける
func (c *Client) InitiatePayment(ctx context.Context, p application.PaymentRequest) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return err
	}

	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))

	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            p.Amount,
		PartyA:            p.PayerPhone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       p.PayerPhone,
		CallBackURL:       c.callbackURL(p.AccountReference),
		AccountReference:  p.AccountReference,
		TransactionDesc:   "Bus Ticket Payment",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエスト生成に失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("リクエスト生成に失敗: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStkPushFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrStkPushFailed, resp.StatusCode)
	}

	var pushResp stkPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return fmt.Errorf("レスポンス解析に失敗: %w", err)
	}
	if pushResp.ResponseCode != "0" {
		return fmt.Errorf("%w: %s", ErrStkPushFailed, pushResp.ResponseDescription)
	}

	logger.Info("STKプッシュ送信",
		zap.String("account_reference", p.AccountReference),
		zap.String("checkout_request_id", pushResp.CheckoutRequestID),
	)
	return nil
}

// getAccessToken はOAuthトークンを取得する（期限内はキャッシュを返す）
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("リクエスト生成に失敗: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if tokenResp.AccessToken == "" {
		return "", ErrAuthFailed
	}

	// Darajaのトークンは3599秒有効。余裕を持って1分前に失効扱いにする
	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(59 * time.Minute)
	return c.accessToken, nil
}

func (c *Client) callbackURL(accountReference string) string {
	return c.cfg.CallbackURL + "?account_ref=" + url.QueryEscape(accountReference)
}

var _ application.PaymentGateway = (*Client)(nil)
