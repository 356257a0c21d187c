package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	pubnub "github.com/pubnub/go/v7"
	"github.com/shopspring/decimal"

	"eventsphere/models"
)

// YesPay is a PaymentGateway over the YesPay merchant API. Charges go out
// as HMAC-signed HTTP requests; asynchronous confirmations arrive on a
// PubNub channel and are surfaced through Confirmations.

type YesPayConfig struct {
	BaseURL    string `json:"base_url"`
	PartnerID  string `json:"partner_id"`
	ClientID   string `json:"client_id"`
	ClientKey  string `json:"client_key"`
	HMACKey    string `json:"hmac_key"`
	MerchantID string `json:"merchant_id"`
	Currency   string `json:"currency"`

	PNSubKey  string `json:"pn_subkey"`
	PNUUID    string `json:"pn_uuid"`
	PNChannel string `json:"pn_channel"`
}

// Confirmation is an asynchronous payment notification from the provider.
type Confirmation struct {
	TransactionID string          `json:"billNumber"`
	RefID         string          `json:"refNo"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"txnAmount"`
}

type YesPay struct {
	cfg YesPayConfig

	mu          sync.Mutex
	accessToken string

	toggleTokenRefresher chan struct{}

	pn       *pubnub.PubNub
	listener *pubnub.Listener
	txCh     chan *Confirmation

	hc *http.Client
}

func NewYesPay(ctx context.Context, cfg YesPayConfig) (*YesPay, error) {
	y := &YesPay{
		cfg: cfg,

		// buffered so a slow consumer never stalls the listener
		toggleTokenRefresher: make(chan struct{}, 1),
		txCh:                 make(chan *Confirmation, 16),

		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	token, err := y.connect(ctx)
	if err != nil {
		return nil, err
	}
	y.setAccessToken(token)

	go y.refreshTokenLoop(ctx)

	if cfg.PNSubKey != "" {
		y.subscribeConfirmations(ctx)
	}

	return y, nil
}

// Confirmations returns the channel asynchronous payment notifications
// are delivered on.
func (y *YesPay) Confirmations() <-chan *Confirmation {
	return y.txCh
}

type chargeRequest struct {
	BillNumber string          `json:"billNumber"`
	MerchantID string          `json:"merchantId"`
	Currency   string          `json:"sourceCurrency"`
	Amount     decimal.Decimal `json:"txnAmount"`
	Narrative  string          `json:"narrative"`
}

type chargeResponse struct {
	Code  string `json:"code"`
	RefID string `json:"refNo"`
}

// ProcessPayment charges the transaction amount synchronously. Amounts
// are kept in minor units internally; the provider expects decimal major
// units.
func (y *YesPay) ProcessPayment(ctx context.Context, tx *models.Transaction) (bool, string, error) {
	req := chargeRequest{
		BillNumber: tx.ID,
		MerchantID: y.cfg.MerchantID,
		Currency:   y.cfg.Currency,
		Amount:     decimal.New(tx.Amount, -2),
		Narrative:  tx.Description,
	}

	var resp chargeResponse
	if err := y.post(ctx, "/api/v2/charge", req, &resp); err != nil {
		return false, "", err
	}

	if resp.Code != "000" {
		slog.Warn("yespay charge declined", "transaction_id", tx.ID, "code", resp.Code)
		return false, "", nil
	}
	return true, resp.RefID, nil
}

func (y *YesPay) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, y.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+y.getAccessToken())
	httpReq.Header.Set("X-Partner-Id", y.cfg.PartnerID)
	httpReq.Header.Set("X-Signature", Hmac256(body, []byte(y.cfg.HMACKey)))

	httpResp, err := y.hc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("yespay: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusUnauthorized {
		// nudge the refresher and surface the failure to the caller
		select {
		case y.toggleTokenRefresher <- struct{}{}:
		default:
		}
		return errors.New("yespay: access token rejected")
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("yespay: unexpected status %d", httpResp.StatusCode)
	}

	return json.NewDecoder(httpResp.Body).Decode(out)
}

type connectResponse struct {
	AccessToken string `json:"accessToken"`
}

func (y *YesPay) connect(ctx context.Context) (string, error) {
	payload := map[string]string{
		"clientId":  y.cfg.ClientID,
		"clientKey": y.cfg.ClientKey,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, y.cfg.BaseURL+"/api/v2/connect", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Partner-Id", y.cfg.PartnerID)
	httpReq.Header.Set("X-Signature", Hmac256(body, []byte(y.cfg.HMACKey)))

	httpResp, err := y.hc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("yespay connect: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("yespay connect: unexpected status %d", httpResp.StatusCode)
	}

	var resp connectResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// refreshTokenLoop renews the access token periodically and on demand,
// with exponential backoff on failure.
func (y *YesPay) refreshTokenLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-y.toggleTokenRefresher:
			slog.Info("yespay: refreshing access token on demand")
		}

		backOff := time.Second

	Retry:
		for {
			token, err := y.connect(ctx)
			switch err {
			case nil:
				y.setAccessToken(token)
				break Retry

			default:
				slog.Error("yespay token refresh failed", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(backOff):
					backOff *= 2
				}
			}
		}
	}
}

func (y *YesPay) setAccessToken(token string) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.accessToken = token
}

func (y *YesPay) getAccessToken() string {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.accessToken
}

func (y *YesPay) subscribeConfirmations(ctx context.Context) {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(y.cfg.PNUUID))
	pnCfg.SubscribeKey = y.cfg.PNSubKey

	y.pn = pubnub.NewPubNub(pnCfg)
	y.listener = pubnub.NewListener()
	y.pn.AddListener(y.listener)

	y.pn.Subscribe().
		Channels([]string{y.cfg.PNChannel}).
		Execute()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case message := <-y.listener.Message:
				y.handleConfirmation(message)
			}
		}
	}()
}

func (y *YesPay) handleConfirmation(message *pubnub.PNMessage) {
	data, ok := message.Message.(map[string]any)
	if !ok {
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return
	}

	var c Confirmation
	if err := json.Unmarshal(raw, &c); err != nil {
		slog.Error("yespay: unparsable confirmation", "error", err)
		return
	}

	select {
	case y.txCh <- &c:
	default:
		slog.Warn("yespay: confirmation channel full, dropping", "transaction_id", c.TransactionID)
	}
}

// Close unsubscribes the confirmation listener.
func (y *YesPay) Close(_ context.Context) error {
	if y.pn != nil {
		y.pn.UnsubscribeAll()
	}
	return nil
}
