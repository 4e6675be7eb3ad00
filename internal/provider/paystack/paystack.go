// Package paystack implements provider.Gateway against the Paystack REST API.
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sellium/payments-backend/internal/errs"
	"github.com/sellium/payments-backend/internal/provider"
)

const defaultBaseURL = "https://api.paystack.co"

type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func New(baseURL, secretKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "paystack" }

// envelope is Paystack's uniform response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &errs.ProviderError{Provider: "paystack", Op: path, Code: "network", Msg: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &errs.ProviderError{Provider: "paystack", Op: path, Code: resp.Status, Msg: "undecodable response", Retryable: false}
	}
	if resp.StatusCode >= 300 || !env.Status {
		return &errs.ProviderError{
			Provider:  "paystack",
			Op:        path,
			Code:      fmt.Sprintf("http_%d", resp.StatusCode),
			Msg:       env.Message,
			Retryable: resp.StatusCode >= 500,
		}
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *Client) CreateVirtualAccount(ctx context.Context, req provider.VirtualAccountRequest) (provider.VirtualAccount, error) {
	bank := req.PreferredBank
	if bank == "" {
		bank = "wema-bank"
	}
	var data struct {
		Customer struct {
			CustomerCode string `json:"customer_code"`
		} `json:"customer"`
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
		Bank          struct {
			Name string `json:"name"`
		} `json:"bank"`
		Assigned bool `json:"assigned"`
	}
	err := c.call(ctx, http.MethodPost, "/dedicated_account/assign", map[string]any{
		"email":          req.Email,
		"first_name":     req.FirstName,
		"last_name":      req.LastName,
		"phone":          req.Phone,
		"preferred_bank": bank,
		"country":        "NG",
	}, &data)
	if err != nil {
		return provider.VirtualAccount{}, err
	}
	return provider.VirtualAccount{
		CustomerRef:   data.Customer.CustomerCode,
		AccountNumber: data.AccountNumber,
		AccountName:   data.AccountName,
		BankName:      data.Bank.Name,
		Assigned:      data.Assigned,
	}, nil
}

func (c *Client) InitializePayment(ctx context.Context, req provider.PaymentRequest) (provider.PaymentSession, error) {
	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	err := c.call(ctx, http.MethodPost, "/transaction/initialize", map[string]any{
		"reference": req.Reference,
		"email":     req.Email,
		"amount":    req.Amount,
		"currency":  req.Currency,
		"metadata":  req.Metadata,
	}, &data)
	if err != nil {
		return provider.PaymentSession{}, err
	}
	return provider.PaymentSession{AuthorizationURL: data.AuthorizationURL, AccessCode: data.AccessCode, Reference: data.Reference}, nil
}

func (c *Client) VerifyPayment(ctx context.Context, reference string) (provider.PaymentStatus, error) {
	var data struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Fees      int64  `json:"fees"`
		Channel   string `json:"channel"`
		ID        int64  `json:"id"`
	}
	if err := c.call(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return provider.PaymentStatus{}, err
	}
	return provider.PaymentStatus{
		Reference:  data.Reference,
		Paid:       data.Status == "success",
		Amount:     data.Amount,
		Fees:       data.Fees,
		Channel:    data.Channel,
		ProviderID: fmt.Sprintf("%d", data.ID),
	}, nil
}

func (c *Client) CreateTransferRecipient(ctx context.Context, r provider.Recipient) (string, error) {
	var data struct {
		RecipientCode string `json:"recipient_code"`
	}
	err := c.call(ctx, http.MethodPost, "/transferrecipient", map[string]any{
		"type":           "nuban",
		"name":           r.Name,
		"account_number": r.AccountNumber,
		"bank_code":      r.BankCode,
		"currency":       r.Currency,
	}, &data)
	if err != nil {
		return "", err
	}
	return data.RecipientCode, nil
}

type transferData struct {
	Status       string `json:"status"`
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
	Message      string `json:"message"`
}

func (d transferData) result() provider.TransferResult {
	res := provider.TransferResult{TransferCode: d.TransferCode, Reference: d.Reference, FailureText: d.Message}
	switch d.Status {
	case "success":
		res.State = provider.TransferStateSuccess
	case "otp":
		res.State = provider.TransferStateOTP
	case "pending", "queued":
		res.State = provider.TransferStatePending
	default:
		res.State = provider.TransferStateFailed
	}
	return res
}

func (c *Client) TransferToBank(ctx context.Context, req provider.TransferRequest) (provider.TransferResult, error) {
	var data transferData
	err := c.call(ctx, http.MethodPost, "/transfer", map[string]any{
		"source":    "balance",
		"reference": req.Reference,
		"recipient": req.RecipientCode,
		"amount":    req.Amount,
		"currency":  req.Currency,
		"reason":    req.Reason,
	}, &data)
	if err != nil {
		return provider.TransferResult{}, err
	}
	return data.result(), nil
}

func (c *Client) FinalizeTransfer(ctx context.Context, transferCode, otp string) (provider.TransferResult, error) {
	var data transferData
	err := c.call(ctx, http.MethodPost, "/transfer/finalize_transfer", map[string]any{
		"transfer_code": transferCode,
		"otp":           otp,
	}, &data)
	if err != nil {
		return provider.TransferResult{}, err
	}
	return data.result(), nil
}

func (c *Client) FetchTransfer(ctx context.Context, reference string) (provider.TransferResult, error) {
	var data transferData
	if err := c.call(ctx, http.MethodGet, "/transfer/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return provider.TransferResult{}, err
	}
	return data.result(), nil
}

func (c *Client) Refund(ctx context.Context, req provider.RefundRequest) (provider.RefundResult, error) {
	body := map[string]any{
		"transaction":   req.TransactionRef,
		"merchant_note": req.Reason,
	}
	if req.Amount > 0 {
		body["amount"] = req.Amount
	}
	var data struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := c.call(ctx, http.MethodPost, "/refund", body, &data); err != nil {
		return provider.RefundResult{}, err
	}
	return provider.RefundResult{RefundRef: fmt.Sprintf("%d", data.ID), Status: data.Status}, nil
}

func (c *Client) ResolveBankAccount(ctx context.Context, accountNumber, bankCode string) (provider.ResolvedAccount, error) {
	var data struct {
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
		BankID        int    `json:"bank_id"`
	}
	q := url.Values{"account_number": {accountNumber}, "bank_code": {bankCode}}
	if err := c.call(ctx, http.MethodGet, "/bank/resolve?"+q.Encode(), nil, &data); err != nil {
		return provider.ResolvedAccount{}, err
	}
	return provider.ResolvedAccount{AccountNumber: data.AccountNumber, AccountName: data.AccountName, BankID: data.BankID}, nil
}

func (c *Client) ListBanks(ctx context.Context) ([]provider.Bank, error) {
	var data []provider.Bank
	if err := c.call(ctx, http.MethodGet, "/bank?country=nigeria", nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) FetchBalance(ctx context.Context) (int64, string, error) {
	var data []struct {
		Currency string `json:"currency"`
		Balance  int64  `json:"balance"`
	}
	if err := c.call(ctx, http.MethodGet, "/balance", nil, &data); err != nil {
		return 0, "", err
	}
	if len(data) == 0 {
		return 0, "", &errs.ProviderError{Provider: "paystack", Op: "/balance", Code: "empty", Msg: "no balance returned"}
	}
	return data[0].Balance, data[0].Currency, nil
}

// Paystack has no wallet-to-wallet transfer API.
func (c *Client) WalletTransfer(ctx context.Context, fromRef, toRef string, amount int64) error {
	return errs.ErrUnsupported
}

// ValidateSignature checks the x-paystack-signature header: HMAC-SHA512 of
// the raw body with the secret key, hex encoded, compared in constant time.
func (c *Client) ValidateSignature(signature string, body []byte) error {
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(want), []byte(signature)) != 1 {
		return errs.ErrSignature
	}
	return nil
}
