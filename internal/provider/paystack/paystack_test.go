package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sellium/payments-backend/internal/errs"
	"github.com/sellium/payments-backend/internal/provider"
)

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "sk_test_secret", 5*time.Second)
}

func TestCallSendsAuthHeader(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":[]}`))
	})

	_, err := c.ListBanks(context.Background())
	require.NoError(t, err)
}

func TestTransferToBankStates(t *testing.T) {
	cases := []struct {
		providerStatus string
		want           provider.TransferState
	}{
		{"success", provider.TransferStateSuccess},
		{"pending", provider.TransferStatePending},
		{"queued", provider.TransferStatePending},
		{"otp", provider.TransferStateOTP},
		{"failed", provider.TransferStateFailed},
	}
	for _, tc := range cases {
		t.Run(tc.providerStatus, func(t *testing.T) {
			c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/transfer", r.URL.Path)
				var body map[string]any
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				require.Equal(t, "balance", body["source"])
				require.Equal(t, "TRF-1", body["reference"])

				resp := map[string]any{
					"status":  true,
					"message": "ok",
					"data": map[string]any{
						"status":        tc.providerStatus,
						"transfer_code": "TRF_code",
						"reference":     "TRF-1",
					},
				}
				_ = json.NewEncoder(w).Encode(resp)
			})

			res, err := c.TransferToBank(context.Background(), provider.TransferRequest{
				Reference:     "TRF-1",
				RecipientCode: "RCP_1",
				Amount:        5000,
				Currency:      "NGN",
			})
			require.NoError(t, err)
			require.Equal(t, tc.want, res.State)
			require.Equal(t, "TRF_code", res.TransferCode)
		})
	}
}

func TestCallMapsAPIErrors(t *testing.T) {
	t.Run("4xx not retryable", func(t *testing.T) {
		c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":false,"message":"Invalid recipient"}`))
		})
		_, err := c.TransferToBank(context.Background(), provider.TransferRequest{Reference: "TRF-1"})
		var pe *errs.ProviderError
		require.ErrorAs(t, err, &pe)
		require.False(t, pe.Retryable)
		require.Equal(t, "Invalid recipient", pe.Msg)
	})

	t.Run("5xx retryable", func(t *testing.T) {
		c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"status":false,"message":"try again"}`))
		})
		_, err := c.TransferToBank(context.Background(), provider.TransferRequest{Reference: "TRF-1"})
		var pe *errs.ProviderError
		require.ErrorAs(t, err, &pe)
		require.True(t, pe.Retryable)
	})

	t.Run("declined despite 200", func(t *testing.T) {
		c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":false,"message":"insufficient balance"}`))
		})
		_, err := c.TransferToBank(context.Background(), provider.TransferRequest{Reference: "TRF-1"})
		require.True(t, errs.IsProvider(err))
	})

	t.Run("network error retryable", func(t *testing.T) {
		c := New("http://127.0.0.1:1", "sk_test_secret", 200*time.Millisecond)
		_, err := c.ListBanks(context.Background())
		var pe *errs.ProviderError
		require.ErrorAs(t, err, &pe)
		require.True(t, pe.Retryable)
	})
}

func TestRefundOmitsAmountForFull(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasAmount := body["amount"]
		require.False(t, hasAmount)
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"id":12345,"status":"pending"}}`))
	})

	res, err := c.Refund(context.Background(), provider.RefundRequest{TransactionRef: "PAY_1", Amount: 0})
	require.NoError(t, err)
	require.Equal(t, "12345", res.RefundRef)
}

func TestVerifyPayment(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/verify/ORD-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"status":"success","reference":"ORD-1","amount":10000,"fees":100,"channel":"card","id":99}}`))
	})

	st, err := c.VerifyPayment(context.Background(), "ORD-1")
	require.NoError(t, err)
	require.True(t, st.Paid)
	require.Equal(t, int64(10000), st.Amount)
	require.Equal(t, "99", st.ProviderID)
}

func TestWalletTransferUnsupported(t *testing.T) {
	c := New("", "sk_test_secret", time.Second)
	require.ErrorIs(t, c.WalletTransfer(context.Background(), "a", "b", 100), errs.ErrUnsupported)
}

func TestValidateSignature(t *testing.T) {
	c := New("", "sk_test_secret", time.Second)
	body := []byte(`{"event":"charge.success"}`)

	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(body)
	good := hex.EncodeToString(mac.Sum(nil))

	require.NoError(t, c.ValidateSignature(good, body))
	require.ErrorIs(t, c.ValidateSignature(good, []byte(`tampered`)), errs.ErrSignature)
	require.ErrorIs(t, c.ValidateSignature("", body), errs.ErrSignature)
}
