package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sellium/payments-backend/internal/api/httpx"
	"github.com/sellium/payments-backend/internal/api/validate"
	"github.com/sellium/payments-backend/internal/config"
	"github.com/sellium/payments-backend/internal/errs"
	"github.com/sellium/payments-backend/internal/middleware"
	"github.com/sellium/payments-backend/internal/models"
	"github.com/sellium/payments-backend/internal/services"
)

type RouterDeps struct {
	Cfg       config.Config
	Auth      *middleware.AuthMiddleware
	Ledger    *services.LedgerService
	Wallets   *services.WalletService
	Transfers *services.TransferService
	Refunds   *services.RefundService
	Settle    *services.SettlementService
	Webhooks  *services.WebhookService
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())

	// Processor callbacks. The signature gates everything; once the payload
	// is syntactically accepted we always ack so the processor stops
	// redelivering — internal handler failures are logged, not surfaced.
	r.Post("/webhooks/"+d.Cfg.Provider, func(w http.ResponseWriter, r *http.Request) {
		sig := r.Header.Get("x-paystack-signature")
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "bad_request", "unreadable body", nil)
			return
		}
		if err := d.Webhooks.Accept(r.Context(), raw, sig); err != nil {
			if errors.Is(err, errs.ErrSignature) {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "rejected", nil)
				return
			}
			httpx.WriteError(w, http.StatusBadRequest, "bad_request", "rejected", nil)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(d.Auth.Auth)

		// ---------- wallets ----------
		r.Get("/wallets/{owner_id}", func(w http.ResponseWriter, r *http.Request) {
			wallet, err := d.Ledger.GetOrCreateWallet(r.Context(), chi.URLParam(r, "owner_id"))
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, wallet)
		})

		r.Post("/wallets/{owner_id}/virtual-account", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Email     string `json:"email" validate:"required,email"`
				FirstName string `json:"first_name" validate:"required"`
				LastName  string `json:"last_name" validate:"required"`
				Phone     string `json:"phone"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
				return
			}
			if err := validate.Struct(req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid request", err)
				return
			}
			wallet, err := d.Wallets.IssueVirtualAccount(r.Context(), services.IssueVirtualAccountParams{
				OwnerID:   chi.URLParam(r, "owner_id"),
				Email:     req.Email,
				FirstName: req.FirstName,
				LastName:  req.LastName,
				Phone:     req.Phone,
			})
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusCreated, wallet)
		})

		r.Post("/wallets/{owner_id}/pin", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				PIN string `json:"pin" validate:"required,min=4"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
				return
			}
			if err := validate.Struct(req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid request", err)
				return
			}
			if err := d.Ledger.SetWalletPIN(r.Context(), chi.URLParam(r, "owner_id"), req.PIN); err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/wallets/{owner_id}/bank-accounts", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				AccountNumber string `json:"account_number" validate:"required"`
				BankCode      string `json:"bank_code" validate:"required"`
				BankName      string `json:"bank_name"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
				return
			}
			if err := validate.Struct(req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid request", err)
				return
			}
			acct, err := d.Wallets.LinkBankAccount(r.Context(), chi.URLParam(r, "owner_id"), req.AccountNumber, req.BankCode, req.BankName)
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusCreated, acct)
		})

		r.Get("/banks", func(w http.ResponseWriter, r *http.Request) {
			banks, err := d.Wallets.ListBanks(r.Context())
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, banks)
		})

		// ---------- ledger ----------
		r.Get("/ledger", func(w http.ResponseWriter, r *http.Request) {
			owner := r.URL.Query().Get("owner_id")
			if owner == "" {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "owner_id required", nil)
				return
			}
			limit, offset := pageParams(r, 50)
			entries, err := d.Ledger.ListByOwner(r.Context(), owner, limit, offset)
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, entries)
		})

		// ---------- transfers ----------
		r.Post("/transfers", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				OwnerID       string `json:"owner_id" validate:"required"`
				BankAccountID string `json:"bank_account_id" validate:"required"`
				Amount        int64  `json:"amount" validate:"required,gt=0"`
				PIN           string `json:"pin" validate:"required"`
				Reference     string `json:"reference"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
				return
			}
			if err := validate.Struct(req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid request", err)
				return
			}
			transfer, err := d.Transfers.Withdraw(r.Context(), services.WithdrawParams{
				OwnerID:       req.OwnerID,
				BankAccountID: req.BankAccountID,
				Amount:        req.Amount,
				PIN:           req.PIN,
				Reference:     req.Reference,
			})
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusAccepted, transfer)
		})

		r.Post("/transfers/{reference}/finalize", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				OTP string `json:"otp" validate:"required"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
				return
			}
			if err := validate.Struct(req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid request", err)
				return
			}
			transfer, err := d.Transfers.Finalize(r.Context(), chi.URLParam(r, "reference"), req.OTP)
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, transfer)
		})

		r.Get("/transfers/{reference}", func(w http.ResponseWriter, r *http.Request) {
			transfer, err := d.Transfers.GetByReference(r.Context(), chi.URLParam(r, "reference"))
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, transfer)
		})

		// ---------- refunds ----------
		r.Post("/orders/{order_id}/refunds", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Kind   string `json:"kind" validate:"required,oneof=full partial"`
				Amount int64  `json:"amount"`
				Reason string `json:"reason" validate:"required"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "bad_request", "bad request", nil)
				return
			}
			if err := validate.Struct(req); err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "validation_error", "invalid request", err)
				return
			}
			refund, err := d.Refunds.ProcessRefund(r.Context(), services.RefundRequest{
				OrderID: chi.URLParam(r, "order_id"),
				Kind:    models.RefundKind(req.Kind),
				Amount:  req.Amount,
				Reason:  req.Reason,
			})
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, http.StatusCreated, refund)
		})

		// ---------- settlements (ops) ----------
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("admin"))

			r.Get("/settlements", func(w http.ResponseWriter, r *http.Request) {
				merchant := r.URL.Query().Get("merchant_id")
				if merchant == "" {
					httpx.WriteError(w, http.StatusBadRequest, "bad_request", "merchant_id required", nil)
					return
				}
				limit, offset := pageParams(r, 50)
				list, err := d.Settle.ListByMerchant(r.Context(), merchant, limit, offset)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, list)
			})

			r.Post("/settlements/run", func(w http.ResponseWriter, r *http.Request) {
				if err := d.Settle.RunDue(r.Context(), time.Now()); err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
			})
		})
	})

	return r
}

func pageParams(r *http.Request, defLimit int) (limit, offset int) {
	limit = defLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
