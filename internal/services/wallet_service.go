package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sellium/payments-backend/internal/config"
	"github.com/sellium/payments-backend/internal/errs"
	"github.com/sellium/payments-backend/internal/models"
	"github.com/sellium/payments-backend/internal/provider"
	repo "github.com/sellium/payments-backend/internal/repository"
)

// WalletService owns the provider-facing wallet surface: virtual account
// issuance and bank account linking. Balance math stays in LedgerService.
type WalletService struct {
	wallets  repo.Wallets
	accounts repo.BankAccounts
	gateway  provider.Gateway
	cfg      config.Config
}

func NewWalletService(w repo.Wallets, b repo.BankAccounts, g provider.Gateway, cfg config.Config) *WalletService {
	return &WalletService{wallets: w, accounts: b, gateway: g, cfg: cfg}
}

type IssueVirtualAccountParams struct {
	OwnerID   string `validate:"required"`
	Email     string `validate:"required,email"`
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Phone     string
}

// IssueVirtualAccount requests a dedicated account from the processor. The
// account number usually arrives later via webhook; when the provider
// assigns synchronously we attach it right away.
func (s *WalletService) IssueVirtualAccount(ctx context.Context, p IssueVirtualAccountParams) (models.Wallet, error) {
	w, err := s.wallets.GetOrCreate(ctx, p.OwnerID, s.cfg.Currency)
	if err != nil {
		return models.Wallet{}, err
	}
	if w.VirtualAccountNumber != nil {
		return models.Wallet{}, fmt.Errorf("virtual account already issued: %w", errs.ErrConflict)
	}

	va, err := s.gateway.CreateVirtualAccount(ctx, provider.VirtualAccountRequest{
		OwnerID:   p.OwnerID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
	})
	if err != nil {
		return models.Wallet{}, err
	}
	if va.CustomerRef != "" {
		if err := s.wallets.SetProviderCustomer(ctx, p.OwnerID, va.CustomerRef); err != nil {
			return models.Wallet{}, err
		}
	}
	if va.Assigned {
		if err := s.wallets.AttachVirtualAccount(ctx, p.OwnerID, va.AccountNumber, va.AccountName, va.BankName); err != nil {
			return models.Wallet{}, err
		}
	}
	return s.wallets.Get(ctx, p.OwnerID)
}

// LinkBankAccount resolves the account at the processor before saving, so
// only verified destinations can receive payouts.
func (s *WalletService) LinkBankAccount(ctx context.Context, ownerID, accountNumber, bankCode, bankName string) (models.BankAccount, error) {
	if accountNumber == "" || bankCode == "" {
		return models.BankAccount{}, errs.Validation("account number and bank code required")
	}
	resolved, err := s.gateway.ResolveBankAccount(ctx, accountNumber, bankCode)
	if err != nil {
		return models.BankAccount{}, err
	}
	acct, err := s.accounts.Create(ctx, models.BankAccount{
		OwnerID:       ownerID,
		BankCode:      bankCode,
		BankName:      bankName,
		AccountNumber: resolved.AccountNumber,
		AccountName:   resolved.AccountName,
	})
	if errors.Is(err, errs.ErrDuplicate) {
		return models.BankAccount{}, fmt.Errorf("bank account already linked: %w", errs.ErrConflict)
	}
	return acct, err
}

func (s *WalletService) ListBanks(ctx context.Context) ([]provider.Bank, error) {
	return s.gateway.ListBanks(ctx)
}

func (s *WalletService) ListBankAccounts(ctx context.Context, ownerID string) ([]models.BankAccount, error) {
	return s.accounts.ListByOwner(ctx, ownerID)
}
