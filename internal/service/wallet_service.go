package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ajo/internal/domain"
	"ajo/internal/models"
	"ajo/internal/repository"
	"ajo/pkg/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// WalletService keeps the local wallet mirror in step with the bank ledger.
type WalletService struct {
	repos    *repository.Repositories
	ledger   *ledgerOps
	notifier Notifier
	log      zerolog.Logger
}

func NewWalletService(repos *repository.Repositories, ajo *AjoService, notifier Notifier, log zerolog.Logger) *WalletService {
	return &WalletService{
		repos:    repos,
		ledger:   ajo.ledger,
		notifier: notifier,
		log:      log.With().Str("component", "wallet").Logger(),
	}
}

type WalletView struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

func (s *WalletService) Get(ctx context.Context, userID uint) (*WalletView, error) {
	w, err := s.repos.WithContext(ctx).Wallets.GetOrCreate(userID)
	if err != nil {
		return nil, internal(err)
	}
	return &WalletView{Balance: w.BalanceKobo, Currency: w.Currency, Display: FormatNaira(w.BalanceKobo)}, nil
}

// Credit adds amount to the local wallet.
func (s *WalletService) Credit(ctx context.Context, userID uint, amount int64) error {
	return walletErr(s.repos.WithContext(ctx).Wallets.Credit(userID, amount))
}

// Debit removes amount from the local wallet; the balance never goes negative.
func (s *WalletService) Debit(ctx context.Context, userID uint, amount int64) error {
	return walletErr(s.repos.WithContext(ctx).Wallets.Debit(userID, amount))
}

func walletErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, repository.ErrInvalidAmount):
		return ErrInvalidAmount
	}
	return internal(err)
}

// Fund moves money into the user's bank wallet and mirrors it locally.
func (s *WalletService) Fund(ctx context.Context, userID uint, amount int64, channel string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	user, err := s.repos.WithContext(ctx).Users.GetByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internal(err)
	}
	ref := "FND-" + uuid.NewString()
	entry := ledger.Entry{
		UserID:    userID,
		WalletID:  user.VFDWalletID,
		Amount:    amount,
		Memo:      "Wallet funding",
		Reference: ref,
	}
	if _, err := s.ledger.credit(ctx, entry); err != nil {
		return nil, ErrPaymentProcessingFailed.Wrap(err)
	}
	comp := compensator{}
	comp.add(directionCredit, entry, domain.TxDeposit, nil)
	record, err := s.recordDeposit(ctx, userID, amount, ref, ref, channel)
	if err != nil {
		s.ledger.compensate(&comp, err)
		return nil, err
	}
	return record, nil
}

// Deposit records money the bank has already received for the user, as reported
// by the ledger webhook. Repeated deliveries of the same external reference are ignored.
func (s *WalletService) Deposit(ctx context.Context, userID uint, amount int64, externalRef, channel string) (*models.Transaction, bool, error) {
	externalRef = strings.TrimSpace(externalRef)
	if amount <= 0 {
		return nil, false, ErrInvalidAmount
	}
	if externalRef == "" {
		return nil, false, ErrValidation.WithMessage("reference is required")
	}
	ref := "DEP-" + externalRef
	if existing, err := s.repos.WithContext(ctx).Transactions.GetByReference(ref); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, internal(err)
	}
	record, err := s.recordDeposit(ctx, userID, amount, ref, externalRef, channel)
	if err != nil {
		return nil, false, err
	}
	return record, false, nil
}

func (s *WalletService) recordDeposit(ctx context.Context, userID uint, amount int64, ref, externalRef, channel string) (*models.Transaction, error) {
	record := &models.Transaction{
		UserID:    userID,
		Amount:    amount,
		Type:      domain.TxDeposit,
		Status:    domain.TxStatusSuccess,
		Reference: ref,
		Metadata:  models.NewDepositMeta(models.DepositMeta{ExternalRef: externalRef, Channel: channel}),
	}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Users.GetByID(userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if _, err := tx.Wallets.GetOrCreate(userID); err != nil {
			return err
		}
		if err := tx.Wallets.Credit(userID, amount); err != nil {
			return err
		}
		return tx.Transactions.Append(record)
	})
	if err != nil {
		return nil, internal(err)
	}
	s.log.Info().Uint("user_id", userID).Int64("amount", amount).Str("reference", ref).Msg("wallet funded")
	if s.notifier != nil {
		if err := s.notifier.Notify(userID, domain.NotifyTransaction, "Wallet funded",
			fmt.Sprintf("%s was added to your wallet.", FormatNaira(amount)),
			map[string]interface{}{"reference": ref, "amount": amount}); err != nil {
			s.log.Warn().Err(err).Uint("user_id", userID).Msg("notification not delivered")
		}
	}
	return record, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := s.repos.WithContext(ctx).Transactions.ListByUser(userID, limit, offset)
	return list, internal(err)
}
