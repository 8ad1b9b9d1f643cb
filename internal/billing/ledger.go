package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrInsufficientCredit = errors.New("insufficient credit")

type LedgerOptions struct {
	DB            *gorm.DB
	DefaultTier   Tier
	SignupCredits int
	Logger        *slog.Logger
}

// Ledger is the persistent credit store: one account row per requester plus
// an append-only entry log. It is the only mutable shared resource in the
// pipeline, and every debit goes through a conditional UPDATE so no
// interleaving can drive a balance negative.
type Ledger struct {
	db            *gorm.DB
	defaultTier   Tier
	signupCredits int
	logger        *slog.Logger
}

func NewLedger(opts LedgerOptions) (*Ledger, error) {
	if opts.DB == nil {
		return nil, errors.New("ledger: db is nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := opts.DB.AutoMigrate(&CreditAccount{}, &LedgerEntry{}); err != nil {
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}

	return &Ledger{
		db:            opts.DB,
		defaultTier:   opts.DefaultTier,
		signupCredits: opts.SignupCredits,
		logger:        logger,
	}, nil
}

// EnsureAccount returns the requester's account, provisioning a fresh one at
// the default tier with the signup grant on first contact.
func (l *Ledger) EnsureAccount(ctx context.Context, requesterID uuid.UUID) (CreditAccount, error) {
	var account CreditAccount

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&account, "requester_id = ?", requesterID).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		account = CreditAccount{
			RequesterID: requesterID,
			Tier:        l.defaultTier.String(),
			Balance:     l.signupCredits,
		}
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
		if l.signupCredits > 0 {
			entry := LedgerEntry{
				ID:          uuid.New(),
				RequesterID: requesterID,
				Tier:        account.Tier,
				Delta:       l.signupCredits,
				Reason:      "signup-grant",
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		l.logger.Info("account provisioned", "requester", requesterID, "tier", account.Tier, "credits", l.signupCredits)
		return nil
	})
	if err != nil {
		return CreditAccount{}, fmt.Errorf("ensure account: %w", err)
	}
	return account, nil
}

// Debit atomically consumes credits. The balance guard and the ledger entry
// commit together; if the guard matches no row the requester either does not
// exist or cannot afford the amount.
func (l *Ledger) Debit(ctx context.Context, requesterID uuid.UUID, tier Tier, amount int, reason string) (*LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	entry := &LedgerEntry{
		ID:          uuid.New(),
		RequesterID: requesterID,
		Tier:        tier.String(),
		Delta:       -amount,
		Reason:      reason,
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&CreditAccount{}).
			Where("requester_id = ? AND balance >= ?", requesterID, amount).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance - ?", amount),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientCredit
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientCredit) {
			return nil, ErrInsufficientCredit
		}
		return nil, fmt.Errorf("debit: %w", err)
	}
	return entry, nil
}

// Credit appends a positive movement (grant or reservation release).
func (l *Ledger) Credit(ctx context.Context, requesterID uuid.UUID, tier Tier, amount int, reason string) (*LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	entry := &LedgerEntry{
		ID:          uuid.New(),
		RequesterID: requesterID,
		Tier:        tier.String(),
		Delta:       amount,
		Reason:      reason,
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&CreditAccount{}).
			Where("requester_id = ?", requesterID).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance + ?", amount),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, fmt.Errorf("credit: %w", err)
	}
	return entry, nil
}

// RelabelEntry rewrites an entry's reason, used when a reservation is
// confirmed as a charge.
func (l *Ledger) RelabelEntry(ctx context.Context, entryID uuid.UUID, reason string) error {
	err := l.db.WithContext(ctx).Model(&LedgerEntry{}).
		Where("id = ?", entryID).
		Update("reason", reason).Error
	if err != nil {
		return fmt.Errorf("relabel entry: %w", err)
	}
	return nil
}

func (l *Ledger) Balance(ctx context.Context, requesterID uuid.UUID) (int, error) {
	var account CreditAccount
	if err := l.db.WithContext(ctx).First(&account, "requester_id = ?", requesterID).Error; err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return account.Balance, nil
}

// Entries lists a requester's ledger movements, newest first.
func (l *Ledger) Entries(ctx context.Context, requesterID uuid.UUID) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	err := l.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("entries: %w", err)
	}
	return entries, nil
}
