package models

import (
	"time"

	"ajo/internal/domain"

	"gorm.io/datatypes"
)

// Transaction is the append-only money log. Only Status may change after insert.
// Reference is unique and doubles as the idempotency key for ledger calls.
type Transaction struct {
	ID        uint                                `gorm:"primaryKey" json:"id"`
	UserID    uint                                `gorm:"not null;index" json:"user_id"`
	AjoID     *uint                               `gorm:"index" json:"ajo_id"`
	Amount    int64                               `gorm:"not null" json:"amount"`
	Fee       int64                               `gorm:"not null;default:0" json:"fee"`
	Type      string                              `gorm:"size:30;not null;index" json:"type"`
	Status    string                              `gorm:"size:10;not null;index" json:"status"`
	Reference string                              `gorm:"uniqueIndex;size:128;not null" json:"reference"`
	Metadata  datatypes.JSONType[TransactionMeta] `json:"metadata"`
	CreatedAt time.Time                           `json:"created_at"`
	UpdatedAt time.Time                           `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// TransactionMeta is a tagged union keyed by Kind; exactly the field matching Kind is set.
type TransactionMeta struct {
	Kind         string            `json:"kind"`
	Deposit      *DepositMeta      `json:"deposit,omitempty"`
	Contribution *ContributionMeta `json:"contribution,omitempty"`
	Payout       *PayoutMeta       `json:"payout,omitempty"`
	Penalty      *PenaltyMeta      `json:"penalty,omitempty"`
	EarlyExit    *EarlyExitMeta    `json:"early_exit,omitempty"`
	Reversal     *ReversalMeta     `json:"reversal,omitempty"`
}

type DepositMeta struct {
	ExternalRef string `json:"external_ref"`
	Channel     string `json:"channel,omitempty"`
}

type ContributionMeta struct {
	Rotation   int    `json:"rotation"`
	Slot       int    `json:"slot"`
	LedgerRef  string `json:"ledger_ref,omitempty"`
	TotalDebit int64  `json:"total_debit"`
}

type PayoutMeta struct {
	Rotation       int    `json:"rotation"`
	Slot           int    `json:"slot"`
	MemberCount    int    `json:"member_count"`
	DefaulterCount int    `json:"defaulter_count"`
	PenaltyAmount  int64  `json:"penalty_amount"`
	LedgerRef      string `json:"ledger_ref,omitempty"`
}

type PenaltyMeta struct {
	Rotation  int    `json:"rotation"`
	Slot      int    `json:"slot"`
	DisputeID uint   `json:"dispute_id,omitempty"`
	LedgerRef string `json:"ledger_ref,omitempty"`
	Error     string `json:"error,omitempty"`
}

type EarlyExitMeta struct {
	Reason     string `json:"reason"`
	SlotNumber int    `json:"slot_number"`
	LedgerRef  string `json:"ledger_ref,omitempty"`
}

type ReversalMeta struct {
	OriginalRef  string `json:"original_ref"`
	OriginalType string `json:"original_type"`
	Direction    string `json:"direction"` // credit | debit, as sent to the ledger
	Cause        string `json:"cause"`
	Succeeded    bool   `json:"succeeded"`
}

func NewDepositMeta(m DepositMeta) datatypes.JSONType[TransactionMeta] {
	return datatypes.NewJSONType(TransactionMeta{Kind: domain.TxDeposit, Deposit: &m})
}

func NewContributionMeta(m ContributionMeta) datatypes.JSONType[TransactionMeta] {
	return datatypes.NewJSONType(TransactionMeta{Kind: domain.TxAjoContribution, Contribution: &m})
}

func NewPayoutMeta(m PayoutMeta) datatypes.JSONType[TransactionMeta] {
	return datatypes.NewJSONType(TransactionMeta{Kind: domain.TxAjoPayout, Payout: &m})
}

func NewPenaltyMeta(m PenaltyMeta) datatypes.JSONType[TransactionMeta] {
	return datatypes.NewJSONType(TransactionMeta{Kind: domain.TxPenalty, Penalty: &m})
}

func NewEarlyExitMeta(m EarlyExitMeta) datatypes.JSONType[TransactionMeta] {
	return datatypes.NewJSONType(TransactionMeta{Kind: domain.TxEarlyExitPenalty, EarlyExit: &m})
}

func NewReversalMeta(m ReversalMeta) datatypes.JSONType[TransactionMeta] {
	return datatypes.NewJSONType(TransactionMeta{Kind: domain.TxReversal, Reversal: &m})
}
