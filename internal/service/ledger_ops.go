package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ajo/internal/domain"
	"ajo/internal/models"
	"ajo/internal/repository"
	"ajo/pkg/ledger"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	directionDebit  = "debit"
	directionCredit = "credit"
)

// ledgerMove is a ledger call that succeeded inside a unit of work that may still roll back.
type ledgerMove struct {
	direction string
	entry     ledger.Entry
	txType    string
	ajoID     *uint
}

// compensator remembers successful ledger moves so they can be undone if the
// surrounding database transaction fails.
type compensator struct {
	moves []ledgerMove
}

func (c *compensator) add(direction string, e ledger.Entry, txType string, ajoID *uint) {
	c.moves = append(c.moves, ledgerMove{direction: direction, entry: e, txType: txType, ajoID: ajoID})
}

func reversalRef(ref string) string { return "REV-" + ref }

// ledgerOps wraps the ledger client with time bounds, reference allocation and reversals.
type ledgerOps struct {
	client     ledger.Client
	repos      *repository.Repositories
	timeout    time.Duration
	alertAbove int64
	log        zerolog.Logger
}

func (o *ledgerOps) debit(ctx context.Context, e ledger.Entry) (*ledger.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.client.Debit(ctx, e)
}

func (o *ledgerOps) credit(ctx context.Context, e ledger.Entry) (*ledger.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	return o.client.Credit(ctx, e)
}

// allocateRef returns the ledger reference for a logical operation. Retries reuse
// base so the ledger deduplicates them. A reference already booked by a committed
// transaction, or whose move was successfully reversed, is never handed out again;
// the next attempt gets a fresh suffix.
func (o *ledgerOps) allocateRef(tx *repository.Repositories, base string) (string, error) {
	ref := base
	for n := 1; ; n++ {
		taken, err := o.refTaken(tx, ref)
		if err != nil {
			return "", err
		}
		if !taken {
			return ref, nil
		}
		ref = fmt.Sprintf("%s-R%d", base, n)
	}
}

func (o *ledgerOps) refTaken(tx *repository.Repositories, ref string) (bool, error) {
	booked, err := tx.Transactions.ExistsReference(ref)
	if err != nil || booked {
		return booked, err
	}
	rev, err := tx.Transactions.GetByReference(reversalRef(ref))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rev.Status == domain.TxStatusSuccess, nil
}

// compensate undoes every recorded move, newest first. It runs after the
// database transaction rolled back, so it writes through the root repositories.
func (o *ledgerOps) compensate(c *compensator, cause error) {
	for i := len(c.moves) - 1; i >= 0; i-- {
		o.reverse(c.moves[i], cause)
	}
	c.moves = nil
}

func (o *ledgerOps) reverse(m ledgerMove, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	rev := m.entry
	rev.Reference = reversalRef(m.entry.Reference)
	rev.Memo = "Reversal: " + m.entry.Memo

	direction := directionCredit
	var err error
	if m.direction == directionCredit {
		direction = directionDebit
		_, err = o.client.Debit(ctx, rev)
	} else {
		_, err = o.client.Credit(ctx, rev)
	}
	status := domain.TxStatusSuccess
	if err != nil {
		status = domain.TxStatusFailed
	}

	log := o.log.With().Str("reference", m.entry.Reference).Uint("user_id", m.entry.UserID).Int64("amount", m.entry.Amount).Logger()
	if err != nil {
		log.Error().Err(err).Msg("ledger reversal failed")
	} else {
		log.Warn().AnErr("cause", cause).Msg("ledger move reversed")
	}

	causeMsg := ""
	if cause != nil {
		causeMsg = cause.Error()
	}
	t := &models.Transaction{
		UserID:    m.entry.UserID,
		AjoID:     m.ajoID,
		Amount:    m.entry.Amount,
		Type:      domain.TxReversal,
		Status:    status,
		Reference: rev.Reference,
		Metadata: models.NewReversalMeta(models.ReversalMeta{
			OriginalRef:  m.entry.Reference,
			OriginalType: m.txType,
			Direction:    direction,
			Cause:        causeMsg,
			Succeeded:    err == nil,
		}),
	}
	repos := o.repos.WithContext(ctx)
	if existing, getErr := repos.Transactions.GetByReference(rev.Reference); getErr == nil {
		if uErr := repos.Transactions.UpdateStatus(existing.Reference, status); uErr != nil {
			log.Error().Err(uErr).Msg("update reversal record")
		}
	} else if aErr := repos.Transactions.Append(t); aErr != nil {
		log.Error().Err(aErr).Msg("record reversal")
	}

	if err != nil || m.entry.Amount >= o.alertAbove {
		o.flagReversal(repos, m, err, causeMsg)
	}
}

func (o *ledgerOps) flagReversal(repos *repository.Repositories, m ledgerMove, revErr error, cause string) {
	severity, score := domain.SeverityHigh, 70
	desc := fmt.Sprintf("Reversal of %s on %s", FormatNaira(m.entry.Amount), m.entry.Reference)
	if revErr != nil {
		severity, score = domain.SeverityCritical, 95
		desc = "Failed " + desc
	}
	uid := m.entry.UserID
	fc := &models.FraudCase{
		UserID:      &uid,
		AjoID:       m.ajoID,
		Type:        domain.FraudLargeReversal,
		RiskScore:   score,
		Severity:    severity,
		Status:      domain.FraudStatusOpen,
		Description: desc,
		Metadata: map[string]interface{}{
			"reference":     m.entry.Reference,
			"original_type": m.txType,
			"amount":        m.entry.Amount,
			"cause":         cause,
			"reversed":      revErr == nil,
		},
	}
	if err := repos.Fraud.Create(fc); err != nil {
		o.log.Error().Err(err).Str("reference", m.entry.Reference).Msg("record fraud case")
	}
}
