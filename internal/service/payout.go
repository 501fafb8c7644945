package service

import (
	"context"
	"errors"
	"fmt"

	"ajo/internal/domain"
	"ajo/internal/models"
	"ajo/internal/repository"
	"ajo/pkg/ledger"

	"golang.org/x/sync/errgroup"
)

// maxPenaltyCalls bounds concurrent ledger debits for defaulters.
const maxPenaltyCalls = 8

type PayoutResult struct {
	GroupID         uint   `json:"group_id"`
	Rotation        int    `json:"rotation"`
	Slot            int    `json:"slot"`
	RecipientID     uint   `json:"recipient_id"`
	Amount          int64  `json:"amount"`
	PenaltyAmount   int64  `json:"penalty_amount"`
	Defaulters      []uint `json:"defaulters"`
	PenaltiesFailed []uint `json:"penalties_failed"`
	Reference       string `json:"reference"`
	NextSlot        int    `json:"next_slot"`
	Status          string `json:"status"`
}

// penaltyCharge tracks one defaulter through the local debit, ledger debit and record steps.
type penaltyCharge struct {
	member models.AjoMember
	user   *models.User
	ref    string
	local  bool
	err    error
}

// ProcessPayout pays the member holding the current slot, penalises defaulters
// and rotates the group. All database effects commit together or not at all;
// ledger moves already made when a later step fails are reversed.
//
// The pot is contributionAmount x memberCount - penalty x defaulterCount:
// defaulters count toward the pot and the shortfall is carried by the pool.
func (s *AjoService) ProcessPayout(ctx context.Context, groupID uint) (*PayoutResult, error) {
	if !s.payouts.acquire(groupID) {
		return nil, ErrPayoutInProgress
	}
	defer s.payouts.release(groupID)

	var ob outbox
	var comp compensator
	var res *PayoutResult
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		g, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}
		if !g.IsActive() {
			return ErrGroupNotActive
		}
		members, err := tx.Ajo.ListMembers(g.ID)
		if err != nil {
			return err
		}
		var recipient *models.AjoMember
		var defaulters []models.AjoMember
		for i := range members {
			if members[i].SlotNumber == g.CurrentSlot {
				recipient = &members[i]
			}
			if !members[i].HasPaid {
				defaulters = append(defaulters, members[i])
			}
		}
		if recipient == nil {
			s.log.Error().Bool("data_integrity", true).Uint("group_id", g.ID).Int("slot", g.CurrentSlot).Msg("no member holds the current slot")
			return ErrNoRecipientForSlot
		}

		penalty := PercentOf(g.ContributionAmount, s.cfg.PenaltyPercent)
		amount := g.ContributionAmount*int64(len(members)) - penalty*int64(len(defaulters))
		if amount <= 0 {
			s.log.Error().Bool("data_integrity", true).Uint("group_id", g.ID).Int64("amount", amount).Int("defaulters", len(defaulters)).Msg("payout amount is not positive")
			return ErrInvalidPayoutAmount
		}

		recipientUser, err := tx.Users.GetByID(recipient.UserID)
		if err != nil {
			return err
		}
		ref, err := s.ledger.allocateRef(tx, fmt.Sprintf("AP-%d-%d-%d", g.ID, g.Rotation, g.CurrentSlot))
		if err != nil {
			return err
		}
		entry := ledger.Entry{
			UserID:    recipient.UserID,
			WalletID:  recipientUser.VFDWalletID,
			Amount:    amount,
			Memo:      "Ajo payout: " + g.Title,
			Reference: ref,
		}
		if _, err := s.ledger.credit(ctx, entry); err != nil {
			return ErrPayoutFailed.Wrap(err)
		}
		comp.add(directionCredit, entry, domain.TxAjoPayout, &g.ID)
		if err := tx.Wallets.Credit(recipient.UserID, amount); err != nil {
			return err
		}

		charges, err := s.chargeDefaulters(ctx, tx, g, defaulters, penalty, &comp)
		if err != nil {
			return err
		}
		var failed []uint
		defaulterIDs := make([]uint, 0, len(charges))
		for _, c := range charges {
			defaulterIDs = append(defaulterIDs, c.member.UserID)
			if c.err != nil {
				failed = append(failed, c.member.UserID)
			}
			if err := s.recordDefault(tx, g, c, penalty, &ob); err != nil {
				return err
			}
		}

		if err := tx.Transactions.Append(&models.Transaction{
			UserID:    recipient.UserID,
			AjoID:     &g.ID,
			Amount:    amount,
			Type:      domain.TxAjoPayout,
			Status:    domain.TxStatusSuccess,
			Reference: ref,
			Metadata: models.NewPayoutMeta(models.PayoutMeta{
				Rotation:       g.Rotation,
				Slot:           g.CurrentSlot,
				MemberCount:    len(members),
				DefaulterCount: len(defaulters),
				PenaltyAmount:  penalty,
				LedgerRef:      ref,
			}),
		}); err != nil {
			return err
		}

		nextSlot, status := g.CurrentSlot+1, domain.GroupStatusActive
		if g.CurrentSlot >= g.Slots {
			nextSlot, status = 1, domain.GroupStatusCompleted
		}
		if err := tx.Ajo.Rotate(g.ID, nextSlot, g.Rotation, status); err != nil {
			return err
		}
		if err := tx.Ajo.ResetPaid(g.ID); err != nil {
			return err
		}
		if err := tx.Users.SetWithdrawalStatus(recipient.UserID, domain.WithdrawalActive); err != nil {
			return err
		}

		ob.add(recipient.UserID, domain.NotifyPayout, "Ajo payout received",
			fmt.Sprintf("You received %s from %s.", FormatNaira(amount), g.Title),
			map[string]interface{}{"ajo_id": g.ID, "amount": amount, "reference": ref})
		if status == domain.GroupStatusActive {
			rotated := *g
			rotated.CurrentSlot = nextSlot
			due := NextContributionDate(&rotated).Format("02 Jan 2006")
			for _, m := range members {
				ob.add(m.UserID, domain.NotifyAjo, "New Ajo cycle",
					fmt.Sprintf("Next contribution of %s for %s is due on %s.", FormatNaira(g.ContributionAmount), g.Title, due),
					map[string]interface{}{"ajo_id": g.ID, "slot": nextSlot, "due": due})
			}
		} else {
			for _, m := range members {
				ob.add(m.UserID, domain.NotifyAjo, "Ajo rotation completed",
					fmt.Sprintf("%s has paid out every slot. The group admin can start the next rotation.", g.Title),
					map[string]interface{}{"ajo_id": g.ID, "rotation": g.Rotation})
			}
		}

		res = &PayoutResult{
			GroupID:         g.ID,
			Rotation:        g.Rotation,
			Slot:            g.CurrentSlot,
			RecipientID:     recipient.UserID,
			Amount:          amount,
			PenaltyAmount:   penalty,
			Defaulters:      defaulterIDs,
			PenaltiesFailed: failed,
			Reference:       ref,
			NextSlot:        nextSlot,
			Status:          status,
		}
		return nil
	})
	if err != nil {
		s.ledger.compensate(&comp, err)
		return nil, internal(err)
	}
	s.flush(&ob)
	s.log.Info().Uint("group_id", res.GroupID).Int("slot", res.Slot).Int64("amount", res.Amount).
		Int("defaulters", len(res.Defaulters)).Str("reference", res.Reference).Msg("payout processed")
	return res, nil
}

// chargeDefaulters takes the penalty from each defaulter. Local balances are
// debited first inside tx; ledger debits then run in parallel; a failed ledger
// debit refunds the local debit. A failure for one defaulter never fails the payout.
func (s *AjoService) chargeDefaulters(ctx context.Context, tx *repository.Repositories, g *models.AjoGroup, defaulters []models.AjoMember, penalty int64, comp *compensator) ([]*penaltyCharge, error) {
	charges := make([]*penaltyCharge, len(defaulters))
	for i, m := range defaulters {
		c := &penaltyCharge{member: m}
		charges[i] = c
		user, err := tx.Users.GetByID(m.UserID)
		if err != nil {
			return nil, err
		}
		c.user = user
		if c.ref, err = s.ledger.allocateRef(tx, fmt.Sprintf("PEN-%d-%d-%d-%d", g.ID, g.Rotation, g.CurrentSlot, m.UserID)); err != nil {
			return nil, err
		}
		switch err := tx.Wallets.Debit(m.UserID, penalty); {
		case errors.Is(err, repository.ErrInsufficientBalance):
			c.err = ErrInsufficientBalance
		case err != nil:
			return nil, err
		default:
			c.local = true
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxPenaltyCalls)
	for _, c := range charges {
		if !c.local {
			continue
		}
		c := c
		eg.Go(func() error {
			_, err := s.ledger.debit(egCtx, s.penaltyEntry(g, c, penalty))
			if err != nil {
				c.err = ErrPenaltyChargeFailed.Wrap(err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	for _, c := range charges {
		if !c.local {
			continue
		}
		if c.err != nil {
			if err := tx.Wallets.Credit(c.member.UserID, penalty); err != nil {
				return nil, err
			}
			s.log.Warn().Err(c.err).Uint("group_id", g.ID).Uint("user_id", c.member.UserID).Msg("penalty charge failed")
			continue
		}
		comp.add(directionDebit, s.penaltyEntry(g, c, penalty), domain.TxPenalty, &g.ID)
	}
	return charges, nil
}

func (s *AjoService) penaltyEntry(g *models.AjoGroup, c *penaltyCharge, penalty int64) ledger.Entry {
	return ledger.Entry{
		UserID:    c.member.UserID,
		WalletID:  c.user.VFDWalletID,
		Amount:    penalty,
		Memo:      "Ajo missed contribution penalty: " + g.Title,
		Reference: c.ref,
	}
}

// recordDefault writes the dispute and penalty transaction for one defaulter.
// The dispute is opened whether or not the penalty could be collected.
func (s *AjoService) recordDefault(tx *repository.Repositories, g *models.AjoGroup, c *penaltyCharge, penalty int64, ob *outbox) error {
	status, errMsg := domain.TxStatusSuccess, ""
	if c.err != nil {
		status, errMsg = domain.TxStatusFailed, c.err.Error()
	}
	d := &models.Dispute{
		AjoID:     g.ID,
		UserID:    c.member.UserID,
		Amount:    penalty,
		Type:      domain.DisputeMissedContribution,
		Status:    domain.DisputeStatusOpen,
		Reason:    fmt.Sprintf("Missed contribution for slot %d payout", g.CurrentSlot),
		Rotation:  g.Rotation,
		Slot:      g.CurrentSlot,
		Reference: c.ref,
	}
	if err := tx.Disputes.Create(d); err != nil {
		return err
	}
	if err := tx.Transactions.Append(&models.Transaction{
		UserID:    c.member.UserID,
		AjoID:     &g.ID,
		Amount:    penalty,
		Type:      domain.TxPenalty,
		Status:    status,
		Reference: c.ref,
		Metadata: models.NewPenaltyMeta(models.PenaltyMeta{
			Rotation:  g.Rotation,
			Slot:      g.CurrentSlot,
			DisputeID: d.ID,
			LedgerRef: c.ref,
			Error:     errMsg,
		}),
	}); err != nil {
		return err
	}
	if err := tx.Ajo.IncrementPenaltyCount(c.member.ID); err != nil {
		return err
	}
	body := fmt.Sprintf("You missed your %s contribution to %s. A penalty of %s was charged.", FormatNaira(g.ContributionAmount), g.Title, FormatNaira(penalty))
	if c.err != nil {
		body = fmt.Sprintf("You missed your %s contribution to %s. A penalty of %s is outstanding.", FormatNaira(g.ContributionAmount), g.Title, FormatNaira(penalty))
	}
	ob.add(c.member.UserID, domain.NotifyPenalty, "Missed contribution", body,
		map[string]interface{}{"ajo_id": g.ID, "dispute_id": d.ID, "penalty": penalty})
	if c.err != nil {
		ob.addAdmins(domain.NotifyPenalty, "Penalty not collected",
			fmt.Sprintf("%s could not be charged %s for %s slot %d. Dispute #%d is open.", c.user.FullName(), FormatNaira(penalty), g.Title, g.CurrentSlot, d.ID),
			map[string]interface{}{"ajo_id": g.ID, "user_id": c.member.UserID, "dispute_id": d.ID, "reference": c.ref})
	}
	return nil
}
