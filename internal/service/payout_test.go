package service

import (
	"context"
	"fmt"
	"testing"

	"ajo/internal/domain"
	"ajo/internal/models"

	"github.com/stretchr/testify/require"
)

// fiveMemberGroup returns an active five-slot group of ₦1,000 contributions.
// The creator holds slot 1.
func fiveMemberGroup(t *testing.T, f *fixture, balance int64) (*models.AjoGroup, []*models.User) {
	t.Helper()
	creator := f.user(t, 2, balance)
	users := []*models.User{creator}
	for i := 0; i < 4; i++ {
		users = append(users, f.user(t, 1, balance))
	}
	g := f.activeGroup(t, creator, 5, 100000, users[1:]...)
	return g, users
}

func TestProcessPayoutAllPaid(t *testing.T) {
	f := newFixture(t)
	g, users := fiveMemberGroup(t, f, 200000)
	f.contributeAll(t, g.ID, users...)

	res, err := f.svc.ProcessPayout(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, users[0].ID, res.RecipientID)
	require.Equal(t, int64(500000), res.Amount)
	require.Empty(t, res.Defaulters)
	require.Equal(t, 2, res.NextSlot)
	require.Equal(t, domain.GroupStatusActive, res.Status)
	require.Equal(t, fmt.Sprintf("AP-%d-1-1", g.ID), res.Reference)

	// 200000 - 105000 contributed + 500000 received
	require.Equal(t, int64(595000), f.balance(t, users[0].ID))
	moves := f.ledger.byRef(res.Reference)
	require.Len(t, moves, 1)
	require.Equal(t, directionCredit, moves[0].direction)
	require.Equal(t, int64(500000), moves[0].entry.Amount)

	after := f.group(t, g.ID)
	require.Equal(t, 2, after.CurrentSlot)
	require.Equal(t, domain.GroupStatusActive, after.Status)
	members, err := f.repos.Ajo.ListMembers(g.ID)
	require.NoError(t, err)
	for _, m := range members {
		require.False(t, m.HasPaid, "member %d still marked paid", m.UserID)
	}

	recipient, err := f.repos.Users.GetByID(users[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.WithdrawalActive, recipient.WithdrawalStatus)

	payout, err := f.repos.Transactions.GetByReference(res.Reference)
	require.NoError(t, err)
	require.Equal(t, domain.TxAjoPayout, payout.Type)
	meta := payout.Metadata.Data()
	require.Equal(t, 5, meta.Payout.MemberCount)
	require.Zero(t, meta.Payout.DefaulterCount)

	require.Equal(t, 1, f.notes.ofType(users[0].ID, domain.NotifyPayout))
}

func TestProcessPayoutWithDefaulter(t *testing.T) {
	f := newFixture(t)
	g, users := fiveMemberGroup(t, f, 200000)
	defaulter := users[4]
	f.contributeAll(t, g.ID, users[:4]...)

	res, err := f.svc.ProcessPayout(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, int64(490000), res.Amount)
	require.Equal(t, int64(10000), res.PenaltyAmount)
	require.Equal(t, []uint{defaulter.ID}, res.Defaulters)
	require.Empty(t, res.PenaltiesFailed)

	require.Equal(t, int64(190000), f.balance(t, defaulter.ID))
	penRef := fmt.Sprintf("PEN-%d-1-1-%d", g.ID, defaulter.ID)
	moves := f.ledger.byRef(penRef)
	require.Len(t, moves, 1)
	require.Equal(t, directionDebit, moves[0].direction)
	require.Equal(t, int64(10000), moves[0].entry.Amount)

	disputes, err := f.repos.Disputes.ListByAjo(g.ID, "")
	require.NoError(t, err)
	require.Len(t, disputes, 1)
	require.Equal(t, defaulter.ID, disputes[0].UserID)
	require.Equal(t, domain.DisputeStatusOpen, disputes[0].Status)
	require.Equal(t, domain.DisputeMissedContribution, disputes[0].Type)

	penalty, err := f.repos.Transactions.GetByReference(penRef)
	require.NoError(t, err)
	require.Equal(t, domain.TxPenalty, penalty.Type)
	require.Equal(t, domain.TxStatusSuccess, penalty.Status)
	require.Equal(t, disputes[0].ID, penalty.Metadata.Data().Penalty.DisputeID)

	m, err := f.repos.Ajo.GetMember(g.ID, defaulter.ID)
	require.NoError(t, err)
	require.Equal(t, 1, m.PenaltyCount)
	require.Equal(t, 1, f.notes.ofType(defaulter.ID, domain.NotifyPenalty))
}

func TestProcessPayoutPenaltyDeclined(t *testing.T) {
	f := newFixture(t)
	g, users := fiveMemberGroup(t, f, 200000)
	defaulter := users[4]
	f.contributeAll(t, g.ID, users[:4]...)
	f.ledger.failPrefix("PEN-")

	res, err := f.svc.ProcessPayout(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, int64(490000), res.Amount)
	require.Equal(t, []uint{defaulter.ID}, res.PenaltiesFailed)

	// the local debit is refunded when the ledger refuses the penalty
	require.Equal(t, int64(200000), f.balance(t, defaulter.ID))

	penalty, err := f.repos.Transactions.GetByReference(fmt.Sprintf("PEN-%d-1-1-%d", g.ID, defaulter.ID))
	require.NoError(t, err)
	require.Equal(t, domain.TxStatusFailed, penalty.Status)
	require.NotEmpty(t, penalty.Metadata.Data().Penalty.Error)

	disputes, err := f.repos.Disputes.ListByAjo(g.ID, domain.DisputeStatusOpen)
	require.NoError(t, err)
	require.Len(t, disputes, 1)
	require.Equal(t, 1, f.notes.ofType(defaulter.ID, domain.NotifyPenalty))
	require.Equal(t, 1, f.notes.toAdmins(domain.NotifyPenalty))
}

func TestProcessPayoutDefaulterWithoutFunds(t *testing.T) {
	f := newFixture(t)
	g, users := fiveMemberGroup(t, f, 200000)
	broke := users[3]
	f.contributeAll(t, g.ID, users[0], users[1], users[2], users[4])
	require.NoError(t, f.repos.Wallets.Debit(broke.ID, 195000))

	res, err := f.svc.ProcessPayout(context.Background(), g.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{broke.ID}, res.PenaltiesFailed)
	require.Equal(t, int64(5000), f.balance(t, broke.ID))
	require.Zero(t, f.ledger.count("PEN-"))
}

func TestProcessPayoutLedgerFailureLeavesState(t *testing.T) {
	f := newFixture(t)
	g, users := fiveMemberGroup(t, f, 200000)
	f.contributeAll(t, g.ID, users[:4]...)
	f.ledger.failPrefix("AP-")

	_, err := f.svc.ProcessPayout(context.Background(), g.ID)
	require.ErrorIs(t, err, ErrPayoutFailed)
	require.Equal(t, KindExternal, KindOf(err))

	after := f.group(t, g.ID)
	require.Equal(t, 1, after.CurrentSlot)
	require.Equal(t, domain.GroupStatusActive, after.Status)

	paid, err := f.repos.Ajo.GetMember(g.ID, users[0].ID)
	require.NoError(t, err)
	require.True(t, paid.HasPaid)

	require.Equal(t, int64(95000), f.balance(t, users[0].ID))
	require.Equal(t, int64(200000), f.balance(t, users[4].ID))
	require.Zero(t, f.ledger.count("PEN-"))

	disputes, err := f.repos.Disputes.ListByAjo(g.ID, "")
	require.NoError(t, err)
	require.Empty(t, disputes)
}

func TestProcessPayoutReversesLedgerOnRollback(t *testing.T) {
	f := newFixture(t)
	f.svc.ledger.alertAbove = 100000
	g, users := fiveMemberGroup(t, f, 200000)
	f.contributeAll(t, g.ID, users...)

	// the payout row insert fails after the ledger credit went through
	ref := fmt.Sprintf("AP-%d-1-1", g.ID)
	require.NoError(t, f.repos.DB().Exec(`CREATE TRIGGER block_payout BEFORE INSERT ON transactions
		WHEN NEW.type = 'ajo_payout' BEGIN SELECT RAISE(ABORT, 'payout insert blocked'); END`).Error)

	_, err := f.svc.ProcessPayout(context.Background(), g.ID)
	require.Error(t, err)
	require.Equal(t, KindInternal, KindOf(err))

	rev := f.ledger.byRef("REV-" + ref)
	require.Len(t, rev, 1)
	require.Equal(t, directionDebit, rev[0].direction)
	require.Equal(t, int64(500000), rev[0].entry.Amount)

	record, err := f.repos.Transactions.GetByReference("REV-" + ref)
	require.NoError(t, err)
	require.Equal(t, domain.TxReversal, record.Type)
	require.Equal(t, domain.TxStatusSuccess, record.Status)
	require.Equal(t, ref, record.Metadata.Data().Reversal.OriginalRef)

	cases, total, err := f.repos.Fraud.List(domain.FraudStatusOpen, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, domain.FraudLargeReversal, cases[0].Type)

	require.Equal(t, 1, f.group(t, g.ID).CurrentSlot)
	require.Equal(t, int64(95000), f.balance(t, users[0].ID))

	// the next attempt must not collide with the reversed reference
	next, err := f.svc.ledger.allocateRef(f.repos, ref)
	require.NoError(t, err)
	require.Equal(t, ref+"-R1", next)
}

func TestProcessPayoutCompletesRotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, users := fiveMemberGroup(t, f, 1000000)

	for slot := 1; slot <= 5; slot++ {
		f.contributeAll(t, g.ID, users...)
		res, err := f.svc.ProcessPayout(ctx, g.ID)
		require.NoError(t, err)
		require.Equal(t, slot, res.Slot)
		require.Equal(t, users[slot-1].ID, res.RecipientID)
	}

	done := f.group(t, g.ID)
	require.Equal(t, domain.GroupStatusCompleted, done.Status)
	require.Equal(t, 1, done.CurrentSlot)
	require.Equal(t, 1, done.Rotation)

	_, err := f.svc.ProcessPayout(ctx, g.ID)
	require.ErrorIs(t, err, ErrGroupNotActive)

	restarted, err := f.svc.ActivateGroup(ctx, users[0].ID, g.ID)
	require.NoError(t, err)
	require.Equal(t, domain.GroupStatusActive, restarted.Status)
	require.Equal(t, 2, restarted.Rotation)
	require.Equal(t, 1, restarted.CurrentSlot)

	// rotation 2 references do not collide with rotation 1
	f.contributeAll(t, g.ID, users[0])
	tx, err := f.repos.Transactions.ListByAjo(g.ID, domain.TxAjoContribution)
	require.NoError(t, err)
	require.Len(t, tx, 26)
}

func TestProcessPayoutNoRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, users := fiveMemberGroup(t, f, 1000000)
	f.contributeAll(t, g.ID, users...)
	_, err := f.svc.ProcessPayout(ctx, g.ID)
	require.NoError(t, err)

	// the slot 2 holder walks out before contributing to cycle 2
	require.NoError(t, f.svc.LeaveGroup(ctx, users[1].ID, g.ID))

	_, err = f.svc.ProcessPayout(ctx, g.ID)
	require.ErrorIs(t, err, ErrNoRecipientForSlot)
	require.Equal(t, KindDataIntegrity, KindOf(err))
}

func TestProcessPayoutNonPositivePot(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.PenaltyPercent = 100
	g, _ := fiveMemberGroup(t, f, 0)

	_, err := f.svc.ProcessPayout(context.Background(), g.ID)
	require.ErrorIs(t, err, ErrInvalidPayoutAmount)
	require.Equal(t, KindDataIntegrity, KindOf(err))
	require.Zero(t, f.ledger.count("AP-"))
	require.Equal(t, 1, f.group(t, g.ID).CurrentSlot)
}

func TestProcessPayoutInProgress(t *testing.T) {
	f := newFixture(t)
	g, _ := fiveMemberGroup(t, f, 0)
	require.True(t, f.svc.payouts.acquire(g.ID))
	defer f.svc.payouts.release(g.ID)

	_, err := f.svc.ProcessPayout(context.Background(), g.ID)
	require.ErrorIs(t, err, ErrPayoutInProgress)
}

func TestResolveDispute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, users := fiveMemberGroup(t, f, 200000)
	f.contributeAll(t, g.ID, users[:4]...)
	_, err := f.svc.ProcessPayout(ctx, g.ID)
	require.NoError(t, err)

	disputes, err := f.svc.ListGroupDisputes(ctx, users[2].ID, g.ID, "")
	require.NoError(t, err)
	require.Len(t, disputes, 1)
	id := disputes[0].ID

	outsider := f.user(t, 1, 0)
	_, err = f.svc.ListGroupDisputes(ctx, outsider.ID, g.ID, "")
	require.ErrorIs(t, err, ErrNotAMember)

	_, err = f.svc.ResolveDispute(ctx, users[1].ID, id, "paid in cash", true)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.ResolveDispute(ctx, users[0].ID, id, "  ", true)
	require.ErrorIs(t, err, ErrValidation)

	d, err := f.svc.ResolveDispute(ctx, users[0].ID, id, "paid in cash", true)
	require.NoError(t, err)
	require.Equal(t, domain.DisputeStatusResolved, d.Status)

	_, err = f.svc.ResolveDispute(ctx, users[0].ID, id, "again", false)
	require.ErrorIs(t, err, ErrDisputeClosed)
	_, err = f.svc.ResolveDispute(ctx, users[0].ID, 777, "x", false)
	require.ErrorIs(t, err, ErrDisputeNotFound)
}

func TestRecordEscalation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.RecordEscalation(context.Background(), 12, 4, ErrPayoutFailed.Wrap(fmt.Errorf("timeout"))))

	cases, total, err := f.svc.ListFraudCases(context.Background(), "", 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, domain.FraudPayoutEscalation, cases[0].Type)
	require.Equal(t, domain.SeverityCritical, cases[0].Severity)
	require.Equal(t, "PAYOUT_FAILED", cases[0].Metadata["code"])
}
