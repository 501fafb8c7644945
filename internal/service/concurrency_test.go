package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"ajo/internal/domain"
	"ajo/internal/models"
	"ajo/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestParallelDebitsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, 1, 5000)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.repos.Wallets.Debit(u.ID, 1000)
		}()
	}
	wg.Wait()
	close(errs)

	ok, short := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrInsufficientBalance):
			short++
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	require.Equal(t, 5, ok)
	require.Equal(t, 5, short)
	require.Zero(t, f.balance(t, u.ID))
}

func TestParallelJoinsTakeDistinctSlots(t *testing.T) {
	f := newFixture(t)
	creator := f.user(t, 2, 0)
	g := f.activeGroup(t, creator, 10, 100000)

	joiners := make([]*models.User, 9)
	for i := range joiners {
		joiners[i] = f.user(t, 1, 0)
	}

	var wg sync.WaitGroup
	slots := make(chan int, len(joiners))
	for _, u := range joiners {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			m, err := f.svc.JoinGroup(context.Background(), userID, g.ID)
			if err != nil {
				t.Errorf("join %d: %v", userID, err)
				return
			}
			slots <- m.SlotNumber
		}(u.ID)
	}
	wg.Wait()
	close(slots)

	seen := map[int]bool{}
	for s := range slots {
		require.False(t, seen[s], "slot %d assigned twice", s)
		seen[s] = true
	}
	require.Len(t, seen, len(joiners))

	taken, err := f.repos.Ajo.TakenSlots(g.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, taken)

	_, err = f.svc.JoinGroup(context.Background(), f.user(t, 1, 0).ID, g.ID)
	require.ErrorIs(t, err, ErrGroupFull)
}

func TestSimultaneousPayoutsPayOnce(t *testing.T) {
	f := newFixture(t)
	g, users := fiveMemberGroup(t, f, 200000)
	f.contributeAll(t, g.ID, users...)
	ref := fmt.Sprintf("AP-%d-1-1", g.ID)
	entered, release := f.ledger.holdPrefix(ref)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.ProcessPayout(context.Background(), g.ID)
		done <- err
	}()
	<-entered

	// the first payout is inside its ledger credit
	_, err := f.svc.ProcessPayout(context.Background(), g.ID)
	require.ErrorIs(t, err, ErrPayoutInProgress)
	close(release)
	require.NoError(t, <-done)

	require.Len(t, f.ledger.byRef(ref), 1)
	require.Equal(t, int64(595000), f.balance(t, users[0].ID))
	require.Equal(t, 2, f.group(t, g.ID).CurrentSlot)
}

func TestRacingPayoutsNeverRepeatASlot(t *testing.T) {
	f := newFixture(t)
	g, users := fiveMemberGroup(t, f, 200000)
	f.contributeAll(t, g.ID, users...)

	var wg sync.WaitGroup
	results := make(chan *PayoutResult, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.ProcessPayout(context.Background(), g.ID)
			if err != nil {
				if !errors.Is(err, ErrPayoutInProgress) {
					t.Errorf("payout: %v", err)
				}
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	paid := map[int]bool{}
	for res := range results {
		require.False(t, paid[res.Slot], "slot %d paid twice", res.Slot)
		paid[res.Slot] = true
		require.Len(t, f.ledger.byRef(res.Reference), 1)
	}
	require.NotEmpty(t, paid)
	require.Len(t, f.ledger.byRef(fmt.Sprintf("AP-%d-1-1", g.ID)), 1)

	payouts, err := f.repos.Transactions.ListByAjo(g.ID, domain.TxAjoPayout)
	require.NoError(t, err)
	require.Len(t, payouts, len(paid))
}
