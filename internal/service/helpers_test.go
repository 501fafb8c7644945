package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ajo/config"
	"ajo/internal/database"
	"ajo/internal/domain"
	"ajo/internal/models"
	"ajo/internal/repository"
	"ajo/pkg/ledger"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeMove struct {
	direction string
	entry     ledger.Entry
}

// fakeLedger records successful moves and declines any reference starting with a failing prefix.
type fakeLedger struct {
	mu      sync.Mutex
	failing []string
	moves   []fakeMove

	// set before any goroutine calls the ledger
	hold    string
	entered chan struct{}
	release chan struct{}
}

// holdPrefix makes calls whose reference starts with prefix signal entered and
// then block until release is closed.
func (f *fakeLedger) holdPrefix(prefix string) (entered <-chan struct{}, release chan<- struct{}) {
	f.hold = prefix
	f.entered = make(chan struct{}, 8)
	f.release = make(chan struct{})
	return f.entered, f.release
}

func (f *fakeLedger) failPrefix(prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = append(f.failing, prefix)
}

func (f *fakeLedger) Debit(ctx context.Context, e ledger.Entry) (*ledger.Receipt, error) {
	return f.apply(directionDebit, e)
}

func (f *fakeLedger) Credit(ctx context.Context, e ledger.Entry) (*ledger.Receipt, error) {
	return f.apply(directionCredit, e)
}

func (f *fakeLedger) apply(direction string, e ledger.Entry) (*ledger.Receipt, error) {
	if f.hold != "" && strings.HasPrefix(e.Reference, f.hold) {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.failing {
		if strings.HasPrefix(e.Reference, p) {
			return nil, ledger.ErrDeclined
		}
	}
	f.moves = append(f.moves, fakeMove{direction: direction, entry: e})
	return &ledger.Receipt{Reference: e.Reference, ProviderRef: "fake-" + e.Reference}, nil
}

func (f *fakeLedger) byRef(ref string) []fakeMove {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeMove
	for _, m := range f.moves {
		if m.entry.Reference == ref {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeLedger) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.moves {
		if strings.HasPrefix(m.entry.Reference, prefix) {
			n++
		}
	}
	return n
}

type sentNotice struct {
	userID    uint
	toAdmins  bool
	notifType string
	title     string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (n *fakeNotifier) Notify(userID uint, notifType, title, body string, data map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{userID: userID, notifType: notifType, title: title})
	return nil
}

func (n *fakeNotifier) NotifyAdmins(notifType, title, body string, data map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{toAdmins: true, notifType: notifType, title: title})
	return nil
}

func (n *fakeNotifier) ofType(userID uint, notifType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.userID == userID && s.notifType == notifType {
			c++
		}
	}
	return c
}

func (n *fakeNotifier) toAdmins(notifType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.toAdmins && s.notifType == notifType {
			c++
		}
	}
	return c
}

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testAjoConfig() config.AjoConfig {
	return config.AjoConfig{
		MinContribution:   10000,
		MinSlots:          5,
		MaxSlots:          30,
		MinStartLead:      24 * time.Hour,
		ReservedSlots:     5,
		PenaltyPercent:    10,
		EarlyExitPercent:  50,
		CreatePoints:      25,
		ContributePoints:  5,
		ReversalAlertKobo: 10000000,
	}
}

type fixture struct {
	svc    *AjoService
	repos  *repository.Repositories
	ledger *fakeLedger
	notes  *fakeNotifier
	users  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewTestDB(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	repos := repository.New(db)
	fl := &fakeLedger{}
	fn := &fakeNotifier{}
	svc := NewAjoService(repos, fl, fn, testAjoConfig(), time.Second, zerolog.Nop())
	svc.SetClock(func() time.Time { return testNow })
	return &fixture{svc: svc, repos: repos, ledger: fl, notes: fn}
}

// user creates a user with a provisioned bank wallet and the given local balance.
func (f *fixture) user(t *testing.T, level int, balance int64) *models.User {
	t.Helper()
	f.users++
	walletID := fmt.Sprintf("vfd-%d", f.users)
	u := &models.User{
		Email:            fmt.Sprintf("member%d@example.com", f.users),
		FirstName:        fmt.Sprintf("Member%d", f.users),
		Role:             domain.RoleUser,
		ProfileLevel:     level,
		WithdrawalStatus: domain.WithdrawalInactive,
		VFDWalletID:      &walletID,
	}
	require.NoError(t, f.repos.Users.Create(u))
	_, err := f.repos.Wallets.GetOrCreate(u.ID)
	require.NoError(t, err)
	if balance > 0 {
		require.NoError(t, f.repos.Wallets.Credit(u.ID, balance))
	}
	return u
}

// activeGroup creates and activates a group owned by creator, then joins members in order.
func (f *fixture) activeGroup(t *testing.T, creator *models.User, slots int, amount int64, members ...*models.User) *models.AjoGroup {
	t.Helper()
	ctx := context.Background()
	g, err := f.svc.CreateGroup(ctx, creator.ID, CreateGroupInput{
		Title:              "Market Women Circle",
		ContributionAmount: amount,
		Frequency:          domain.FrequencyWeekly,
		Slots:              slots,
		StartDate:          testNow.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	_, err = f.svc.ActivateGroup(ctx, creator.ID, g.ID)
	require.NoError(t, err)
	for _, m := range members {
		_, err := f.svc.JoinGroup(ctx, m.ID, g.ID)
		require.NoError(t, err)
	}
	return f.group(t, g.ID)
}

func (f *fixture) group(t *testing.T, id uint) *models.AjoGroup {
	t.Helper()
	g, err := f.repos.Ajo.GetByID(id)
	require.NoError(t, err)
	return g
}

func (f *fixture) balance(t *testing.T, userID uint) int64 {
	t.Helper()
	b, err := f.repos.Wallets.Balance(userID)
	require.NoError(t, err)
	return b
}

func (f *fixture) contributeAll(t *testing.T, groupID uint, users ...*models.User) {
	t.Helper()
	for _, u := range users {
		_, err := f.svc.Contribute(context.Background(), u.ID, groupID, "")
		require.NoError(t, err)
	}
}
