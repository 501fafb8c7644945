package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ajo/config"
	"ajo/internal/domain"
	"ajo/internal/models"
	"ajo/internal/repository"
	"ajo/pkg/ledger"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Notifier delivers user-facing messages. Errors are logged by the caller, never propagated.
type Notifier interface {
	Notify(userID uint, notifType, title, body string, data map[string]interface{}) error
	NotifyAdmins(notifType, title, body string, data map[string]interface{}) error
}

// AjoService owns the group state machine: create, join, contribute, leave,
// early exit and payout. Every multi-step operation runs in one database
// transaction; ledger moves made inside a transaction that later fails are reversed.
type AjoService struct {
	repos    *repository.Repositories
	ledger   *ledgerOps
	notifier Notifier
	cfg      config.AjoConfig
	log      zerolog.Logger
	now      func() time.Time
	payouts  *groupGuard
}

func NewAjoService(repos *repository.Repositories, client ledger.Client, notifier Notifier, cfg config.AjoConfig, ledgerTimeout time.Duration, log zerolog.Logger) *AjoService {
	log = log.With().Str("component", "ajo").Logger()
	if ledgerTimeout <= 0 {
		ledgerTimeout = 15 * time.Second
	}
	return &AjoService{
		repos: repos,
		ledger: &ledgerOps{
			client:     client,
			repos:      repos,
			timeout:    ledgerTimeout,
			alertAbove: cfg.ReversalAlertKobo,
			log:        log,
		},
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		payouts:  newGroupGuard(),
	}
}

// SetClock replaces the time source.
func (s *AjoService) SetClock(now func() time.Time) { s.now = now }

type CreateGroupInput struct {
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	ContributionAmount int64     `json:"contribution_amount"`
	Frequency          string    `json:"frequency"`
	Slots              int       `json:"slots"`
	StartDate          time.Time `json:"start_date"`
	EarlySlotsReserved bool      `json:"early_slots_reserved"`
}

func (s *AjoService) CreateGroup(ctx context.Context, creatorID uint, in CreateGroupInput) (*models.AjoGroup, error) {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return nil, ErrValidation.WithMessage("title is required")
	case in.Slots < s.cfg.MinSlots || in.Slots > s.cfg.MaxSlots:
		return nil, ErrValidation.WithMessage(fmt.Sprintf("slots must be between %d and %d", s.cfg.MinSlots, s.cfg.MaxSlots))
	case in.ContributionAmount <= s.cfg.MinContribution:
		return nil, ErrValidation.WithMessage("contribution amount must be greater than " + FormatNaira(s.cfg.MinContribution))
	case !ValidFrequency(in.Frequency):
		return nil, ErrValidation.WithMessage("frequency must be daily, weekly or monthly")
	case in.StartDate.Before(s.now().Add(s.cfg.MinStartLead)):
		return nil, ErrValidation.WithMessage("start date must be at least 24 hours from now")
	}

	var group *models.AjoGroup
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		creator, err := tx.Users.GetByID(creatorID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if creator.ProfileLevel < 2 {
			return ErrValidation.WithMessage("profile level 2 is required to create a group")
		}
		group = &models.AjoGroup{
			Title:              in.Title,
			Description:        in.Description,
			ContributionAmount: in.ContributionAmount,
			Frequency:          in.Frequency,
			Slots:              in.Slots,
			StartDate:          in.StartDate,
			CurrentSlot:        1,
			Rotation:           1,
			Status:             domain.GroupStatusPending,
			EarlySlotsReserved: in.EarlySlotsReserved,
			CreatorID:          creatorID,
		}
		if err := tx.Ajo.Create(group); err != nil {
			return err
		}
		if err := tx.Ajo.CreateMember(&models.AjoMember{
			AjoID:      group.ID,
			UserID:     creatorID,
			SlotNumber: 1,
			IsAdmin:    true,
		}); err != nil {
			return err
		}
		return tx.Users.AddPoints(creatorID, s.cfg.CreatePoints)
	})
	if err != nil {
		return nil, internal(err)
	}
	s.log.Info().Uint("group_id", group.ID).Uint("user_id", creatorID).Msg("group created")
	return group, nil
}

// ActivateGroup opens a pending group, or starts the next rotation of a completed one.
// Only the creator or a platform admin may do this.
func (s *AjoService) ActivateGroup(ctx context.Context, actorID, groupID uint) (*models.AjoGroup, error) {
	var ob outbox
	var group *models.AjoGroup
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		g, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}
		if err := s.requireGroupAdmin(tx, g, actorID); err != nil {
			return err
		}
		switch g.Status {
		case domain.GroupStatusActive:
			return ErrGroupAlreadyActive
		case domain.GroupStatusPending:
			if err := tx.Ajo.UpdateStatus(g.ID, domain.GroupStatusActive); err != nil {
				return err
			}
		case domain.GroupStatusCompleted:
			if err := tx.Ajo.Restart(g.ID, g.Rotation+1, s.now()); err != nil {
				return err
			}
			if err := tx.Ajo.ResetPaid(g.ID); err != nil {
				return err
			}
		}
		group, err = tx.Ajo.GetByID(g.ID)
		if err != nil {
			return err
		}
		members, err := tx.Ajo.ListMembers(g.ID)
		if err != nil {
			return err
		}
		due := NextContributionDate(group)
		for _, m := range members {
			ob.add(m.UserID, domain.NotifyAjo, "Ajo started",
				fmt.Sprintf("%s is now active. First payout is due on %s.", group.Title, due.Format("02 Jan 2006")),
				map[string]interface{}{"ajo_id": group.ID, "rotation": group.Rotation})
		}
		return nil
	})
	if err != nil {
		return nil, internal(err)
	}
	s.flush(&ob)
	return group, nil
}

func (s *AjoService) JoinGroup(ctx context.Context, userID, groupID uint) (*models.AjoMember, error) {
	var ob outbox
	var member *models.AjoMember
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		g, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}
		if !g.IsActive() {
			return ErrGroupUnavailable
		}
		if _, err := tx.Ajo.GetMember(g.ID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		taken, err := tx.Ajo.TakenSlots(g.ID)
		if err != nil {
			return err
		}
		if len(taken) >= g.Slots {
			return ErrGroupFull
		}
		user, err := tx.Users.GetByID(userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		priority := user.ProfileLevel >= 2 && g.EarlySlotsReserved
		slot := assignSlot(taken, g.Slots, priority, s.cfg.ReservedSlots)
		if slot == 0 {
			return ErrGroupFull
		}
		member = &models.AjoMember{AjoID: g.ID, UserID: userID, SlotNumber: slot}
		if err := tx.Ajo.CreateMember(member); err != nil {
			return err
		}
		if admin, err := tx.Ajo.GetAdminMember(g.ID); err == nil {
			ob.add(admin.UserID, domain.NotifyAjo, "New member",
				fmt.Sprintf("%s joined %s in slot %d.", user.FullName(), g.Title, slot),
				map[string]interface{}{"ajo_id": g.ID, "user_id": userID, "slot": slot})
		}
		return nil
	})
	if err != nil {
		return nil, internal(err)
	}
	s.flush(&ob)
	s.log.Info().Uint("group_id", groupID).Uint("user_id", userID).Int("slot", member.SlotNumber).Msg("member joined")
	return member, nil
}

// assignSlot picks the seat for a new member. Priority users take the lowest free
// reserved slot; everyone else gets count+1, or the lowest free slot if that one
// was vacated and re-filled out of order. Returns 0 when nothing is free.
func assignSlot(taken []int, slots int, priority bool, reserved int) int {
	used := make(map[int]bool, len(taken))
	for _, t := range taken {
		used[t] = true
	}
	if priority {
		for i := 1; i <= reserved && i <= slots; i++ {
			if !used[i] {
				return i
			}
		}
	}
	if next := len(taken) + 1; next <= slots && !used[next] {
		return next
	}
	for i := 1; i <= slots; i++ {
		if !used[i] {
			return i
		}
	}
	return 0
}

// Contribute charges the member's contribution plus fee for the current cycle.
// pin is checked only when the user has set a transaction PIN.
func (s *AjoService) Contribute(ctx context.Context, userID, groupID uint, pin string) (*models.Transaction, error) {
	var ob outbox
	var comp compensator
	var record *models.Transaction
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		g, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}
		if !g.IsActive() {
			return ErrGroupNotActive
		}
		m, err := tx.Ajo.GetMemberForUpdate(g.ID, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAMember
		}
		if err != nil {
			return err
		}
		if m.HasPaid {
			return ErrAlreadyContributed
		}
		user, err := tx.Users.GetByID(userID)
		if err != nil {
			return err
		}
		if user.HasPin() {
			if bcrypt.CompareHashAndPassword([]byte(user.TransactionPinHash), []byte(pin)) != nil {
				return ErrInvalidPin
			}
		}

		fee := CalculateFee(g.ContributionAmount)
		total := g.ContributionAmount + fee
		balance, err := tx.Wallets.Balance(userID)
		if err != nil {
			return err
		}
		if balance < total {
			return ErrInsufficientBalance
		}

		ref, err := s.ledger.allocateRef(tx, fmt.Sprintf("AC-%d-%d-%d-%d", g.ID, g.Rotation, g.CurrentSlot, m.ID))
		if err != nil {
			return err
		}
		entry := ledger.Entry{
			UserID:    userID,
			WalletID:  user.VFDWalletID,
			Amount:    total,
			Memo:      "Ajo contribution: " + g.Title,
			Reference: ref,
		}
		if _, err := s.ledger.debit(ctx, entry); err != nil {
			return ErrPaymentProcessingFailed.Wrap(err)
		}
		comp.add(directionDebit, entry, domain.TxAjoContribution, &g.ID)

		if err := tx.Wallets.Debit(userID, total); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientBalance
			}
			return err
		}
		now := s.now()
		if err := tx.Ajo.MarkPaid(m.ID, now); err != nil {
			return err
		}
		record = &models.Transaction{
			UserID:    userID,
			AjoID:     &g.ID,
			Amount:    g.ContributionAmount,
			Fee:       fee,
			Type:      domain.TxAjoContribution,
			Status:    domain.TxStatusSuccess,
			Reference: ref,
			Metadata: models.NewContributionMeta(models.ContributionMeta{
				Rotation:   g.Rotation,
				Slot:       g.CurrentSlot,
				LedgerRef:  ref,
				TotalDebit: total,
			}),
		}
		if err := tx.Transactions.Append(record); err != nil {
			return err
		}
		if err := tx.Users.AddPoints(userID, s.cfg.ContributePoints); err != nil {
			return err
		}
		if admin, err := tx.Ajo.GetAdminMember(g.ID); err == nil {
			ob.add(admin.UserID, domain.NotifyAjo, "New contribution",
				fmt.Sprintf("%s contributed %s to %s.", user.FullName(), FormatNaira(g.ContributionAmount), g.Title),
				map[string]interface{}{"ajo_id": g.ID, "user_id": userID, "reference": ref})
		}
		return nil
	})
	if err != nil {
		s.ledger.compensate(&comp, err)
		return nil, internal(err)
	}
	s.flush(&ob)
	return record, nil
}

// LeaveGroup removes a member who has not contributed in the current cycle.
func (s *AjoService) LeaveGroup(ctx context.Context, userID, groupID uint) error {
	var ob outbox
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		g, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}
		if !g.IsActive() {
			return ErrGroupNotActive
		}
		m, err := tx.Ajo.GetMemberForUpdate(g.ID, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAMember
		}
		if err != nil {
			return err
		}
		if m.HasPaid {
			return ErrCannotLeaveAfterContribution
		}
		if err := tx.Ajo.DeleteMember(m.ID); err != nil {
			return err
		}
		if admin, err := tx.Ajo.GetAdminMember(g.ID); err == nil {
			ob.add(admin.UserID, domain.NotifyAjo, "Member left",
				fmt.Sprintf("The member in slot %d left %s.", m.SlotNumber, g.Title),
				map[string]interface{}{"ajo_id": g.ID, "user_id": userID, "slot": m.SlotNumber})
		}
		return nil
	})
	if err != nil {
		return internal(err)
	}
	s.flush(&ob)
	return nil
}

// EarlyExit removes a member at any point in the cycle after charging the exit penalty.
func (s *AjoService) EarlyExit(ctx context.Context, userID, groupID uint, reason string) (*models.Transaction, error) {
	var ob outbox
	var comp compensator
	var record *models.Transaction
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		g, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}
		if !g.IsActive() {
			return ErrGroupNotActive
		}
		m, err := tx.Ajo.GetMemberForUpdate(g.ID, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAMember
		}
		if err != nil {
			return err
		}
		user, err := tx.Users.GetByID(userID)
		if err != nil {
			return err
		}
		penalty := PercentOf(g.ContributionAmount, s.cfg.EarlyExitPercent)
		balance, err := tx.Wallets.Balance(userID)
		if err != nil {
			return err
		}
		if balance < penalty {
			return ErrInsufficientBalance
		}

		ref, err := s.ledger.allocateRef(tx, fmt.Sprintf("EEP-%d-%d", g.ID, m.ID))
		if err != nil {
			return err
		}
		entry := ledger.Entry{
			UserID:    userID,
			WalletID:  user.VFDWalletID,
			Amount:    penalty,
			Memo:      "Ajo early exit penalty: " + g.Title,
			Reference: ref,
		}
		if _, err := s.ledger.debit(ctx, entry); err != nil {
			return ErrPenaltyChargeFailed.Wrap(err)
		}
		comp.add(directionDebit, entry, domain.TxEarlyExitPenalty, &g.ID)

		if err := tx.Wallets.Debit(userID, penalty); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientBalance
			}
			return err
		}
		record = &models.Transaction{
			UserID:    userID,
			AjoID:     &g.ID,
			Amount:    penalty,
			Type:      domain.TxEarlyExitPenalty,
			Status:    domain.TxStatusSuccess,
			Reference: ref,
			Metadata: models.NewEarlyExitMeta(models.EarlyExitMeta{
				Reason:     reason,
				SlotNumber: m.SlotNumber,
				LedgerRef:  ref,
			}),
		}
		if err := tx.Transactions.Append(record); err != nil {
			return err
		}
		if err := tx.Ajo.DeleteMember(m.ID); err != nil {
			return err
		}
		if admin, err := tx.Ajo.GetAdminMember(g.ID); err == nil {
			ob.add(admin.UserID, domain.NotifyAjo, "Early exit",
				fmt.Sprintf("%s exited %s early. Reason: %s", user.FullName(), g.Title, reason),
				map[string]interface{}{"ajo_id": g.ID, "user_id": userID, "penalty": penalty})
		}
		return nil
	})
	if err != nil {
		s.ledger.compensate(&comp, err)
		return nil, internal(err)
	}
	s.flush(&ob)
	return record, nil
}

// GroupView is a group with the caller's membership and the upcoming dates.
type GroupView struct {
	Group                *models.AjoGroup `json:"group"`
	IsMember             bool             `json:"is_member"`
	MemberCount          int              `json:"member_count"`
	Fee                  int64            `json:"fee"`
	NextContributionDate time.Time        `json:"next_contribution_date"`
	NextPayoutDate       time.Time        `json:"next_payout_date"`
}

func (s *AjoService) GetGroup(ctx context.Context, viewerID, groupID uint) (*GroupView, error) {
	repos := s.repos.WithContext(ctx)
	g, err := repos.Ajo.GetWithMembers(groupID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, internal(err)
	}
	view := &GroupView{
		Group:                g,
		MemberCount:          len(g.Members),
		Fee:                  CalculateFee(g.ContributionAmount),
		NextContributionDate: NextContributionDate(g),
		NextPayoutDate:       NextPayoutDate(g),
	}
	for _, m := range g.Members {
		if m.UserID == viewerID {
			view.IsMember = true
			break
		}
	}
	return view, nil
}

func (s *AjoService) ListUserGroups(ctx context.Context, userID uint, status string) ([]models.AjoGroup, error) {
	list, err := s.repos.WithContext(ctx).Ajo.ListByUser(userID, status)
	return list, internal(err)
}

func (s *AjoService) SearchGroups(ctx context.Context, f repository.GroupFilter) ([]models.AjoGroup, int64, error) {
	list, total, err := s.repos.WithContext(ctx).Ajo.SearchActive(f)
	return list, total, internal(err)
}

// SetTransactionPin stores a bcrypt hash of a 4 to 6 digit PIN.
func (s *AjoService) SetTransactionPin(ctx context.Context, userID uint, pin string) error {
	if len(pin) < 4 || len(pin) > 6 || strings.Trim(pin, "0123456789") != "" {
		return ErrValidation.WithMessage("PIN must be 4 to 6 digits")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return internal(err)
	}
	return internal(s.repos.WithContext(ctx).Users.SetTransactionPin(userID, string(hash)))
}

func lockGroup(tx *repository.Repositories, id uint) (*models.AjoGroup, error) {
	g, err := tx.Ajo.GetForUpdate(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGroupNotFound
	}
	return g, err
}

func (s *AjoService) requireGroupAdmin(tx *repository.Repositories, g *models.AjoGroup, actorID uint) error {
	if g.CreatorID == actorID {
		return nil
	}
	actor, err := tx.Users.GetByID(actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrForbidden
		}
		return err
	}
	if !actor.IsAdmin() {
		return ErrForbidden.WithMessage("only the group creator can do this")
	}
	return nil
}

// outbox collects notifications inside a transaction; they are sent only after commit.
type outbox struct {
	notices []notice
}

type notice struct {
	userID    uint
	toAdmins  bool
	notifType string
	title     string
	body      string
	data      map[string]interface{}
}

func (o *outbox) add(userID uint, notifType, title, body string, data map[string]interface{}) {
	o.notices = append(o.notices, notice{userID: userID, notifType: notifType, title: title, body: body, data: data})
}

func (o *outbox) addAdmins(notifType, title, body string, data map[string]interface{}) {
	o.notices = append(o.notices, notice{toAdmins: true, notifType: notifType, title: title, body: body, data: data})
}

func (s *AjoService) flush(o *outbox) {
	if s.notifier == nil {
		return
	}
	for _, n := range o.notices {
		var err error
		if n.toAdmins {
			err = s.notifier.NotifyAdmins(n.notifType, n.title, n.body, n.data)
		} else {
			err = s.notifier.Notify(n.userID, n.notifType, n.title, n.body, n.data)
		}
		if err != nil {
			s.log.Warn().Err(err).Uint("user_id", n.userID).Str("type", n.notifType).Msg("notification not delivered")
		}
	}
	o.notices = nil
}

// groupGuard allows one payout per group at a time within this process.
type groupGuard struct {
	mu   sync.Mutex
	busy map[uint]struct{}
}

func newGroupGuard() *groupGuard {
	return &groupGuard{busy: make(map[uint]struct{})}
}

func (g *groupGuard) acquire(id uint) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[id]; ok {
		return false
	}
	g.busy[id] = struct{}{}
	return true
}

func (g *groupGuard) release(id uint) {
	g.mu.Lock()
	delete(g.busy, id)
	g.mu.Unlock()
}
