package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ajo/internal/domain"
	"ajo/internal/models"
	"ajo/internal/repository"

	"gorm.io/gorm"
)

// ResolveDispute closes an open dispute. accept marks it resolved, otherwise rejected.
// Only the group creator or a platform admin may resolve.
func (s *AjoService) ResolveDispute(ctx context.Context, actorID, disputeID uint, resolution string, accept bool) (*models.Dispute, error) {
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return nil, ErrValidation.WithMessage("resolution is required")
	}
	status := domain.DisputeStatusRejected
	if accept {
		status = domain.DisputeStatusResolved
	}

	var ob outbox
	var out *models.Dispute
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		d, err := tx.Disputes.GetForUpdate(disputeID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDisputeNotFound
		}
		if err != nil {
			return err
		}
		if d.Status != domain.DisputeStatusOpen {
			return ErrDisputeClosed
		}
		g, err := tx.Ajo.GetByID(d.AjoID)
		if err != nil {
			return err
		}
		if err := s.requireGroupAdmin(tx, g, actorID); err != nil {
			return err
		}
		now := s.now()
		if err := tx.Disputes.Resolve(d.ID, status, resolution, actorID, now); err != nil {
			return err
		}
		d.Status, d.Resolution, d.ResolvedBy, d.ResolvedAt = status, resolution, &actorID, &now
		out = d
		ob.add(d.UserID, domain.NotifyAjo, "Dispute "+status,
			fmt.Sprintf("Your dispute on %s was %s: %s", g.Title, status, resolution),
			map[string]interface{}{"ajo_id": g.ID, "dispute_id": d.ID, "status": status})
		return nil
	})
	if err != nil {
		return nil, internal(err)
	}
	s.flush(&ob)
	return out, nil
}

// ListGroupDisputes is visible to members of the group and platform admins.
func (s *AjoService) ListGroupDisputes(ctx context.Context, viewerID, groupID uint, status string) ([]models.Dispute, error) {
	repos := s.repos.WithContext(ctx)
	if _, err := repos.Ajo.GetByID(groupID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, internal(err)
	}
	if _, err := repos.Ajo.GetMember(groupID, viewerID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal(err)
		}
		viewer, err := repos.Users.GetByID(viewerID)
		if err != nil || !viewer.IsAdmin() {
			return nil, ErrNotAMember
		}
	}
	list, err := repos.Disputes.ListByAjo(groupID, status)
	return list, internal(err)
}

func (s *AjoService) ListUserDisputes(ctx context.Context, userID uint) ([]models.Dispute, error) {
	list, err := s.repos.WithContext(ctx).Disputes.ListByUser(userID)
	return list, internal(err)
}

func (s *AjoService) ListFraudCases(ctx context.Context, status string, page, limit int) ([]models.FraudCase, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, total, err := s.repos.WithContext(ctx).Fraud.List(status, page, limit)
	return list, total, internal(err)
}

// RecordEscalation opens a fraud case for a payout that exhausted its retries.
func (s *AjoService) RecordEscalation(ctx context.Context, groupID uint, attempts int, cause error) error {
	causeMsg := ""
	if cause != nil {
		causeMsg = cause.Error()
	}
	gid := groupID
	fc := &models.FraudCase{
		AjoID:       &gid,
		Type:        domain.FraudPayoutEscalation,
		RiskScore:   80,
		Severity:    domain.SeverityCritical,
		Status:      domain.FraudStatusOpen,
		Description: fmt.Sprintf("Payout for group %d failed after %d attempts", groupID, attempts),
		Metadata: map[string]interface{}{
			"attempts": attempts,
			"error":    causeMsg,
			"code":     errorCode(cause),
		},
	}
	return internal(s.repos.WithContext(ctx).Fraud.Create(fc))
}

func errorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
