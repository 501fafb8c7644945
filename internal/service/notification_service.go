package service

import (
	"context"
	"errors"
	"time"

	"ajo/internal/domain"
	"ajo/internal/models"
	"ajo/internal/repository"
	"ajo/pkg/sms"

	"github.com/rs/zerolog"
)

// Broadcaster pushes a payload to a user's live connections.
type Broadcaster interface {
	BroadcastToUser(userID uint, payload interface{})
}

var errNoOpsPhone = errors.New("operations phone not configured")

// NotificationService stores a notification and fans it out to websocket, push and SMS.
// Delivery failures after the row is stored are logged and never returned.
type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	fcm      *FCMService
	hub      Broadcaster
	sms      sms.Sender
	opsPhone string
	log      zerolog.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, fcm *FCMService, hub Broadcaster, sender sms.Sender, opsPhone string, log zerolog.Logger) *NotificationService {
	if sender == nil {
		sender = sms.Noop{}
	}
	return &NotificationService{
		repo:     repo,
		userRepo: userRepo,
		fcm:      fcm,
		hub:      hub,
		sms:      sender,
		opsPhone: opsPhone,
		log:      log.With().Str("component", "notifications").Logger(),
	}
}

func (s *NotificationService) Notify(userID uint, notifType, title, body string, data map[string]interface{}) error {
	n := &models.Notification{
		UserID: userID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   data,
	}
	if err := s.repo.Create(n); err != nil {
		return err
	}
	if s.hub != nil {
		s.hub.BroadcastToUser(userID, map[string]interface{}{"type": "notification", "notification": n})
	}
	s.deliver(userID, notifType, title, body, data)
	return nil
}

// NotifyAdmins sends the notification to every platform admin.
func (s *NotificationService) NotifyAdmins(notifType, title, body string, data map[string]interface{}) error {
	admins, err := s.userRepo.ListAdmins()
	if err != nil {
		return err
	}
	var errs []error
	for _, a := range admins {
		if err := s.Notify(a.ID, notifType, title, body, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AlertOps sends an out-of-band SMS to the operations contact.
func (s *NotificationService) AlertOps(ctx context.Context, message string) error {
	if s.opsPhone == "" {
		return errNoOpsPhone
	}
	return s.sms.Send(ctx, s.opsPhone, message)
}

func (s *NotificationService) deliver(userID uint, notifType, title, body string, data map[string]interface{}) {
	if s.userRepo == nil {
		return
	}
	u, err := s.userRepo.GetByID(userID)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if u.FCMToken != "" {
		if err := s.fcm.SendToUser(ctx, u.FCMToken, notifType, title, body, data); err != nil {
			s.log.Warn().Err(err).Uint("user_id", userID).Msg("push failed")
		}
	}
	if (notifType == domain.NotifyPenalty || notifType == domain.NotifyPayout) && u.Phone != "" {
		if err := s.sms.Send(ctx, u.Phone, title+": "+body); err != nil {
			s.log.Warn().Err(err).Uint("user_id", userID).Msg("sms failed")
		}
	}
}
