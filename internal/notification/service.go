package notification

import (
	"context"
	"fmt"
	"html"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ClassRoutineTracker/internal/config"
	"ClassRoutineTracker/internal/core"
	"ClassRoutineTracker/internal/live"
	"ClassRoutineTracker/internal/metrics"
)

const defaultListLimit = 50

// Store is the persistence the notification service needs.
type Store interface {
	CreateNotification(ctx context.Context, n *Notification) error
	List(ctx context.Context, viewer core.Actor, unreadOnly bool, limit int64) ([]*Notification, error)
	CountUnread(ctx context.Context, viewer core.Actor) (int64, error)
	MarkRead(ctx context.Context, id string, viewer core.Actor) error
	MarkAllRead(ctx context.Context, viewer core.Actor) (int64, error)
	Due(ctx context.Context, now time.Time) ([]*Notification, error)
	MarkDelivered(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
}

// Publisher pushes events to connected clients; *live.Hub implements it.
type Publisher interface {
	Publish(t live.Target, e live.Event)
}

// Directory resolves recipients to email addresses.
type Directory interface {
	EmailsFor(ctx context.Context, userID, role string, all bool) ([]string, error)
}

// NotificationService creates, delivers and lists notifications.
type NotificationService struct {
	repo      Store
	publisher Publisher
	directory Directory
	mailer    config.Mailer
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService creates a new service for notifications.
func NewNotificationService(repo Store, publisher Publisher, directory Directory, mailer config.Mailer, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:      repo,
		publisher: publisher,
		directory: directory,
		mailer:    mailer,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores and delivers a notification immediately. Calling it twice
// creates two notifications.
func (s *NotificationService) Create(ctx context.Context, msg Message) (*Notification, error) {
	if msg.To == (Recipient{}) {
		return nil, core.NewValidationError("notification needs a recipient")
	}
	now := s.now()
	n := &Notification{
		UserID:      msg.To.UserID,
		Role:        msg.To.Role,
		Broadcast:   msg.To.All,
		Title:       msg.Title,
		Description: msg.Description,
		Type:        msg.Type,
		Ref:         msg.Ref,
		State:       StateDelivered,
		Email:       msg.Email,
		CreatedBy:   msg.CreatedBy,
		CreatedAt:   now,
		DeliveredAt: &now,
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	metrics.NotificationsCreated.WithLabelValues(n.Type).Inc()
	s.deliver(ctx, n)
	return n, nil
}

// Announce publishes an HOD announcement to one user, a role, or everyone.
// Announcements with a future SendAt are stored as scheduled and delivered by
// DispatchDue.
func (s *NotificationService) Announce(ctx context.Context, hod core.Actor, req AnnounceRequest) (*Notification, error) {
	if !hod.IsHOD() {
		return nil, core.Forbidden("only an HOD can send announcements")
	}
	to := Recipient{UserID: req.UserID, Role: req.Role, All: req.Broadcast}
	switch {
	case to.All:
		to = Recipient{All: true}
	case to.UserID != "":
		to = Recipient{UserID: to.UserID}
	case to.Role != "":
		to = Recipient{Role: to.Role}
	default:
		to = Recipient{All: true}
	}
	msg := Message{
		To:          to,
		Title:       req.Title,
		Description: req.Description,
		Type:        TypeAnnouncement,
		Email:       req.Email,
		CreatedBy:   hod.ID,
	}

	now := s.now()
	if req.SendAt == nil || !req.SendAt.After(now) {
		return s.Create(ctx, msg)
	}

	sendAt := req.SendAt.UTC()
	n := &Notification{
		UserID:      to.UserID,
		Role:        to.Role,
		Broadcast:   to.All,
		Title:       msg.Title,
		Description: msg.Description,
		Type:        msg.Type,
		State:       StateScheduled,
		SendAt:      &sendAt,
		Email:       msg.Email,
		CreatedBy:   msg.CreatedBy,
		CreatedAt:   now,
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	s.logger.Info("announcement scheduled", zap.String("notification_id", n.ID.Hex()), zap.Time("send_at", sendAt))
	return n, nil
}

// DispatchDue delivers scheduled announcements whose send time has passed and
// returns how many this call delivered.
func (s *NotificationService) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.Due(ctx, now)
	if err != nil {
		return 0, err
	}
	var errs error
	delivered := 0
	for _, n := range due {
		ok, err := s.repo.MarkDelivered(ctx, n.ID, now)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		n.State = StateDelivered
		n.DeliveredAt = &now
		n.CreatedAt = now
		metrics.NotificationsCreated.WithLabelValues(n.Type).Inc()
		s.deliver(ctx, n)
		delivered++
	}
	return delivered, errs
}

// MarkRead marks one notification read for viewer.
func (s *NotificationService) MarkRead(ctx context.Context, id string, viewer core.Actor) error {
	return s.repo.MarkRead(ctx, id, viewer)
}

// MarkAllRead marks everything visible to viewer as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, viewer core.Actor) (int64, error) {
	return s.repo.MarkAllRead(ctx, viewer)
}

// List returns the viewer's notifications, newest first, with Read resolved
// for that viewer.
func (s *NotificationService) List(ctx context.Context, viewer core.Actor, unreadOnly bool, limit int64) (*ListResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	items, err := s.repo.List(ctx, viewer, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Notification{}
	}
	for _, n := range items {
		n.Read = containsString(n.ReadBy, viewer.ID)
	}
	return &ListResult{Notifications: items, UnreadCount: unread}, nil
}

// deliver pushes the live event and mirrors by email. Failures are logged;
// the stored document is what clients rely on.
func (s *NotificationService) deliver(ctx context.Context, n *Notification) {
	target := live.Target{UserID: n.UserID, Role: n.Role, All: n.Broadcast}
	s.publisher.Publish(target, live.Event{Type: live.EventNotification, Payload: n})

	if !n.Email {
		return
	}
	var errs error
	emails, err := s.directory.EmailsFor(ctx, n.UserID, n.Role, n.Broadcast)
	errs = multierr.Append(errs, err)
	if len(emails) > 0 {
		body := fmt.Sprintf("<h3>%s</h3><p>%s</p>", html.EscapeString(n.Title), html.EscapeString(n.Description))
		errs = multierr.Append(errs, s.mailer.Send(ctx, emails, n.Title, body))
	}
	if errs != nil {
		s.logger.Warn("notification email mirror failed", zap.String("notification_id", n.ID.Hex()), zap.Error(errs))
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
