package notification

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TypeRoutine      = "routine"
	TypeHandover     = "handover"
	TypeApproval     = "approval"
	TypeRejection    = "rejection"
	TypeAnnouncement = "announcement"
	TypeAttendance   = "attendance"
)

const (
	StateScheduled = "scheduled"
	StateDelivered = "delivered"
)

// Notification is addressed to exactly one of: a user, every holder of a
// role, or everyone (Broadcast). Read state is kept per viewer in ReadBy and
// surfaced to clients as Read.
type Notification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      string             `bson:"user_id,omitempty" json:"userId,omitempty"`
	Role        string             `bson:"role,omitempty" json:"role,omitempty"`
	Broadcast   bool               `bson:"broadcast" json:"broadcast"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Type        string             `bson:"type" json:"type"`
	Ref         map[string]string  `bson:"ref,omitempty" json:"ref,omitempty"`
	ReadBy      []string           `bson:"read_by" json:"-"`
	Read        bool               `bson:"-" json:"read"`
	State       string             `bson:"state" json:"state"`
	SendAt      *time.Time         `bson:"send_at,omitempty" json:"sendAt,omitempty"`
	Email       bool               `bson:"email" json:"email"`
	CreatedBy   string             `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	DeliveredAt *time.Time         `bson:"delivered_at,omitempty" json:"deliveredAt,omitempty"`
}

// Recipient addresses a notification. Exactly one field should be set.
type Recipient struct {
	UserID string
	Role   string
	All    bool
}

func ToUser(id string) Recipient   { return Recipient{UserID: id} }
func ToRole(role string) Recipient { return Recipient{Role: role} }

// Message is an immediate notification raised as a side effect of another
// operation (routine publish, handover decision, ...).
type Message struct {
	To          Recipient
	Title       string
	Description string
	Type        string
	Ref         map[string]string
	Email       bool
	CreatedBy   string
}

// AnnounceRequest is an HOD announcement; a SendAt in the future schedules it.
type AnnounceRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description" validate:"required"`
	UserID      string     `json:"userId"`
	Role        string     `json:"role" validate:"omitempty,oneof=faculty hod"`
	Broadcast   bool       `json:"broadcast"`
	SendAt      *time.Time `json:"sendAt"`
	Email       bool       `json:"email"`
}

// MarkReadRequest names the notification to mark read.
type MarkReadRequest struct {
	NotificationID string `json:"notificationId" validate:"required"`
}

// ListResult is a page of notifications with the unread count.
type ListResult struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int64           `json:"unreadCount"`
}
