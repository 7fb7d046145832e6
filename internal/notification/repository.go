package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ClassRoutineTracker/internal/core"
)

// NotificationRepository stores notifications.
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new repository for notifications.
func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{collection: db.Collection("notifications")}
}

// visibleTo matches delivered notifications addressed to the viewer directly,
// to any role the viewer holds, or to everyone. Faculty-wide notifications
// reach HODs too.
func visibleTo(viewer core.Actor) bson.M {
	return bson.M{
		"state": StateDelivered,
		"$or": bson.A{
			bson.M{"user_id": viewer.ID},
			bson.M{"role": bson.M{"$in": viewer.Roles()}},
			bson.M{"broadcast": true},
		},
	}
}

// CreateNotification stores n, assigning an id when missing.
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.ReadBy == nil {
		n.ReadBy = []string{}
	}
	if _, err := r.collection.InsertOne(ctx, n); err != nil {
		return errors.Wrap(err, "insert notification")
	}
	return nil
}

// List returns notifications visible to viewer, newest first.
func (r *NotificationRepository) List(ctx context.Context, viewer core.Actor, unreadOnly bool, limit int64) ([]*Notification, error) {
	filter := visibleTo(viewer)
	if unreadOnly {
		filter["read_by"] = bson.M{"$ne": viewer.ID}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	var out []*Notification
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode notifications")
	}
	return out, nil
}

// CountUnread counts visible notifications viewer has not read.
func (r *NotificationRepository) CountUnread(ctx context.Context, viewer core.Actor) (int64, error) {
	filter := visibleTo(viewer)
	filter["read_by"] = bson.M{"$ne": viewer.ID}
	n, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, errors.Wrap(err, "count unread notifications")
	}
	return n, nil
}

// MarkRead adds the viewer to read_by. Notifications the viewer cannot see
// are reported as not found.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, viewer core.Actor) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return core.NotFound("notification not found")
	}
	filter := visibleTo(viewer)
	filter["_id"] = oid
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$addToSet": bson.M{"read_by": viewer.ID}})
	if err != nil {
		return errors.Wrap(err, "mark notification read")
	}
	if res.MatchedCount == 0 {
		return core.NotFound("notification not found")
	}
	return nil
}

// MarkAllRead adds viewer to the readers of every visible notification.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, viewer core.Actor) (int64, error) {
	filter := visibleTo(viewer)
	filter["read_by"] = bson.M{"$ne": viewer.ID}
	res, err := r.collection.UpdateMany(ctx, filter, bson.M{"$addToSet": bson.M{"read_by": viewer.ID}})
	if err != nil {
		return 0, errors.Wrap(err, "mark all notifications read")
	}
	return res.ModifiedCount, nil
}

// Due returns scheduled notifications whose send time has passed.
func (r *NotificationRepository) Due(ctx context.Context, now time.Time) ([]*Notification, error) {
	filter := bson.M{"state": StateScheduled, "send_at": bson.M{"$lte": now}}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "send_at", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find due notifications")
	}
	var out []*Notification
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode due notifications")
	}
	return out, nil
}

// MarkDelivered flips a scheduled notification to delivered. It reports false
// when another dispatcher got there first.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "state": StateScheduled},
		bson.M{"$set": bson.M{"state": StateDelivered, "delivered_at": at, "created_at": at}},
	)
	if err != nil {
		return false, errors.Wrap(err, "mark notification delivered")
	}
	return res.ModifiedCount == 1, nil
}
