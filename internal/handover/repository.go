package handover

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ClassRoutineTracker/internal/core"
)

// HandoverRepository stores handover requests.
type HandoverRepository struct {
	collection *mongo.Collection
}

// NewHandoverRepository creates a new repository for handovers.
func NewHandoverRepository(db *mongo.Database) *HandoverRepository {
	return &HandoverRepository{collection: db.Collection("handovers")}
}

// Insert stores a new handover, assigning an id when missing.
func (r *HandoverRepository) Insert(ctx context.Context, h *Handover) error {
	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, h); err != nil {
		return errors.Wrap(err, "insert handover")
	}
	return nil
}

// FindByID returns nil, nil for unknown or malformed ids.
func (r *HandoverRepository) FindByID(ctx context.Context, id string) (*Handover, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var h Handover
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&h); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find handover")
	}
	return &h, nil
}

// List returns the handovers matching f, latest class date first.
func (r *HandoverRepository) List(ctx context.Context, f Filter) ([]*Handover, error) {
	filter := bson.M{}
	if f.FacultyID != "" {
		filter["faculty_id"] = f.FacultyID
	}
	if f.SubstituteID != "" {
		filter["substitute_id"] = f.SubstituteID
	}
	if f.Involving != "" {
		filter["$or"] = bson.A{bson.M{"faculty_id": f.Involving}, bson.M{"substitute_id": f.Involving}}
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Date != "" {
		filter["date_of_class"] = f.Date
	}
	opts := options.Find().SetSort(bson.D{{Key: "date_of_class", Value: -1}, {Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list handovers")
	}
	var out []*Handover
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode handovers")
	}
	return out, nil
}

// Decide applies d to a Pending handover. A handover that was already decided
// is a conflict; two HODs racing on the same request cannot both win.
func (r *HandoverRepository) Decide(ctx context.Context, id string, d Decision) (*Handover, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, core.NotFound("handover %s not found", id)
	}
	set := bson.M{
		"status":     d.Status,
		"remarks":    d.Remarks,
		"decided_by": d.DecidedBy,
		"decided_at": d.At,
		"updated_at": d.At,
	}
	if d.SubstituteID != "" {
		set["substitute_id"] = d.SubstituteID
		set["substitute_name"] = d.SubstituteName
	}
	var out Handover
	err = r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "status": StatusPending},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err == nil {
		return &out, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, errors.Wrap(err, "decide handover")
	}
	existing, ferr := r.FindByID(ctx, id)
	if ferr != nil {
		return nil, ferr
	}
	if existing == nil {
		return nil, core.NotFound("handover %s not found", id)
	}
	return nil, core.Conflict(nil, "handover already %s", existing.Status)
}
