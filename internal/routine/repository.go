package routine

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

// RoutineRepository stores routine versions and the per-faculty heads.
type RoutineRepository struct {
	routines *mongo.Collection
	heads    *mongo.Collection
}

// NewRoutineRepository creates a new repository for routine versions and their heads.
func NewRoutineRepository(db *mongo.Database) *RoutineRepository {
	return &RoutineRepository{
		routines: db.Collection("routines"),
		heads:    db.Collection("routine_heads"),
	}
}

// Insert stores a new version. A version number already taken for the
// faculty is reported as a conflict.
func (r *RoutineRepository) Insert(ctx context.Context, doc *Routine) error {
	if _, err := r.routines.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.Conflict(nil, "routine version %d already exists", doc.Version)
		}
		return errors.Wrap(err, "insert routine")
	}
	return nil
}

// FindByID returns nil, nil for unknown or malformed ids.
func (r *RoutineRepository) FindByID(ctx context.Context, id string) (*Routine, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	var doc Routine
	if err := r.routines.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find routine")
	}
	return &doc, nil
}

// FindByIDs returns the documents among ids that exist, in no particular order.
func (r *RoutineRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Routine, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := r.routines.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Wrap(err, "find routines")
	}
	var out []*Routine
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode routines")
	}
	return out, nil
}

// Head returns the faculty's latest pointer, or nil when nothing was published.
func (r *RoutineRepository) Head(ctx context.Context, facultyID string) (*Head, error) {
	var h Head
	if err := r.heads.FindOne(ctx, bson.M{"_id": facultyID}).Decode(&h); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find routine head")
	}
	return &h, nil
}

// Heads lists the latest pointer of every faculty.
func (r *RoutineRepository) Heads(ctx context.Context) ([]*Head, error) {
	cursor, err := r.heads.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "list routine heads")
	}
	var out []*Head
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode routine heads")
	}
	return out, nil
}

// AdvanceHead moves the faculty's latest pointer from version expect to the
// given document. expect == 0 creates the pointer. It reports false when the
// pointer has moved since it was read.
func (r *RoutineRepository) AdvanceHead(ctx context.Context, facultyID string, expect int, latestID primitive.ObjectID, version int, at time.Time) (bool, error) {
	if expect == 0 {
		_, err := r.heads.InsertOne(ctx, Head{FacultyID: facultyID, LatestID: latestID, Version: version, UpdatedAt: at})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return false, nil
			}
			return false, errors.Wrap(err, "create routine head")
		}
		return true, nil
	}
	res, err := r.heads.UpdateOne(ctx,
		bson.M{"_id": facultyID, "version": expect},
		bson.M{"$set": bson.M{"latest_id": latestID, "version": version, "updated_at": at}},
	)
	if err != nil {
		return false, errors.Wrap(err, "advance routine head")
	}
	return res.MatchedCount == 1, nil
}

// Promote makes the document the only published, latest version of the
// faculty's chain and returns how many documents changed. If a newer version
// was published in the meantime the document is superseded instead.
func (r *RoutineRepository) Promote(ctx context.Context, facultyID string, id primitive.ObjectID, version int) (int64, error) {
	var changed int64
	res, err := r.routines.UpdateMany(ctx,
		bson.M{
			"faculty_id": facultyID,
			"_id":        bson.M{"$ne": id},
			"version":    bson.M{"$lt": version},
			"$or":        bson.A{bson.M{"is_latest": true}, bson.M{"state": StatePublished}},
		},
		bson.M{"$set": bson.M{"is_latest": false, "state": StateSuperseded}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "supersede routines")
	}
	changed += res.ModifiedCount

	newer, err := r.routines.CountDocuments(ctx, bson.M{
		"faculty_id": facultyID,
		"version":    bson.M{"$gt": version},
		"state":      StatePublished,
	})
	if err != nil {
		return changed, errors.Wrap(err, "count newer routines")
	}
	set := bson.M{"is_latest": true, "state": StatePublished}
	if newer > 0 {
		set = bson.M{"is_latest": false, "state": StateSuperseded}
	}
	res, err = r.routines.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return changed, errors.Wrap(err, "promote routine")
	}
	return changed + res.ModifiedCount, nil
}

// DiscardDraft removes a version that never became the head. Documents that
// left the draft state are kept.
func (r *RoutineRepository) DiscardDraft(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.routines.DeleteOne(ctx, bson.M{"_id": id, "state": StateDraft}); err != nil {
		return errors.Wrap(err, "discard routine draft")
	}
	return nil
}

// DiscardStaleDrafts removes the faculty's drafts created before the cutoff,
// except keep. Such drafts are left by publishes that failed after inserting
// and would otherwise hold their version number forever.
func (r *RoutineRepository) DiscardStaleDrafts(ctx context.Context, facultyID string, keep primitive.ObjectID, before time.Time) (int64, error) {
	res, err := r.routines.DeleteMany(ctx, bson.M{
		"faculty_id": facultyID,
		"state":      StateDraft,
		"_id":        bson.M{"$ne": keep},
		"created_at": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, errors.Wrap(err, "discard stale routine drafts")
	}
	return res.DeletedCount, nil
}

// History lists published and superseded versions other than exclude,
// newest first.
func (r *RoutineRepository) History(ctx context.Context, facultyID string, exclude primitive.ObjectID) ([]HistoryItem, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"faculty_id": facultyID,
			"_id":        bson.M{"$ne": exclude},
			"state":      bson.M{"$in": bson.A{StatePublished, StateSuperseded}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "version", Value: -1}}}},
		{{Key: "$project", Value: bson.M{
			"version":     1,
			"created_at":  1,
			"entry_count": bson.M{"$size": bson.M{"$ifNull": bson.A{"$entries", bson.A{}}}},
		}}},
	}
	cursor, err := r.routines.Aggregate(ctx, pipeline, options.Aggregate())
	if err != nil {
		return nil, errors.Wrap(err, "routine history")
	}
	var rows []struct {
		ID         primitive.ObjectID `bson:"_id"`
		Version    int                `bson:"version"`
		CreatedAt  time.Time          `bson:"created_at"`
		EntryCount int                `bson:"entry_count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "decode routine history")
	}
	out := make([]HistoryItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, HistoryItem{ID: row.ID, Version: row.Version, CreatedAt: row.CreatedAt, EntryCount: row.EntryCount})
	}
	return out, nil
}
