package faculty

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ClassRoutineTracker/internal/core"
)

// FacultyRepository stores faculty accounts.
type FacultyRepository struct {
	collection *mongo.Collection
}

// NewFacultyRepository creates a new repository for faculty accounts.
func NewFacultyRepository(db *mongo.Database) *FacultyRepository {
	return &FacultyRepository{collection: db.Collection("faculty")}
}

func (r *FacultyRepository) findOne(ctx context.Context, filter bson.M) (*Faculty, error) {
	var f Faculty
	err := r.collection.FindOne(ctx, filter).Decode(&f)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, errors.Wrap(err, "find faculty")
	}
	return &f, nil
}

// FindByEmail returns nil, nil when no account uses email.
func (r *FacultyRepository) FindByEmail(ctx context.Context, email string) (*Faculty, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByID returns nil, nil for unknown or malformed ids.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*Faculty, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// CreateFaculty stores a new account.
func (r *FacultyRepository) CreateFaculty(ctx context.Context, f *Faculty) error {
	_, err := r.collection.InsertOne(ctx, f)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.Conflict(nil, "email already registered")
		}
		return errors.Wrap(err, "insert faculty")
	}
	return nil
}

// UpdateFaculty replaces a stored account.
func (r *FacultyRepository) UpdateFaculty(ctx context.Context, f *Faculty) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": f.ID}, f)
	if err != nil {
		return errors.Wrap(err, "update faculty")
	}
	if res.MatchedCount == 0 {
		return core.NotFound("faculty not found")
	}
	return nil
}

// List returns every account, optionally limited to one department, sorted by name.
func (r *FacultyRepository) List(ctx context.Context, department string) ([]*Faculty, error) {
	filter := bson.M{}
	if department != "" {
		filter["department"] = department
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list faculty")
	}
	var out []*Faculty
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode faculty")
	}
	return out, nil
}

// EmailsFor resolves notification recipients to addresses: one user, every
// holder of a role, or everyone.
func (r *FacultyRepository) EmailsFor(ctx context.Context, userID, role string, all bool) ([]string, error) {
	filter := bson.M{}
	switch {
	case all:
	case userID != "":
		oid, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			return nil, nil
		}
		filter["_id"] = oid
	case role != "":
		filter["role"] = bson.M{"$in": core.RolesHolding(role)}
	default:
		return nil, nil
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"email": 1}))
	if err != nil {
		return nil, errors.Wrap(err, "find recipient emails")
	}
	var rows []struct {
		Email string `bson:"email"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "decode recipient emails")
	}
	emails := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Email != "" {
			emails = append(emails, row.Email)
		}
	}
	return emails, nil
}
